// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/thediveo/lxkns/log"
)

var (
	// ErrInvalidJob is returned when enqueuing a job without ID or run
	// function.
	ErrInvalidJob = errors.New("invalid job: missing ID or run function")
	// ErrDuplicateJob is returned when enqueuing a job with the ID of a job
	// that is still queued or active.
	ErrDuplicateJob = errors.New("duplicate job ID")
	// ErrCancelled settles the tickets of cancelled jobs.
	ErrCancelled = errors.New("job cancelled")
	// ErrStopped is returned when enqueuing to a stopped queue.
	ErrStopped = errors.New("job queue stopped")
)

// DefaultMaxParallel is the default number of jobs running at the same time.
const DefaultMaxParallel = 2

// Job is a named, cancellable unit of work producing a result of type R.
type Job[R any] struct {
	ID  string
	Run func(ctx context.Context) (R, error)
	// Cancel is an optional cooperative cancellation hook. It gets called
	// before the job's ticket settles, while the queue's state is locked, so
	// it must not call back into the queue.
	Cancel func()
}

// Queue runs enqueued jobs in FIFO order, with at most a fixed number of jobs
// active at any time.
type Queue[R any] struct {
	ctx         context.Context
	maxParallel int
	notify      func(Notification)

	mu      sync.Mutex // protects waiting, active and stopped.
	waiting []*entry[R]
	active  map[string]*entry[R]
	stopped bool
	wg      sync.WaitGroup // running job goroutines.
}

type entry[R any] struct {
	job    Job[R]
	ticket *Ticket[R]
}

// Option can be passed to New when creating new Queue objects.
type Option func(*options)

type options struct {
	notify func(Notification)
}

// WithNotifier sets a function receiving the queue lifecycle notifications.
// The notifier gets called synchronously while the queue's state is locked,
// so it must not call back into the queue.
func WithNotifier(fn func(Notification)) Option {
	return func(o *options) {
		o.notify = fn
	}
}

// New returns a new job queue running at most maxParallel jobs at the same
// time; maxParallel values below 1 are raised to 1. The passed context is
// handed to the run functions of all jobs.
func New[R any](ctx context.Context, maxParallel int, opts ...Option) *Queue[R] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Queue[R]{
		ctx:         ctx,
		maxParallel: maxParallel,
		notify:      o.notify,
		active:      map[string]*entry[R]{},
	}
}

// Enqueue a job, returning the ticket that settles with the job's outcome.
// Invalid jobs and jobs with the ID of another queued or active job are
// rejected immediately, without being queued.
func (q *Queue[R]) Enqueue(job Job[R]) (*Ticket[R], error) {
	if job.ID == "" || job.Run == nil {
		return nil, ErrInvalidJob
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return nil, ErrStopped
	}
	if q.indexOf(job.ID) >= 0 || q.active[job.ID] != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}
	e := &entry[R]{job: job, ticket: newTicket[R](job.ID)}
	q.waiting = append(q.waiting, e)
	log.Debugf("queued job %s", job.ID)
	q.emit(job.ID, Queued, nil)
	q.admit()
	return e.ticket, nil
}

// Cancel the job with the specified ID, returning true if the job was found
// either queued or active. The job's cancellation hook runs before its ticket
// settles and before the next waiting job gets admitted.
func (q *Queue[R]) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if idx := q.indexOf(id); idx >= 0 {
		e := q.waiting[idx]
		q.waiting = append(q.waiting[:idx], q.waiting[idx+1:]...)
		q.cancel(e)
		return true
	}
	e, ok := q.active[id]
	if !ok {
		return false
	}
	delete(q.active, id)
	q.cancel(e)
	q.admit()
	return true
}

// cancel a job that has already been removed from the waiting list or the
// active jobs. The caller must hold the queue's lock.
func (q *Queue[R]) cancel(e *entry[R]) {
	if e.job.Cancel != nil {
		e.job.Cancel()
	}
	e.ticket.settle(*new(R), ErrCancelled)
	log.Debugf("cancelled job %s", e.job.ID)
	q.emit(e.job.ID, Cancelled, nil)
}

// Len returns the number of active and waiting jobs.
func (q *Queue[R]) Len() (active int, waiting int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active), len(q.waiting)
}

// StopWait stops the queue from accepting new jobs, cancels all waiting jobs,
// and then waits for the run functions of all active jobs to return.
func (q *Queue[R]) StopWait() {
	q.mu.Lock()
	q.stopped = true
	for _, e := range q.waiting {
		q.cancel(e)
	}
	q.waiting = nil
	q.mu.Unlock()
	q.wg.Wait()
}

// admit starts waiting jobs in FIFO order as long as there are free active
// slots. The caller must hold the queue's lock.
func (q *Queue[R]) admit() {
	for len(q.active) < q.maxParallel && len(q.waiting) > 0 {
		e := q.waiting[0]
		q.waiting[0] = nil
		q.waiting = q.waiting[1:]
		q.active[e.job.ID] = e
		log.Debugf("started job %s", e.job.ID)
		q.emit(e.job.ID, Started, nil)
		q.wg.Add(1)
		go q.run(e)
	}
}

// run an admitted job and settle its outcome, unless the job has been
// cancelled in the meantime.
func (q *Queue[R]) run(e *entry[R]) {
	defer q.wg.Done()
	res, err := q.execute(e)
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active[e.job.ID] != e {
		return
	}
	delete(q.active, e.job.ID)
	e.ticket.settle(res, err)
	if err != nil {
		log.Debugf("job %s failed: %s", e.job.ID, err.Error())
		q.emit(e.job.ID, Failed, err)
	} else {
		log.Debugf("completed job %s", e.job.ID)
		q.emit(e.job.ID, Completed, nil)
	}
	q.admit()
}

// execute a job's run function, turning panics into errors.
func (q *Queue[R]) execute(e *entry[R]) (res R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", e.job.ID, r)
		}
	}()
	return e.job.Run(q.ctx)
}

func (q *Queue[R]) indexOf(id string) int {
	for idx, e := range q.waiting {
		if e.job.ID == id {
			return idx
		}
	}
	return -1
}

func (q *Queue[R]) emit(id string, ev Event, err error) {
	if q.notify == nil {
		return
	}
	q.notify(Notification{JobID: id, Event: ev, Err: err})
}
