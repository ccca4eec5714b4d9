// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package manager

import (
	"context"
	"errors"
	"sync"

	"github.com/siemens/netprobe/archive"
	"github.com/siemens/netprobe/jobs"
	"github.com/siemens/netprobe/scan"
	"github.com/siemens/netprobe/store"
	"github.com/siemens/netprobe/types"

	"github.com/google/uuid"
	"github.com/thediveo/lxkns/log"
)

// DefaultListLimit is the default number of scans listed.
const DefaultListLimit = 50

// subscriberBuffer is the capacity of each subscriber's channel.
const subscriberBuffer = 64

// Manager manages scans from submission to their final summaries.
type Manager struct {
	ctx    context.Context // for running scans and store updates.
	cancel context.CancelFunc

	queue    *jobs.Queue[*types.Summary]
	store    store.Store
	archive  *archive.Dir
	scanOpts []scan.Option
	maxJobs  int

	mu      sync.Mutex // protects scans, subs and nextSub.
	scans   map[string]*scan.Scan
	subs    map[int]chan Notification
	nextSub int

	trackers sync.WaitGroup

	// queue lifecycle notifications waiting to be applied to the store
	// outside the queue's lock.
	lifecycleMu sync.Mutex
	lifecycle   []jobs.Notification
	wake        chan struct{}
	settled     chan struct{}
	stopWake    sync.Once
}

// Option can be passed to New when creating new Manager objects.
type Option func(*Manager)

// WithStore sets the store for scan records; it defaults to an in-memory
// store with the default history size.
func WithStore(s store.Store) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithArchive archives the summaries of finished scans in the specified
// archive directory; a nil archive disables archiving.
func WithArchive(dir *archive.Dir) Option {
	return func(m *Manager) {
		m.archive = dir
	}
}

// WithMaxParallelJobs sets the number of scans running at the same time.
func WithMaxParallelJobs(n int) Option {
	return func(m *Manager) {
		m.maxJobs = n
	}
}

// WithScanOptions passes additional options to all scans, such as probe
// options.
func WithScanOptions(opts ...scan.Option) Option {
	return func(m *Manager) {
		m.scanOpts = append(m.scanOpts, opts...)
	}
}

// New returns a new scan manager.
func New(options ...Option) *Manager {
	m := &Manager{
		maxJobs: jobs.DefaultMaxParallel,
		scans:   map[string]*scan.Scan{},
		subs:    map[int]chan Notification{},
		wake:    make(chan struct{}, 1),
		settled: make(chan struct{}),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.store == nil {
		m.store = store.NewMemoryStore(store.DefaultHistory)
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.queue = jobs.New[*types.Summary](m.ctx, m.maxJobs, jobs.WithNotifier(m.queueNotification))
	go m.settle()
	return m
}

// Submit a scan request, returning the ID of the new scan. Requests without
// any valid targets are rejected with [scan.ErrNoTargets] without being
// queued.
func (m *Manager) Submit(ctx context.Context, req scan.Request) (string, error) {
	hosts, _, err := req.Resolve()
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := m.store.Put(ctx, store.NewRecord(id, req.Targets.String(), len(hosts))); err != nil {
		return "", err
	}
	opts := append([]scan.Option{}, m.scanOpts...)
	if m.archive != nil {
		opts = append(opts, scan.WithArchiver(m.archive))
	}
	s, events := scan.New(id, req, opts...)

	m.mu.Lock()
	m.scans[id] = s
	m.mu.Unlock()
	m.trackers.Add(1)
	go m.track(id, events)

	_, err = m.queue.Enqueue(jobs.Job[*types.Summary]{
		ID:     id,
		Run:    s.Run,
		Cancel: s.Cancel,
	})
	if err != nil {
		s.Cancel()
		_, _ = m.store.Update(ctx, id, func(rec *store.Record) error {
			rec.Error = err.Error()
			rec.SetStatus(types.StatusError)
			return nil
		})
		return "", err
	}
	log.Infof("queued scan %s for %s", id, req.Targets.String())
	return id, nil
}

// Cancel the specified scan, whether queued or running. It returns false if
// the scan is unknown or already finished.
func (m *Manager) Cancel(id string) bool {
	if !m.queue.Cancel(id) {
		return false
	}
	m.markCancelled(id)
	return true
}

// Get returns the record of the specified scan. The record's result is
// loaded from the archive when necessary, such as for scans evicted from the
// store's history.
func (m *Manager) Get(ctx context.Context, id string) (*store.Record, error) {
	rec, err := m.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) && m.archive != nil {
		summary, aerr := m.archive.Load(id)
		if aerr != nil {
			return nil, err
		}
		return fromSummary(summary), nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Result == nil && rec.OutputPath != "" {
		if summary, err := archive.LoadFile(rec.OutputPath); err == nil {
			rec.Result = summary
		} else {
			log.Warnf("cannot load summary of scan %s: %s", id, err.Error())
		}
	}
	return rec, nil
}

// List the most recent scans, newest first; a limit below 1 selects
// [DefaultListLimit].
func (m *Manager) List(ctx context.Context, limit int) ([]*store.Record, error) {
	if limit < 1 {
		limit = DefaultListLimit
	}
	return m.store.List(ctx, limit)
}

// Shutdown cancels all queued and running scans and waits for the running
// scans to wind down; in-flight host probes get to finish unless ctx expires
// first, in which case all scans are aborted.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.scans))
	for id := range m.scans {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.Cancel(id)
	}
	done := make(chan struct{})
	go func() {
		m.queue.StopWait()
		m.stopWake.Do(func() { close(m.wake) })
		<-m.settled
		m.trackers.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
}

// track applies the events of a scan to its record and passes them on to
// subscribers, until the scan's event channel gets closed.
func (m *Manager) track(id string, events <-chan types.Event) {
	defer m.trackers.Done()
	defer func() {
		m.mu.Lock()
		delete(m.scans, id)
		m.mu.Unlock()
	}()
	for ev := range events {
		_, err := m.store.Update(m.ctx, id, func(rec *store.Record) error {
			rec.Apply(ev)
			return nil
		})
		if err != nil {
			log.Errorf("cannot update scan %s: %s", id, err.Error())
		}
		m.publish(notificationOf(ev))
	}
}

// queueNotification passes queue lifecycle changes not covered by scan
// events on to settle. It gets called while the queue is locked, so it must
// neither block nor touch the store.
func (m *Manager) queueNotification(n jobs.Notification) {
	switch n.Event {
	case jobs.Queued:
		m.publish(Notification{Kind: KindQueued, ScanID: n.JobID, Data: ref{ScanID: n.JobID}})
	case jobs.Cancelled, jobs.Failed:
		m.lifecycleMu.Lock()
		m.lifecycle = append(m.lifecycle, n)
		m.lifecycleMu.Unlock()
		select {
		case m.wake <- struct{}{}:
		default:
		}
	}
}

// settle applies the queue lifecycle changes handed over by
// queueNotification to the store, in order, until the wake channel gets
// closed after the queue has stopped.
func (m *Manager) settle() {
	defer close(m.settled)
	for range m.wake {
		m.settleLifecycle()
	}
	m.settleLifecycle()
}

func (m *Manager) settleLifecycle() {
	m.lifecycleMu.Lock()
	pending := m.lifecycle
	m.lifecycle = nil
	m.lifecycleMu.Unlock()
	for _, n := range pending {
		switch n.Event {
		case jobs.Cancelled:
			m.markCancelled(n.JobID)
			m.publish(Notification{Kind: KindCancelled, ScanID: n.JobID, Data: ref{ScanID: n.JobID}})
		case jobs.Failed:
			_, err := m.store.Update(m.ctx, n.JobID, func(rec *store.Record) error {
				if rec.SetStatus(types.StatusError) {
					rec.Error = n.Err.Error()
				}
				return nil
			})
			if err != nil {
				log.Errorf("cannot update scan %s: %s", n.JobID, err.Error())
			}
		}
	}
}

// markCancelled marks the record of the specified scan as cancelled, unless
// the scan has already finished.
func (m *Manager) markCancelled(id string) {
	var cancelled bool
	_, err := m.store.Update(m.ctx, id, func(rec *store.Record) error {
		cancelled = rec.SetStatus(types.StatusCancelled)
		return nil
	})
	if err != nil {
		log.Errorf("cannot update scan %s: %s", id, err.Error())
		return
	}
	if cancelled {
		log.Infof("cancelled scan %s", id)
	}
}

// fromSummary returns a record for an archived summary.
func fromSummary(summary *types.Summary) *store.Record {
	rec := store.NewRecord(summary.ScanID, "", len(summary.Hosts))
	rec.CreatedAt = summary.StartedAt
	rec.Status = types.StatusRunning
	rec.Apply(&types.Done{Summary: *summary})
	rec.UpdatedAt = summary.FinishedAt
	rec.Targets = targetsOf(summary)
	return rec
}
