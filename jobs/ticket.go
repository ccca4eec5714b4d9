// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"sync"
)

// Ticket represents the eventual outcome of an enqueued job.
type Ticket[R any] struct {
	id     string
	done   chan struct{}
	once   sync.Once
	result R
	err    error
}

func newTicket[R any](id string) *Ticket[R] {
	return &Ticket[R]{id: id, done: make(chan struct{})}
}

// ID returns the ID of the job this ticket belongs to.
func (t *Ticket[R]) ID() string { return t.id }

// Done returns a channel that gets closed when the job has settled.
func (t *Ticket[R]) Done() <-chan struct{} { return t.done }

// Result returns the job's result and error; it must only be called after the
// Done channel has been closed.
func (t *Ticket[R]) Result() (R, error) { return t.result, t.err }

// Wait for the job to settle, or for ctx to be cancelled.
func (t *Ticket[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// settle the ticket exactly once; later calls are ignored.
func (t *Ticket[R]) settle(result R, err error) {
	t.once.Do(func() {
		t.result = result
		t.err = err
		close(t.done)
	})
}
