// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/siemens/netprobe/fanout"
	"github.com/siemens/netprobe/probe"
	"github.com/siemens/netprobe/types"

	"github.com/thediveo/lxkns/log"
)

// ErrCancelled is returned by [Scan.Run] when the scan was cancelled before
// it could start.
var ErrCancelled = errors.New("scan cancelled")

// ErrAlreadyRun is returned by [Scan.Run] when called more than once.
var ErrAlreadyRun = errors.New("scan already run")

// DefaultEventBuffer is the default capacity of a scan's event channel.
const DefaultEventBuffer = 16

// HostProber probes a single host; [*probe.Prober] is the canonical
// implementation.
type HostProber interface {
	Probe(ctx context.Context, host string) types.HostResult
}

// Archiver durably stores a scan summary and returns its location.
type Archiver interface {
	Archive(ctx context.Context, summary *types.Summary) (string, error)
}

// Scan orchestrates probing the hosts of a single scan request.
type Scan struct {
	id  string
	req Request

	prober      HostProber
	probeOpts   []probe.ProberOption
	archiver    Archiver
	eventBuffer int

	events chan types.Event
	stop   context.Context    // cooperative cancellation: stop starting hosts.
	cancel context.CancelFunc // cancels stop.

	mu     sync.Mutex // protects status and ran.
	status types.Status
	ran    bool
}

// Option can be passed to New when creating new Scan objects.
type Option func(*Scan)

// New returns a new [Scan] with the specified ID for the specified request,
// together with the channel the scan emits its events on.
func New(id string, req Request, options ...Option) (*Scan, <-chan types.Event) {
	s := &Scan{
		id:          id,
		req:         req,
		eventBuffer: DefaultEventBuffer,
		status:      types.StatusQueued,
	}
	for _, opt := range options {
		opt(s)
	}
	s.stop, s.cancel = context.WithCancel(context.Background())
	s.events = make(chan types.Event, s.eventBuffer)
	return s, s.events
}

// WithProber sets the prober to use for all hosts, instead of a prober
// derived from the request.
func WithProber(p HostProber) Option {
	return func(s *Scan) {
		s.prober = p
	}
}

// WithProbeOptions passes additional options to the prober derived from the
// request, such as a network namespace or a resolver.
func WithProbeOptions(options ...probe.ProberOption) Option {
	return func(s *Scan) {
		s.probeOpts = append(s.probeOpts, options...)
	}
}

// WithArchiver persists the summary of a successful scan before the done
// event gets emitted.
func WithArchiver(a Archiver) Option {
	return func(s *Scan) {
		s.archiver = a
	}
}

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(size int) Option {
	return func(s *Scan) {
		if size < 0 {
			size = 0
		}
		s.eventBuffer = size
	}
}

// ID returns the scan's ID.
func (s *Scan) ID() string { return s.id }

// Request returns the scan request as submitted.
func (s *Scan) Request() Request { return s.req }

// Status returns the scan's current lifecycle status.
func (s *Scan) Status() types.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// transition to the next status, if allowed. It returns false if the scan is
// already in a terminal status.
func (s *Scan) transition(next types.Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.CanTransition(next) {
		return false
	}
	s.status = next
	return true
}

// Cancel the scan: hosts not yet started won't get probed anymore, while
// in-flight probes finish. A scan not yet running will never run. Cancel is
// idempotent and a no-op on finished scans.
func (s *Scan) Cancel() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == types.StatusQueued {
		s.status = types.StatusCancelled
		if !s.ran {
			s.ran = true
			close(s.events)
		}
	}
}

// Run the scan, blocking until all hosts have been probed, the scan failed, or
// ctx got cancelled. Run returns the scan summary, which is also part of the
// final done event.
func (s *Scan) Run(ctx context.Context) (summary *types.Summary, err error) {
	s.mu.Lock()
	if s.ran {
		s.mu.Unlock()
		if s.Status() == types.StatusCancelled {
			return nil, ErrCancelled
		}
		return nil, ErrAlreadyRun
	}
	s.ran = true
	s.status = types.StatusRunning
	s.mu.Unlock()
	defer close(s.events)
	defer func() {
		if r := recover(); r != nil {
			summary = nil
			err = fmt.Errorf("scan %s panicked: %v", s.id, r)
			s.fail(ctx, err)
		}
	}()

	hosts, options, err := s.req.Resolve()
	if err != nil {
		s.fail(ctx, err)
		return nil, err
	}
	startedAt := time.Now().UTC()
	log.Infof("scan %s: probing %d hosts", s.id, len(hosts))
	s.emit(ctx, &types.Started{ScanID: s.id, StartedAt: startedAt, Targets: len(hosts)})

	prober := s.prober
	if prober == nil {
		prober = s.newProber(options)
	}

	// The hosts are accumulated in completion order, and the progress of
	// each host computed and emitted under the same lock, so that progress
	// values never decrease in emission order.
	var mu sync.Mutex
	completed := 0
	results := make([]types.HostResult, 0, len(hosts))
	_, err = fanout.Run(ctx, hosts, options.MaxParallelHosts,
		func(ctx context.Context, _ int, host string) (struct{}, error) {
			if s.stop.Err() != nil || ctx.Err() != nil {
				return struct{}{}, nil
			}
			result := prober.Probe(ctx, host)
			result.ScanID = s.id
			mu.Lock()
			defer mu.Unlock()
			completed++
			result.Progress = float64(completed) / float64(len(hosts))
			results = append(results, result)
			s.emit(ctx, &types.Progress{HostResult: result})
			return struct{}{}, nil
		})
	if err != nil {
		s.fail(ctx, err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		s.transition(types.StatusError)
		return nil, err
	}

	summary = &types.Summary{
		ScanID:     s.id,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Options:    options,
		Hosts:      results,
		Cancelled:  s.stop.Err() != nil,
	}
	if s.archiver != nil {
		path, err := s.archiver.Archive(ctx, summary)
		if err != nil {
			err = fmt.Errorf("cannot save scan %s: %w", s.id, err)
			s.fail(ctx, err)
			return nil, err
		}
		summary.OutputPath = path
	}
	final := types.StatusDone
	if summary.Cancelled {
		final = types.StatusCancelled
	}
	s.transition(final)
	log.Infof("scan %s: %s, %d of %d hosts up", s.id, final, summary.Up(), len(results))
	s.emit(ctx, &types.Done{Summary: *summary})
	return summary, nil
}

// newProber returns a prober configured from the normalized scan options.
func (s *Scan) newProber(options types.Options) HostProber {
	opts := []probe.ProberOption{
		probe.WithCount(uint(options.Count)),
		probe.WithInterval(options.Interval()),
		probe.WithPorts(options.Ports),
		probe.WithPortTimeout(options.PortTimeout()),
	}
	return probe.New(append(opts, s.probeOpts...)...)
}

// fail the scan with the specified error, emitting an error event.
func (s *Scan) fail(ctx context.Context, err error) {
	log.Errorf("scan %s failed: %s", s.id, err.Error())
	s.transition(types.StatusError)
	s.emit(ctx, &types.Failed{ScanID: s.id, Message: err.Error()})
}

// emit an event, unless ctx gets cancelled while waiting for the receiver.
func (s *Scan) emit(ctx context.Context, ev types.Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}
