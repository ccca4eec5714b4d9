// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/siemens/netprobe/targets"
	"github.com/siemens/netprobe/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
)

// fakeProber reports all hosts as up, optionally blocking each probe until
// its gate gets closed.
type fakeProber struct {
	mu          sync.Mutex
	probed      []string
	gate        chan struct{}
	started     chan string
	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (p *fakeProber) Probe(ctx context.Context, host string) types.HostResult {
	n := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		max := p.maxInflight.Load()
		if n <= max || p.maxInflight.CompareAndSwap(max, n) {
			break
		}
	}
	p.mu.Lock()
	p.probed = append(p.probed, host)
	p.mu.Unlock()
	if p.started != nil {
		p.started <- host
	}
	if p.gate != nil {
		<-p.gate
	} else {
		time.Sleep(10 * time.Millisecond)
	}
	return types.HostResult{
		Host:    host,
		State:   types.Up,
		Samples: []float64{1},
		Ports:   []types.PortResult{},
	}
}

func (p *fakeProber) Probed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.probed...)
}

type panickingProber struct{}

func (panickingProber) Probe(ctx context.Context, host string) types.HostResult {
	panic("D'OH!")
}

type fakeArchiver struct {
	err     error
	archive *types.Summary
}

func (a *fakeArchiver) Archive(ctx context.Context, summary *types.Summary) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.archive = summary
	return "/tmp/" + summary.ScanID + ".json", nil
}

// run the scan to completion, collecting all events until the event channel
// gets closed.
func run(ctx context.Context, s *Scan, events <-chan types.Event) (*types.Summary, []types.Event, error) {
	var evs []types.Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			evs = append(evs, ev)
		}
	}()
	summary, err := s.Run(ctx)
	Eventually(done).Should(BeClosed())
	return summary, evs, err
}

func kinds(evs []types.Event) []types.EventKind {
	k := make([]types.EventKind, 0, len(evs))
	for _, ev := range evs {
		k = append(k, ev.Kind())
	}
	return k
}

var _ = Describe("scan orchestrator", func() {

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(3 * time.Second).WithPolling(250 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
		})
	})

	It("probes a range of hosts", func(ctx context.Context) {
		prober := &fakeProber{}
		s, events := New("scan-1",
			Request{Targets: targets.FromString("10.0.0.1-10.0.0.3")},
			WithProber(prober))
		Expect(s.ID()).To(Equal("scan-1"))
		Expect(s.Status()).To(Equal(types.StatusQueued))

		summary, evs, err := run(ctx, s, events)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Status()).To(Equal(types.StatusDone))

		Expect(summary.Hosts).To(HaveLen(3))
		Expect(summary.Hosts).To(HaveEach(And(
			HaveField("ScanID", "scan-1"),
			HaveField("Ports", BeEmpty()))))
		Expect(summary.Options.TargetCount).To(Equal(3))
		Expect(summary.Cancelled).To(BeFalse())
		Expect(summary.FinishedAt).NotTo(BeTemporally("<", summary.StartedAt))
		Expect(prober.Probed()).To(ConsistOf("10.0.0.1", "10.0.0.2", "10.0.0.3"))

		Expect(kinds(evs)).To(Equal([]types.EventKind{
			types.EventStarted,
			types.EventProgress, types.EventProgress, types.EventProgress,
			types.EventDone,
		}))
		Expect(evs[0]).To(HaveField("Targets", 3))
		Expect(evs).To(HaveEach(HaveField("Scan()", "scan-1")))
	})

	It("emits non-decreasing progress ending in completion", func(ctx context.Context) {
		s, events := New("scan-2",
			Request{Targets: targets.FromString("10.0.1.0/28"), MaxParallelHosts: 4},
			WithProber(&fakeProber{}))
		summary, evs, err := run(ctx, s, events)
		Expect(err).NotTo(HaveOccurred())

		var progress []float64
		for _, ev := range evs {
			if p, ok := ev.(*types.Progress); ok {
				progress = append(progress, p.Progress)
			}
		}
		Expect(progress).To(HaveLen(16))
		for idx := 1; idx < len(progress); idx++ {
			Expect(progress[idx]).To(BeNumerically(">=", progress[idx-1]))
		}
		Expect(progress[len(progress)-1]).To(Equal(1.0))

		// the summary lists hosts in completion order, as emitted.
		emitted := []string{}
		for _, ev := range evs {
			if p, ok := ev.(*types.Progress); ok {
				emitted = append(emitted, p.Host)
			}
		}
		hosts := []string{}
		for _, h := range summary.Hosts {
			hosts = append(hosts, h.Host)
		}
		Expect(hosts).To(Equal(emitted))
	})

	It("never probes more hosts in parallel than allowed", func(ctx context.Context) {
		prober := &fakeProber{}
		s, events := New("scan-3",
			Request{Targets: targets.FromString("10.0.2.0/27"), MaxParallelHosts: 3},
			WithProber(prober))
		_, _, err := run(ctx, s, events)
		Expect(err).NotTo(HaveOccurred())
		Expect(prober.maxInflight.Load()).To(BeNumerically("<=", 3))
		Expect(prober.Probed()).To(HaveLen(32))
	})

	It("drops invalid list entries", func(ctx context.Context) {
		s, events := New("scan-4",
			Request{Targets: targets.FromList("bad_host!", "10.0.0.5")},
			WithProber(&fakeProber{}))
		summary, _, err := run(ctx, s, events)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Options.Targets).To(Equal([]string{"10.0.0.5"}))
		Expect(summary.Hosts).To(HaveExactElements(HaveField("Host", "10.0.0.5")))
	})

	It("fails scans without targets", func(ctx context.Context) {
		prober := &fakeProber{}
		s, events := New("scan-5",
			Request{Targets: targets.FromString(" , ,not_valid!,-")},
			WithProber(prober))
		summary, evs, err := run(ctx, s, events)
		Expect(err).To(MatchError(ErrNoTargets))
		Expect(summary).To(BeNil())
		Expect(s.Status()).To(Equal(types.StatusError))
		Expect(evs).To(HaveExactElements(
			And(
				HaveField("Kind()", types.EventError),
				HaveField("Message", ErrNoTargets.Error()))))
		Expect(prober.Probed()).To(BeEmpty())
	})

	It("runs only once", func(ctx context.Context) {
		s, events := New("scan-6",
			Request{Targets: targets.FromString("10.0.0.1")},
			WithProber(&fakeProber{}))
		_, _, err := run(ctx, s, events)
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Run(ctx)
		Expect(err).To(MatchError(ErrAlreadyRun))
	})

	It("stops starting new hosts when cancelled", func(ctx context.Context) {
		prober := &fakeProber{
			gate:    make(chan struct{}),
			started: make(chan string, 10),
		}
		s, events := New("scan-7",
			Request{Targets: targets.FromString("10.0.0.1-10.0.0.6"), MaxParallelHosts: 2},
			WithProber(prober))

		type outcome struct {
			summary *types.Summary
			evs     []types.Event
			err     error
		}
		ch := make(chan outcome, 1)
		go func() {
			defer GinkgoRecover()
			summary, evs, err := run(ctx, s, events)
			ch <- outcome{summary, evs, err}
		}()

		Eventually(prober.started).Should(Receive())
		Eventually(prober.started).Should(Receive())
		s.Cancel()
		s.Cancel()
		close(prober.gate)

		var o outcome
		Eventually(ch).WithTimeout(2 * time.Second).Should(Receive(&o))
		Expect(o.err).NotTo(HaveOccurred())
		Expect(s.Status()).To(Equal(types.StatusCancelled))
		Expect(prober.Probed()).To(HaveLen(2))
		Expect(o.summary.Cancelled).To(BeTrue())
		Expect(o.summary.Hosts).To(HaveLen(2))
		Expect(kinds(o.evs)).To(Equal([]types.EventKind{
			types.EventStarted,
			types.EventProgress, types.EventProgress,
			types.EventDone,
		}))
	})

	It("never runs when cancelled before start", func(ctx context.Context) {
		prober := &fakeProber{}
		s, events := New("scan-8",
			Request{Targets: targets.FromString("10.0.0.1")},
			WithProber(prober))
		s.Cancel()
		Expect(s.Status()).To(Equal(types.StatusCancelled))
		Eventually(events).Should(BeClosed())
		_, err := s.Run(ctx)
		Expect(err).To(MatchError(ErrCancelled))
		Expect(prober.Probed()).To(BeEmpty())
	})

	It("archives the summary before announcing it", func(ctx context.Context) {
		archiver := &fakeArchiver{}
		s, events := New("scan-9",
			Request{Targets: targets.FromString("10.0.0.1")},
			WithProber(&fakeProber{}),
			WithArchiver(archiver))
		summary, evs, err := run(ctx, s, events)
		Expect(err).NotTo(HaveOccurred())
		Expect(archiver.archive).NotTo(BeNil())
		Expect(summary.OutputPath).To(Equal("/tmp/scan-9.json"))
		Expect(evs[len(evs)-1]).To(HaveField("Summary.OutputPath", "/tmp/scan-9.json"))
	})

	It("fails when the summary cannot be archived", func(ctx context.Context) {
		s, events := New("scan-10",
			Request{Targets: targets.FromString("10.0.0.1")},
			WithProber(&fakeProber{}),
			WithArchiver(&fakeArchiver{err: errors.New("disk full")}))
		summary, evs, err := run(ctx, s, events)
		Expect(err).To(MatchError(ContainSubstring("disk full")))
		Expect(summary).To(BeNil())
		Expect(s.Status()).To(Equal(types.StatusError))
		Expect(kinds(evs)).To(Equal([]types.EventKind{
			types.EventStarted, types.EventProgress, types.EventError,
		}))
	})

	It("fails when probing panics", func(ctx context.Context) {
		s, events := New("scan-11",
			Request{Targets: targets.FromString("10.0.0.1")},
			WithProber(panickingProber{}))
		_, evs, err := run(ctx, s, events)
		Expect(err).To(MatchError(ContainSubstring("D'OH!")))
		Expect(s.Status()).To(Equal(types.StatusError))
		Expect(evs[len(evs)-1]).To(HaveField("Kind()", types.EventError))
	})

	It("aborts when its context gets cancelled", func(ctx context.Context) {
		prober := &fakeProber{gate: make(chan struct{}), started: make(chan string, 10)}
		s, events := New("scan-12",
			Request{Targets: targets.FromString("10.0.0.1-10.0.0.4"), MaxParallelHosts: 1},
			WithProber(prober),
			WithEventBuffer(0))
		ctx, cancel := context.WithCancel(ctx)
		errch := make(chan error, 1)
		go func() {
			_, _, err := run(ctx, s, events)
			errch <- err
		}()
		Eventually(prober.started).Should(Receive())
		cancel()
		close(prober.gate)
		Eventually(errch).WithTimeout(2 * time.Second).Should(Receive(MatchError(context.Canceled)))
		Expect(prober.Probed()).To(HaveLen(1))
	})

})
