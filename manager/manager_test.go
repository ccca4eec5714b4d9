// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package manager

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/siemens/netprobe/archive"
	"github.com/siemens/netprobe/scan"
	"github.com/siemens/netprobe/store"
	"github.com/siemens/netprobe/targets"
	"github.com/siemens/netprobe/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/success"
)

// gatedProber reports all hosts as up, but only after its gate has been
// closed. Started probes are signalled on the started channel, if any.
type gatedProber struct {
	gate    chan struct{}
	started chan string
}

func (p *gatedProber) Probe(ctx context.Context, host string) types.HostResult {
	if p.started != nil {
		p.started <- host
	}
	<-p.gate
	return types.HostResult{
		Host:    host,
		State:   types.Up,
		Samples: []float64{0.5},
		Ports:   []types.PortResult{},
	}
}

func openProber() *gatedProber {
	gate := make(chan struct{})
	close(gate)
	return &gatedProber{gate: gate}
}

func statusOf(ctx context.Context, m *Manager, id string) func() types.Status {
	return func() types.Status {
		rec, err := m.Get(ctx, id)
		if err != nil {
			return ""
		}
		return rec.Status
	}
}

// lockCheckingStore notes store updates happening while the manager's job
// queue is locked.
type lockCheckingStore struct {
	store.Store
	manager atomic.Pointer[Manager]
	locked  atomic.Bool
}

func (s *lockCheckingStore) Update(ctx context.Context, id string, fn func(*store.Record) error) (*store.Record, error) {
	if m := s.manager.Load(); m != nil {
		free := make(chan struct{})
		go func() {
			_, _ = m.queue.Len()
			close(free)
		}()
		select {
		case <-free:
		case <-time.After(time.Second):
			s.locked.Store(true)
		}
	}
	return s.Store.Update(ctx, id, fn)
}

var _ = Describe("scan manager", func() {

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(3 * time.Second).WithPolling(250 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
		})
	})

	newManager := func(opts ...Option) *Manager {
		m := New(opts...)
		DeferCleanup(func(ctx context.Context) {
			Expect(m.Shutdown(ctx)).To(Succeed())
		})
		return m
	}

	It("rejects requests without targets", func(ctx context.Context) {
		m := newManager(WithScanOptions(scan.WithProber(openProber())))
		Expect(m.Submit(ctx, scan.Request{Targets: targets.FromList("bad_host!")})).Error().
			To(MatchError(scan.ErrNoTargets))
		Expect(m.List(ctx, 0)).To(BeEmpty())
	})

	It("runs a scan and notifies subscribers", func(ctx context.Context) {
		m := newManager(WithScanOptions(scan.WithProber(openProber())))
		notifications, unsubscribe := m.Subscribe()
		defer unsubscribe()

		id := Successful(m.Submit(ctx, scan.Request{Targets: targets.FromString("10.0.0.1-10.0.0.3")}))
		Expect(id).NotTo(BeEmpty())
		Eventually(statusOf(ctx, m, id)).Should(Equal(types.StatusDone))

		rec := Successful(m.Get(ctx, id))
		Expect(rec.Targets).To(Equal("10.0.0.1-10.0.0.3"))
		Expect(rec.Hosts).To(HaveLen(3))
		Expect(rec.Summary).To(Equal(store.Totals{Total: 3, Up: 3}))
		Expect(rec.Result).NotTo(BeNil())
		Expect(rec.Result.Hosts).To(HaveLen(3))

		kinds := []Kind{}
		Eventually(func() []Kind {
			for {
				select {
				case n := <-notifications:
					Expect(n.ScanID).To(Equal(id))
					kinds = append(kinds, n.Kind)
				default:
					return kinds
				}
			}
		}).Should(Equal([]Kind{
			KindQueued, KindStarted,
			KindProgress, KindProgress, KindProgress,
			KindDone,
		}))
		Expect(m.List(ctx, 0)).To(HaveExactElements(HaveField("ID", id)))
	})

	It("reloads archived summaries", func(ctx context.Context) {
		dir := archive.New(GinkgoT().TempDir())
		m := newManager(
			WithArchive(dir),
			WithStore(store.NewMemoryStore(1)),
			WithScanOptions(scan.WithProber(openProber())))

		first := Successful(m.Submit(ctx, scan.Request{Targets: targets.FromString("10.0.0.1")}))
		Eventually(statusOf(ctx, m, first)).Should(Equal(types.StatusDone))
		rec := Successful(m.Get(ctx, first))
		Expect(rec.OutputPath).To(Equal(Successful(dir.PathOf(first))))

		second := Successful(m.Submit(ctx, scan.Request{Targets: targets.FromString("10.0.0.2")}))
		Eventually(statusOf(ctx, m, second)).Should(Equal(types.StatusDone))
		Expect(m.List(ctx, 0)).To(HaveExactElements(HaveField("ID", second)))

		rec = Successful(m.Get(ctx, first))
		Expect(rec.Status).To(Equal(types.StatusDone))
		Expect(rec.Targets).To(Equal("10.0.0.1"))
		Expect(rec.Result).NotTo(BeNil())
		Expect(rec.Result.Hosts).To(HaveExactElements(HaveField("Host", "10.0.0.1")))

		Expect(m.Get(ctx, "unknown")).Error().To(MatchError(store.ErrNotFound))
	})

	It("cancels queued scans", func(ctx context.Context) {
		prober := &gatedProber{gate: make(chan struct{}), started: make(chan string, 10)}
		m := newManager(
			WithMaxParallelJobs(1),
			WithScanOptions(scan.WithProber(prober)))

		first := Successful(m.Submit(ctx, scan.Request{Targets: targets.FromString("10.0.0.1")}))
		Eventually(prober.started).Should(Receive(Equal("10.0.0.1")))
		second := Successful(m.Submit(ctx, scan.Request{Targets: targets.FromString("10.0.0.2")}))
		Expect(Successful(m.Get(ctx, second)).Status).To(Equal(types.StatusQueued))

		Expect(m.Cancel(second)).To(BeTrue())
		Expect(m.Cancel(second)).To(BeFalse())
		Expect(Successful(m.Get(ctx, second)).Status).To(Equal(types.StatusCancelled))

		close(prober.gate)
		Eventually(statusOf(ctx, m, first)).Should(Equal(types.StatusDone))
		Consistently(prober.started).ShouldNot(Receive())
		Expect(m.Cancel("unknown")).To(BeFalse())
	})

	It("cancels running scans", func(ctx context.Context) {
		prober := &gatedProber{gate: make(chan struct{}), started: make(chan string, 10)}
		m := newManager(WithScanOptions(scan.WithProber(prober)))

		id := Successful(m.Submit(ctx, scan.Request{
			Targets:          targets.FromString("10.0.0.1-10.0.0.3"),
			MaxParallelHosts: 1,
		}))
		Eventually(prober.started).Should(Receive())
		Eventually(statusOf(ctx, m, id)).Should(Equal(types.StatusRunning))
		Expect(m.Cancel(id)).To(BeTrue())
		Expect(Successful(m.Get(ctx, id)).Status).To(Equal(types.StatusCancelled))

		close(prober.gate)
		Eventually(func() *types.Summary {
			return Successful(m.Get(ctx, id)).Result
		}).ShouldNot(BeNil())
		rec := Successful(m.Get(ctx, id))
		Expect(rec.Status).To(Equal(types.StatusCancelled))
		Expect(rec.Result.Cancelled).To(BeTrue())
		Expect(rec.Result.Hosts).To(HaveLen(1))
		Expect(prober.started).NotTo(Receive())
	})

	It("updates cancelled records without holding up the job queue", func(ctx context.Context) {
		prober := &gatedProber{gate: make(chan struct{}), started: make(chan string, 10)}
		checking := &lockCheckingStore{Store: store.NewMemoryStore(store.DefaultHistory)}
		m := newManager(
			WithStore(checking),
			WithMaxParallelJobs(1),
			WithScanOptions(scan.WithProber(prober)))
		checking.manager.Store(m)
		notifications, unsubscribe := m.Subscribe()
		defer unsubscribe()

		first := Successful(m.Submit(ctx, scan.Request{Targets: targets.FromString("10.0.0.1")}))
		Eventually(prober.started).Should(Receive(Equal("10.0.0.1")))
		second := Successful(m.Submit(ctx, scan.Request{Targets: targets.FromString("10.0.0.2")}))

		Expect(m.Cancel(second)).To(BeTrue())
		Expect(Successful(m.Get(ctx, second)).Status).To(Equal(types.StatusCancelled))
		Eventually(notifications).Should(Receive(And(
			HaveField("Kind", KindCancelled),
			HaveField("ScanID", second))))

		Expect(m.Cancel(first)).To(BeTrue())
		close(prober.gate)
		Eventually(statusOf(ctx, m, first)).Should(Equal(types.StatusCancelled))
		Expect(checking.locked.Load()).To(BeFalse())
	})

})
