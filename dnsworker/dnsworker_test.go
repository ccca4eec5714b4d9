// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dnsworker

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/namspill"
	. "github.com/thediveo/success"
)

// knownNames answers queries for only a few names.
var knownNames = dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	switch r.Question[0].Name {
	case "gateway.example.org.":
		m.Answer = append(m.Answer,
			Successful(dns.NewRR("gateway.example.org. 60 IN A 10.0.0.1")),
			Successful(dns.NewRR("gateway.example.org. 60 IN A 10.0.0.2")))
	case "v6only.example.org.":
	default:
		m.Rcode = dns.RcodeNameError
	}
	_ = w.WriteMsg(m)
})

// nameserver starts a local UDP name server knowing only a few names, and
// returns its address.
func nameserver() string {
	pc := Successful(net.ListenPacket("udp", "127.0.0.1:0"))
	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler:           knownNames,
	}
	go func() { _ = srv.ActivateAndServe() }()
	Eventually(started).Should(BeClosed())
	DeferCleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

// tcpNameserver starts a local TCP name server that closes client
// connections after they have been idle for the specified duration.
func tcpNameserver(idle time.Duration) string {
	l := Successful(net.Listen("tcp", "127.0.0.1:0"))
	started := make(chan struct{})
	srv := &dns.Server{
		Listener:          l,
		NotifyStartedFunc: func() { close(started) },
		IdleTimeout:       func() time.Duration { return idle },
		Handler:           knownNames,
	}
	go func() { _ = srv.ActivateAndServe() }()
	Eventually(started).Should(BeClosed())
	DeferCleanup(func() { _ = srv.Shutdown() })
	return l.Addr().String()
}

var _ = Describe("DNS client connection pool", func() {

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(3 * time.Second).WithPolling(250 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
			Expect(Tasks()).To(BeUniformlyNamespaced())
		})
	})

	It("runs a goroutine-limited set of DNS tasks", NodeTimeout(30*time.Second), func(ctx context.Context) {
		const poolsize = 3

		dnsclnt := dns.Client{Net: "udp"}
		// We're never going to contact this DNS "server", we just need just
		// some address so we can allocate some connections.
		pool := Successful(New(ctx, poolsize, &dnsclnt, "127.0.0.1:53"))

		dnsconns := map[*dns.Conn]int{}
		var mu sync.Mutex
		taskfn := func(conn *dns.Conn) {
			mu.Lock()
			defer mu.Unlock()
			dnsconns[conn]++
			time.Sleep(100 * time.Millisecond)
		}

		numtasks := poolsize * 2
		for i := 0; i < numtasks; i++ {
			pool.Submit(taskfn)
		}
		pool.StopWait()
		pool.StopWait()

		Expect(len(dnsconns)).To(BeNumerically("<=", poolsize))
		total := 0
		for _, count := range dnsconns {
			total += count
		}
		Expect(total).To(Equal(numtasks), "number of submitted and executed tasks mismatch")
	})

	It("looks up IPv4 addresses", NodeTimeout(30*time.Second), func(ctx context.Context) {
		dnsclnt := dns.Client{Net: "udp", Timeout: 2 * time.Second}
		pool := Successful(New(ctx, 2, &dnsclnt, nameserver()))
		defer pool.StopWait()

		Expect(pool.LookupIPv4(ctx, "gateway.example.org")).To(
			ConsistOf("10.0.0.1", "10.0.0.2"))
	})

	It("redials connections closed by the name server", NodeTimeout(30*time.Second), func(ctx context.Context) {
		dnsclnt := dns.Client{Net: "tcp", Timeout: 2 * time.Second}
		pool := Successful(New(ctx, 1, &dnsclnt, tcpNameserver(200*time.Millisecond)))
		defer pool.StopWait()

		Expect(pool.LookupIPv4(ctx, "gateway.example.org")).To(
			ConsistOf("10.0.0.1", "10.0.0.2"))
		time.Sleep(600 * time.Millisecond) // ...server drops the idle connection
		Expect(pool.LookupIPv4(ctx, "gateway.example.org")).To(
			ConsistOf("10.0.0.1", "10.0.0.2"))
		_, err := pool.LookupIPv4(ctx, "nowhere.example.org")
		Expect(err).To(MatchError(ContainSubstring("NXDOMAIN")))
	})

	It("reports names without A records", NodeTimeout(30*time.Second), func(ctx context.Context) {
		dnsclnt := dns.Client{Net: "udp", Timeout: 2 * time.Second}
		pool := Successful(New(ctx, 1, &dnsclnt, nameserver()))
		defer pool.StopWait()

		_, err := pool.LookupIPv4(ctx, "v6only.example.org")
		Expect(errors.Is(err, ErrNoAnswer)).To(BeTrue())
		_, err = pool.LookupIPv4(ctx, "nowhere.example.org")
		Expect(err).To(MatchError(ContainSubstring("NXDOMAIN")))
	})

	It("reports resolution failures", NodeTimeout(30*time.Second), func(ctx context.Context) {
		dnsclnt := dns.Client{Net: "udp", Timeout: time.Second}
		pool := Successful(New(ctx, 1, &dnsclnt, "127.0.0.1:1"))
		ch := make(chan struct{})

		pool.Resolve(ctx,
			"tld.rottennet.",
			func(addrs []string, err error) {
				defer GinkgoRecover()
				Expect(err).To(HaveOccurred())
				Expect(addrs).To(BeEmpty())
				close(ch)
			})
		Eventually(ch).WithTimeout(5 * time.Second).Should(BeClosed())
		pool.StopWait()
	})

	It("skips lookups for cancelled contexts", NodeTimeout(30*time.Second), func(ctx context.Context) {
		dnsclnt := dns.Client{Net: "udp"}
		pool := Successful(New(ctx, 1, &dnsclnt, "127.0.0.1:1"))
		defer pool.StopWait()

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := pool.LookupIPv4(cctx, "foo.example.org")
		Expect(err).To(MatchError(context.Canceled))
	})

})
