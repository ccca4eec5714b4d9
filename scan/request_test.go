// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package scan

import (
	"encoding/json"

	"github.com/siemens/netprobe/targets"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("scan requests", func() {

	DescribeTable("normalizing",
		func(req Request, count, interval, hosts, timeout int) {
			n := req.Normalize()
			Expect(n.Count).To(Equal(count))
			Expect(n.IntervalMs).To(Equal(interval))
			Expect(n.MaxParallelHosts).To(Equal(hosts))
			Expect(n.PortTimeoutMs).To(Equal(timeout))
		},
		Entry("defaults", Request{}, 3, 1000, 10, 2000),
		Entry("below minimums", Request{Count: -1, IntervalMs: 10, MaxParallelHosts: -5, PortTimeoutMs: 1}, 1, 100, 1, 500),
		Entry("explicit values", Request{Count: 5, IntervalMs: 250, MaxParallelHosts: 32, PortTimeoutMs: 750}, 5, 250, 32, 750),
	)

	It("drops invalid ports", func() {
		n := Request{Ports: targets.Ports{0, 22, 22, 70000, 443}}.Normalize()
		Expect(n.Ports).To(Equal(targets.Ports{22, 443}))
	})

	It("resolves targets and echoes normalized options", func() {
		hosts, opts, err := Request{
			Targets: targets.FromString("10.0.0.1-10.0.0.3"),
			Ports:   targets.Ports{80},
		}.Resolve()
		Expect(err).NotTo(HaveOccurred())
		Expect(hosts).To(Equal([]string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}))
		Expect(opts.TargetCount).To(Equal(3))
		Expect(opts.Targets).To(Equal(hosts))
		Expect(opts.Ports).To(Equal([]int{80}))
		Expect(opts.Count).To(Equal(DefaultCount))
		Expect(opts.IntervalMs).To(Equal(DefaultIntervalMs))
	})

	It("rejects requests without valid targets", func() {
		_, _, err := Request{Targets: targets.FromList("bad_host!")}.Resolve()
		Expect(err).To(MatchError(ErrNoTargets))
		_, _, err = Request{}.Resolve()
		Expect(err).To(MatchError(ErrNoTargets))
	})

	It("decodes JSON requests", func() {
		var req Request
		Expect(json.Unmarshal([]byte(`{
			"targets": ["bad_host!", "10.0.0.5"],
			"ports": "22,80-81",
			"count": 2,
			"interval_ms": 500
		}`), &req)).To(Succeed())
		hosts, opts, err := req.Resolve()
		Expect(err).NotTo(HaveOccurred())
		Expect(hosts).To(ConsistOf("10.0.0.5"))
		Expect(opts.Ports).To(Equal([]int{22, 80, 81}))
		Expect(opts.Count).To(Equal(2))
		Expect(opts.IntervalMs).To(Equal(500))
	})

})
