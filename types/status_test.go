// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types_test

import (
	"encoding/json"

	"github.com/siemens/netprobe/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gstruct"
	. "github.com/thediveo/success"
)

var _ = Describe("scan status", func() {

	It("stringifies", func() {
		Expect(types.StatusRunning.String()).To(Equal("running"))
		Expect(types.Status("foo").String()).To(Equal(`Status("foo")`))
	})

	DescribeTable("terminal states",
		func(s types.Status, terminal bool) {
			Expect(s.IsTerminal()).To(Equal(terminal))
		},
		Entry("queued", types.StatusQueued, false),
		Entry("running", types.StatusRunning, false),
		Entry("done", types.StatusDone, true),
		Entry("error", types.StatusError, true),
		Entry("cancelled", types.StatusCancelled, true),
	)

	It("never leaves a terminal state", func() {
		for _, from := range []types.Status{types.StatusDone, types.StatusError, types.StatusCancelled} {
			for _, to := range []types.Status{
				types.StatusQueued, types.StatusRunning, types.StatusDone, types.StatusError, types.StatusCancelled,
			} {
				Expect(from.CanTransition(to)).To(BeFalse(), "%s -> %s", from, to)
			}
		}
		Expect(types.StatusQueued.CanTransition(types.StatusRunning)).To(BeTrue())
		Expect(types.StatusRunning.CanTransition(types.StatusCancelled)).To(BeTrue())
		Expect(types.StatusRunning.CanTransition(types.StatusQueued)).To(BeFalse())
	})

})

var _ = Describe("host results", func() {

	It("rounds to two decimals", func() {
		Expect(types.Round2(33.33333)).To(Equal(33.33))
		Expect(types.Round2(66.666666)).To(Equal(66.67))
		Expect(types.Round2(0)).To(Equal(0.0))
	})

	It("marshals missing RTTs and latencies as null", func() {
		h := types.HostResult{
			Host:       "10.0.0.1",
			State:      types.Down,
			PacketLoss: 100,
			Samples:    []float64{},
			Ports:      []types.PortResult{{Port: 22, Status: types.PortError}},
		}
		var m map[string]any
		Expect(json.Unmarshal(Successful(json.Marshal(h)), &m)).To(Succeed())
		Expect(m).To(MatchKeys(IgnoreExtras, Keys{
			"avgRtt": BeNil(),
			"state":  Equal("DOWN"),
			"ports": ConsistOf(MatchKeys(IgnoreExtras, Keys{
				"latency": BeNil(),
				"status":  Equal("error"),
			})),
		}))
	})

	It("counts hosts that are up", func() {
		s := types.Summary{Hosts: []types.HostResult{{State: types.Up}, {State: types.Down}, {State: types.Up}}}
		Expect(s.Up()).To(Equal(2))
	})

	It("names its events", func() {
		var ev types.Event = &types.Progress{HostResult: types.HostResult{ScanID: "42"}}
		Expect(ev.Scan()).To(Equal("42"))
		Expect(ev.Kind()).To(Equal(types.EventProgress))
		Expect((&types.Failed{ScanID: "1"}).Kind()).To(Equal(types.EventError))
	})

})
