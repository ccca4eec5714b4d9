// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"time"

	"github.com/siemens/netprobe/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
)

type fixedSpinner string

func (s fixedSpinner) Spinner() string { return string(s) }

func ms(v float64) *float64 { return &v }

func latency(v int64) *int64 { return &v }

var _ = Describe("live display", func() {

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(3 * time.Second).WithPolling(250 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
		})
	})

	It("spins and stops", func() {
		sp := newSpinner(10 * time.Millisecond)
		Expect(spinnerPhases).To(ContainElement(sp.Spinner()))
		Eventually(sp.Spinner).WithPolling(time.Millisecond).Should(Equal(spinnerPhases[2]))
		sp.Stop()
	})

	It("tracks scan events on the board", func() {
		b := newBoard("42", []string{"10.0.0.1", "10.0.0.2"})
		events := make(chan types.Event, 4)
		events <- &types.Started{ScanID: "42", Targets: 2}
		events <- &types.Progress{HostResult: types.HostResult{Host: "10.0.0.2", State: types.Down}}
		events <- &types.Done{Summary: types.Summary{ScanID: "42"}}
		close(events)
		b.Track(events)
		state := b.State()
		Expect(state.Started).To(BeTrue())
		Expect(state.Completed).To(Equal(1))
		Expect(state.Results).To(HaveKey("10.0.0.2"))
		Expect(state.Summary).NotTo(BeNil())
		Expect(state.Cancelling).To(BeFalse())
		b.Cancelling()
		Expect(b.State().Cancelling).To(BeTrue())
	})

	It("renders a scan in progress", func() {
		var buff bytes.Buffer
		r := newRenderer(&buff, "this host", fixedSpinner("* "))
		r.Render(boardState{
			Hosts: []string{"10.0.0.1", "gateway.lan"},
			Results: map[string]types.HostResult{
				"gateway.lan": {
					Host:       "gateway.lan",
					Address:    "10.0.0.254",
					State:      types.Up,
					AvgRtt:     ms(1.5),
					PacketLoss: 33.33,
					Ports: []types.PortResult{
						{Port: 22, Status: types.PortOpen, Latency: latency(1)},
						{Port: 23, Status: types.PortClosed, Latency: latency(1)},
					},
				},
			},
			Completed: 1,
			Started:   true,
		})
		out := buff.String()
		Expect(out).To(ContainSubstring("2 hosts"))
		Expect(out).To(ContainSubstring("from this host"))
		Expect(out).To(ContainSubstring("* 1/2"))
		Expect(out).To(MatchRegexp(`10\.0\.0\.1 .*\* probing`))
		Expect(out).To(ContainSubstring("✔ up"))
		Expect(out).To(ContainSubstring("10.0.0.254 rtt 1.5ms loss 33.33%"))
		Expect(out).To(ContainSubstring("22/open"))
		Expect(out).To(ContainSubstring("23/closed"))
	})

	It("renders finished and cancelled scans", func() {
		var buff bytes.Buffer
		r := newRenderer(&buff, "container foo", fixedSpinner("* "))
		results := map[string]types.HostResult{
			"10.0.0.1": {Host: "10.0.0.1", State: types.Down, PacketLoss: 100},
		}
		r.Render(boardState{
			Hosts:     []string{"10.0.0.1"},
			Results:   results,
			Completed: 1,
			Started:   true,
			Summary: &types.Summary{
				Hosts:      []types.HostResult{results["10.0.0.1"]},
				OutputPath: "data/42.json",
			},
		})
		Expect(buff.String()).To(ContainSubstring("from container foo done, 0/1 up"))
		Expect(buff.String()).To(ContainSubstring("× down"))
		Expect(buff.String()).To(ContainSubstring(" loss 100%"))
		Expect(buff.String()).To(ContainSubstring("saved to data/42.json"))

		buff.Reset()
		r.Render(boardState{
			Hosts:     []string{"10.0.0.1", "10.0.0.2"},
			Results:   results,
			Completed: 1,
			Started:   true,
			Summary:   &types.Summary{Cancelled: true},
		})
		Expect(buff.String()).To(ContainSubstring("cancelled, 1/2 done"))
		Expect(buff.String()).To(MatchRegexp(`10\.0\.0\.2 .*-- skipped`))

		buff.Reset()
		r.Render(boardState{
			Hosts: []string{"10.0.0.1"},
			Err:   "kaboom",
		})
		Expect(buff.String()).To(ContainSubstring("failed: kaboom"))
	})

})
