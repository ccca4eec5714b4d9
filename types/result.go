// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import (
	"math"
	"time"
)

// PortResult is the outcome of a TCP connect probe to a single port.
type PortResult struct {
	Port    int        `json:"port"`
	Status  PortStatus `json:"status"`
	Latency *int64     `json:"latency"`         // ms until connect or failure; nil if untimed.
	Error   string     `json:"error,omitempty"` // setup failure details for PortError.
}

// HostResult is the outcome of probing a single host: reachability, echo RTT
// samples, packet loss, and the optional port probes.
type HostResult struct {
	ScanID     string       `json:"scan_id"`
	Host       string       `json:"host"`
	Address    string       `json:"address,omitempty"` // resolved IPv4 address, if host is a name.
	State      HostState    `json:"state"`
	AvgRtt     *float64     `json:"avgRtt"`     // ms, rounded to 2 decimals; nil if no replies.
	PacketLoss float64      `json:"packetLoss"` // percent, rounded to 2 decimals.
	Samples    []float64    `json:"samples"`    // RTTs of successful echo attempts, in ms.
	Ports      []PortResult `json:"ports"`
	Timestamp  time.Time    `json:"timestamp"`
	Progress   float64      `json:"progress"` // completed/total hosts when this result was emitted.
}

// Alive returns true if the host answered at least one echo attempt.
func (h *HostResult) Alive() bool { return h.State == Up }

// Options are the normalized scan parameters, echoed in the [Summary].
type Options struct {
	Targets          []string `json:"targets"`
	TargetCount      int      `json:"targetCount"`
	Ports            []int    `json:"ports"`
	Count            int      `json:"count"`
	IntervalMs       int      `json:"interval_ms"`
	MaxParallelHosts int      `json:"maxParallelHosts"`
	PortTimeoutMs    int      `json:"portTimeoutMs"`
}

// Interval returns the echo interval as a duration.
func (o Options) Interval() time.Duration {
	return time.Duration(o.IntervalMs) * time.Millisecond
}

// PortTimeout returns the per-port connect timeout as a duration.
func (o Options) PortTimeout() time.Duration {
	return time.Duration(o.PortTimeoutMs) * time.Millisecond
}

// Summary is the final result of a scan, with the host results in completion
// order.
type Summary struct {
	ScanID     string       `json:"scan_id"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Options    Options      `json:"options"`
	Hosts      []HostResult `json:"hosts"`
	Cancelled  bool         `json:"cancelled,omitempty"`
	OutputPath string       `json:"outputPath,omitempty"`
}

// Up returns the number of hosts found to be up.
func (s *Summary) Up() int {
	up := 0
	for idx := range s.Hosts {
		if s.Hosts[idx].Alive() {
			up++
		}
	}
	return up
}

// Round2 rounds a float to 2 decimal places, the precision used for RTTs and
// packet loss.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
