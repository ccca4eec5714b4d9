// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package scan

import (
	"errors"

	"github.com/siemens/netprobe/targets"
	"github.com/siemens/netprobe/types"
)

// ErrNoTargets signals a request whose target specification resolves to no
// hosts at all.
var ErrNoTargets = errors.New("no valid targets to probe")

// Defaults and minimum values of scan requests.
const (
	DefaultCount            = 3
	DefaultIntervalMs       = 1000
	DefaultMaxParallelHosts = 10
	DefaultPortTimeoutMs    = 2000

	MinCount            = 1
	MinIntervalMs       = 100
	MinMaxParallelHosts = 1
	MinPortTimeoutMs    = 500
)

// Request describes a scan as submitted by a client. Zero-valued numeric
// fields take their defaults.
type Request struct {
	Targets          targets.Spec  `json:"targets" yaml:"targets"`
	Ports            targets.Ports `json:"ports,omitempty" yaml:"ports,omitempty"`
	Count            int           `json:"count,omitempty" yaml:"count,omitempty"`
	IntervalMs       int           `json:"interval_ms,omitempty" yaml:"interval_ms,omitempty"`
	MaxParallelHosts int           `json:"maxParallelHosts,omitempty" yaml:"maxParallelHosts,omitempty"`
	PortTimeoutMs    int           `json:"portTimeoutMs,omitempty" yaml:"portTimeoutMs,omitempty"`
}

// Normalize returns a copy of the request with defaults applied to unset
// fields and values below their minimums raised to these minimums.
func (r Request) Normalize() Request {
	r.Count = normalize(r.Count, DefaultCount, MinCount)
	r.IntervalMs = normalize(r.IntervalMs, DefaultIntervalMs, MinIntervalMs)
	r.MaxParallelHosts = normalize(r.MaxParallelHosts, DefaultMaxParallelHosts, MinMaxParallelHosts)
	r.PortTimeoutMs = normalize(r.PortTimeoutMs, DefaultPortTimeoutMs, MinPortTimeoutMs)
	r.Ports = targets.FilterPorts(r.Ports)
	return r
}

func normalize(v, def, min int) int {
	switch {
	case v == 0:
		return def
	case v < min:
		return min
	}
	return v
}

// Resolve expands the request's targets and returns the hosts to probe
// together with the normalized scan options. It returns [ErrNoTargets] if
// there is nothing to probe.
func (r Request) Resolve() ([]string, types.Options, error) {
	hosts := r.Targets.Resolve()
	if len(hosts) == 0 {
		return nil, types.Options{}, ErrNoTargets
	}
	n := r.Normalize()
	return hosts, types.Options{
		Targets:          hosts,
		TargetCount:      len(hosts),
		Ports:            []int(n.Ports),
		Count:            n.Count,
		IntervalMs:       n.IntervalMs,
		MaxParallelHosts: n.MaxParallelHosts,
		PortTimeoutMs:    n.PortTimeoutMs,
	}, nil
}
