// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import "fmt"

// Status is the lifecycle state of a scan: queued, running, and finally done,
// error, or cancelled.
type Status string

// The lifecycle states of a scan.
const (
	StatusQueued    Status = "queued"    // accepted, waiting for a free job slot.
	StatusRunning   Status = "running"   // probing hosts.
	StatusDone      Status = "done"      // all started hosts probed, summary available.
	StatusError     Status = "error"     // failed, see the error message.
	StatusCancelled Status = "cancelled" // cancelled while queued or running.
)

// String returns the clear-text representation of a Status value.
func (s Status) String() string {
	switch s {
	case StatusQueued, StatusRunning, StatusDone, StatusError, StatusCancelled:
		return string(s)
	}
	return fmt.Sprintf("Status(%q)", string(s))
}

// IsTerminal returns true if the status is final, so no further transitions
// can happen anymore.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDone, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition returns true if a scan in status s may move on to status
// next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusRunning || next == StatusError || next == StatusCancelled
	case StatusRunning:
		return next == StatusDone || next == StatusError || next == StatusCancelled
	default:
		return false
	}
}

// HostState tells whether a host answered at least one echo probe.
type HostState string

// The reachability states of a host.
const (
	Up   HostState = "UP"
	Down HostState = "DOWN"
)

// PortStatus is the outcome of a single TCP connect probe.
type PortStatus string

// The TCP connect probe outcomes.
const (
	PortOpen    PortStatus = "open"    // connection established.
	PortClosed  PortStatus = "closed"  // connection refused or otherwise failed.
	PortTimeout PortStatus = "timeout" // no answer within the port timeout.
	PortError   PortStatus = "error"   // the probe could not even be set up.
)
