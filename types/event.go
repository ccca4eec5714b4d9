// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import "time"

// EventKind names the kind of a scan [Event], such as "started" or "done".
type EventKind string

// The kinds of scan events.
const (
	EventStarted  EventKind = "started"
	EventProgress EventKind = "progress"
	EventDone     EventKind = "done"
	EventError    EventKind = "error"
)

// Event is a scan lifecycle event; it is one of [Started], [Progress], [Done],
// or [Failed].
type Event interface {
	Scan() string    // ID of the scan this event belongs to.
	Kind() EventKind // kind of event.
}

// Started signals that a scan has resolved its targets and begins probing.
type Started struct {
	ScanID    string    `json:"scan_id"`
	StartedAt time.Time `json:"startedAt"`
	Targets   int       `json:"targets"`
}

// Progress carries the result of a single host as soon as it has been
// probed.
type Progress struct {
	HostResult
}

// Done carries the final scan summary.
type Done struct {
	Summary
}

// Failed signals that a scan aborted with an error.
type Failed struct {
	ScanID  string `json:"scan_id"`
	Message string `json:"error"`
}

var (
	_ Event = (*Started)(nil)
	_ Event = (*Progress)(nil)
	_ Event = (*Done)(nil)
	_ Event = (*Failed)(nil)
)

func (e *Started) Scan() string    { return e.ScanID }
func (e *Started) Kind() EventKind { return EventStarted }

func (e *Progress) Scan() string    { return e.ScanID }
func (e *Progress) Kind() EventKind { return EventProgress }

func (e *Done) Scan() string    { return e.ScanID }
func (e *Done) Kind() EventKind { return EventDone }

func (e *Failed) Scan() string    { return e.ScanID }
func (e *Failed) Kind() EventKind { return EventError }
