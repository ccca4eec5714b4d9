// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package jobs

// Event is a job queue lifecycle event.
type Event string

// Job queue lifecycle events.
const (
	Queued    Event = "queued"
	Started   Event = "started"
	Completed Event = "completed"
	Failed    Event = "failed"
	Cancelled Event = "cancelled"
)

// Notification informs about a job's lifecycle event; Err is only set for
// failed jobs.
type Notification struct {
	JobID string
	Event Event
	Err   error
}
