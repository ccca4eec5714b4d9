// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package store

import (
	"errors"
	"time"

	"github.com/siemens/netprobe/types"
)

// ErrNotFound signals an unknown scan ID.
var ErrNotFound = errors.New("scan not found")

// DefaultHistory is the default number of records a store keeps.
const DefaultHistory = 100

// Totals counts the hosts of a scan.
type Totals struct {
	Total int `json:"total"`
	Up    int `json:"up"`
}

// Record is the live state of a scan.
type Record struct {
	ID         string                      `json:"id"`
	Status     types.Status                `json:"status"`
	Targets    string                      `json:"targets"`
	CreatedAt  time.Time                   `json:"createdAt"`
	UpdatedAt  time.Time                   `json:"updatedAt"`
	StartedAt  *time.Time                  `json:"startedAt,omitempty"`
	FinishedAt *time.Time                  `json:"finishedAt,omitempty"`
	Options    *types.Options              `json:"options,omitempty"`
	Hosts      map[string]types.HostResult `json:"hosts"`
	Summary    Totals                      `json:"summary"`
	OutputPath string                      `json:"outputPath,omitempty"`
	Result     *types.Summary              `json:"result,omitempty"`
	Error      string                      `json:"error,omitempty"`
}

// NewRecord returns a new queued record.
func NewRecord(id string, targets string, total int) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:        id,
		Status:    types.StatusQueued,
		Targets:   targets,
		CreatedAt: now,
		UpdatedAt: now,
		Hosts:     map[string]types.HostResult{},
		Summary:   Totals{Total: total},
	}
}

// SetStatus transitions the record into the next status, unless the record
// is already in a terminal status. It returns true if the status was changed.
func (r *Record) SetStatus(next types.Status) bool {
	if !r.Status.CanTransition(next) {
		return false
	}
	r.Status = next
	now := time.Now().UTC()
	r.UpdatedAt = now
	if next.IsTerminal() && r.FinishedAt == nil {
		r.FinishedAt = &now
	}
	return true
}

// Apply a scan event to the record, returning true if the record changed.
// Events arriving after the record reached a terminal status are ignored,
// with the exception of a final summary for a cancelled scan.
func (r *Record) Apply(ev types.Event) bool {
	switch ev := ev.(type) {
	case *types.Started:
		if !r.SetStatus(types.StatusRunning) {
			return false
		}
		startedAt := ev.StartedAt
		r.StartedAt = &startedAt
		r.Summary.Total = ev.Targets
	case *types.Progress:
		if r.Status.IsTerminal() {
			return false
		}
		r.Hosts[ev.Host] = ev.HostResult
		r.Summary.Up = up(r.Hosts)
		r.UpdatedAt = time.Now().UTC()
	case *types.Done:
		final := types.StatusDone
		if ev.Cancelled {
			final = types.StatusCancelled
		}
		if !r.SetStatus(final) && !(r.Status == types.StatusCancelled && r.Result == nil) {
			return false
		}
		summary := ev.Summary
		r.Result = &summary
		r.Options = &summary.Options
		r.OutputPath = summary.OutputPath
		finishedAt := summary.FinishedAt
		r.FinishedAt = &finishedAt
		for _, host := range summary.Hosts {
			r.Hosts[host.Host] = host
		}
		r.Summary = Totals{Total: summary.Options.TargetCount, Up: summary.Up()}
		r.UpdatedAt = time.Now().UTC()
	case *types.Failed:
		if !r.SetStatus(types.StatusError) {
			return false
		}
		r.Error = ev.Message
	default:
		return false
	}
	return true
}

// Clone returns a copy of the record that can be modified without affecting
// the original.
func (r *Record) Clone() *Record {
	c := *r
	c.Hosts = make(map[string]types.HostResult, len(r.Hosts))
	for host, result := range r.Hosts {
		c.Hosts[host] = result
	}
	return &c
}

func up(hosts map[string]types.HostResult) int {
	n := 0
	for _, h := range hosts {
		if h.Alive() {
			n++
		}
	}
	return n
}
