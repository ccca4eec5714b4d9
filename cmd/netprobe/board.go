// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"sync"

	"github.com/siemens/netprobe/types"
)

// board keeps track of a scan's progress as reported by its events, for
// rendering the live terminal display. A board is safe for concurrent use.
type board struct {
	mu         sync.Mutex
	scanID     string
	hosts      []string // in target order.
	results    map[string]types.HostResult
	completed  int
	started    bool
	cancelling bool
	summary    *types.Summary
	err        string
}

// boardState is a consistent snapshot of a board.
type boardState struct {
	ScanID     string
	Hosts      []string
	Results    map[string]types.HostResult
	Completed  int
	Started    bool
	Cancelling bool
	Summary    *types.Summary
	Err        string
}

func newBoard(scanID string, hosts []string) *board {
	return &board{
		scanID:  scanID,
		hosts:   hosts,
		results: map[string]types.HostResult{},
	}
}

// Track the events of a scan until the event channel gets closed.
func (b *board) Track(events <-chan types.Event) {
	for ev := range events {
		b.apply(ev)
	}
}

func (b *board) apply(ev types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch ev := ev.(type) {
	case *types.Started:
		b.started = true
	case *types.Progress:
		b.results[ev.Host] = ev.HostResult
		b.completed++
	case *types.Done:
		summary := ev.Summary
		b.summary = &summary
	case *types.Failed:
		b.err = ev.Message
	}
}

// Cancelling marks the scan as being cancelled.
func (b *board) Cancelling() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelling = true
}

// State returns a snapshot of the board.
func (b *board) State() boardState {
	b.mu.Lock()
	defer b.mu.Unlock()
	results := make(map[string]types.HostResult, len(b.results))
	for host, result := range b.results {
		results[host] = result
	}
	return boardState{
		ScanID:     b.scanID,
		Hosts:      b.hosts,
		Results:    results,
		Completed:  b.completed,
		Started:    b.started,
		Cancelling: b.cancelling,
		Summary:    b.summary,
		Err:        b.err,
	}
}
