// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

// Yet another (braille) spinner.

package main

import (
	"sync/atomic"
	"time"
)

var spinnerPhases = []string{"⠉ ", "⠘ ", "⠰ ", "⠤ ", "⠆ ", "⠃ "}

// spinner is yet another blindingly simple spinner; just enough to get the job
// done, no bells, no frills.
type spinner struct {
	phase atomic.Int32
	done  chan struct{}
}

// newSpinner returns a new spinner already spinning in steps of the specified
// interval; call Stop to stop it and release its background resources.
func newSpinner(interval time.Duration) *spinner {
	s := &spinner{done: make(chan struct{})}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.phase.Store((s.phase.Load() + 1) % int32(len(spinnerPhases)))
			case <-s.done:
				return
			}
		}
	}()
	return s
}

// Spinner returns the spinner string for the current phase.
func (s *spinner) Spinner() string {
	return spinnerPhases[s.phase.Load()]
}

// Stop the spinner.
func (s *spinner) Stop() {
	close(s.done)
}
