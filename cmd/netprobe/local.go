// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/siemens/netprobe/archive"
	"github.com/siemens/netprobe/scan"
	"github.com/siemens/netprobe/types"

	"github.com/google/uuid"
	"github.com/gosuri/uilive"
)

// localOptions control running a scan locally.
type localOptions struct {
	DataDir  string        // archive directory.
	Save     bool          // archive the scan summary.
	JSON     bool          // no live display, print the summary as JSON instead.
	Spinner  time.Duration // spinner and display update interval.
	Scanning []scan.Option // additional scan options.
}

// ScanAndReport runs the scan request locally, probing from the specified
// perspective, while rendering a live display of the scan's progress to w.
// The first interrupt signal stops the scan from starting on further hosts,
// while a second interrupt aborts the scan.
func ScanAndReport(ctx context.Context, w io.Writer, req scan.Request, persp *perspective, opts localOptions) (*types.Summary, error) {
	hosts, _, err := req.Resolve()
	if err != nil {
		return nil, err
	}
	scanOpts := append([]scan.Option{scan.WithProbeOptions(persp.Options()...)}, opts.Scanning...)
	if opts.Save {
		scanOpts = append(scanOpts, scan.WithArchiver(archive.New(opts.DataDir)))
	}
	id := uuid.NewString()
	s, events := scan.New(id, req, scanOpts...)
	b := newBoard(id, hosts)

	runctx, abort := context.WithCancel(ctx)
	defer abort()
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	go func() {
		for {
			select {
			case <-interrupts:
				if b.State().Cancelling {
					abort()
					return
				}
				b.Cancelling()
				s.Cancel()
			case <-runctx.Done():
				return
			}
		}
	}()

	// The events get tracked on the board, while rendering only stops after
	// tracking has finished because the scan closed its event channel. We
	// then render a final update and end rendering, signalling the end of our
	// activities via renderingDone.
	trackingDone := make(chan struct{})
	renderingDone := make(chan struct{})
	go func() {
		b.Track(events)
		close(trackingDone)
	}()
	go func() {
		defer close(renderingDone)
		if opts.JSON {
			<-trackingDone
			return
		}
		// Dunno what uilive's background updating mode using Start() is good
		// for? It may trigger anytime with the rendering into the buffer not
		// yet complete, so we explicitly flush after each complete rendering.
		term := uilive.New()
		term.Out = w
		sp := newSpinner(opts.Spinner)
		defer sp.Stop()
		r := newRenderer(term, persp.String(), sp)
		render := func() {
			r.Render(b.State())
			_ = term.Flush()
		}
		render()
		ticker := time.NewTicker(opts.Spinner)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				render()
			case <-trackingDone:
				render()
				return
			}
		}
	}()

	summary, err := s.Run(runctx)
	<-renderingDone
	if err != nil {
		return nil, err
	}
	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}
