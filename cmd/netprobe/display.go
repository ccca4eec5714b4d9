// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/siemens/netprobe/types"
)

// renderer renders the terminal display of a scan, based on board snapshots
// passed to its Render method.
type renderer struct {
	Indentation int
	perspective string
	w           io.Writer
	spinner     spinnerPhase
}

// spinnerPhase returns the current spinner phase string.
type spinnerPhase interface {
	Spinner() string
}

// newRenderer returns a renderer rendering to the specified io.Writer.
// perspective describes from where the hosts are probed.
func newRenderer(w io.Writer, perspective string, sp spinnerPhase) *renderer {
	return &renderer{
		Indentation: 3,
		perspective: perspective,
		w:           w,
		spinner:     sp,
	}
}

// Render the given board state.
func (r *renderer) Render(state boardState) {
	total := len(state.Hosts)
	fmt.Fprintf(r.w, "probing %s from %s ",
		headingStyle.Styled(plural(total, "host")), r.perspective)
	switch {
	case state.Err != "":
		fmt.Fprint(r.w, downStyle.Styled("failed: "+state.Err))
	case state.Summary != nil && state.Summary.Cancelled:
		fmt.Fprintf(r.w, "cancelled, %d/%d done", state.Completed, total)
	case state.Summary != nil:
		fmt.Fprintf(r.w, "done, %d/%d up", state.Summary.Up(), total)
	case state.Cancelling:
		fmt.Fprintf(r.w, "cancelling %s%d/%d", r.spinner.Spinner(), state.Completed, total)
	case !state.Started:
		fmt.Fprint(r.w, "...")
	default:
		fmt.Fprintf(r.w, "%s%d/%d", r.spinner.Spinner(), state.Completed, total)
	}
	fmt.Fprintln(r.w)

	// For neat display, determine the length of the longest host identifier
	// so that the results columns don't zig-zag around.
	maxlen := 0
	for _, host := range state.Hosts {
		if l := len(host); l > maxlen {
			maxlen = l
		}
	}
	finished := state.Summary != nil || state.Err != ""
	for _, host := range state.Hosts {
		fmt.Fprintf(r.w, "%-*s%-*s ", r.Indentation, "", maxlen, host)
		result, ok := state.Results[host]
		switch {
		case ok:
			r.renderResult(result)
		case finished || state.Cancelling:
			fmt.Fprint(r.w, skippedStyle.Styled("-- skipped"))
		case state.Started:
			fmt.Fprint(r.w, probingStyle.Styled(r.spinner.Spinner()+"probing"))
		}
		fmt.Fprintln(r.w)
	}
	if state.Summary != nil && state.Summary.OutputPath != "" {
		fmt.Fprintf(r.w, "saved to %s\n", state.Summary.OutputPath)
	}
}

// renderResult renders the echo and port probe details of a single host.
func (r *renderer) renderResult(result types.HostResult) {
	if result.Alive() {
		fmt.Fprint(r.w, upStyle.Styled("✔ up  "))
	} else {
		fmt.Fprint(r.w, downStyle.Styled("× down"))
	}
	if result.Address != "" && result.Address != result.Host {
		fmt.Fprintf(r.w, " %s", result.Address)
	}
	if result.AvgRtt != nil {
		fmt.Fprintf(r.w, " rtt %sms", formatFloat(*result.AvgRtt))
	}
	fmt.Fprintf(r.w, " loss %s%%", formatFloat(result.PacketLoss))
	for _, port := range result.Ports {
		fmt.Fprint(r.w, " ")
		fmt.Fprint(r.w, portStyles[port.Status].Styled(strconv.Itoa(port.Port)+"/"+string(port.Status)))
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
