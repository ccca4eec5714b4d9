// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/siemens/netprobe/types"

	"github.com/muesli/termenv"
)

var (
	probingStyle = termenv.Style{}.Foreground(termenv.ANSIYellow)
	upStyle      = termenv.Style{}.Foreground(termenv.ANSIGreen)
	downStyle    = termenv.Style{}.Foreground(termenv.ANSIRed)
	skippedStyle = termenv.Style{}.Faint()
)

var headingStyle = termenv.Style{}.Bold()

// portStyles maps port probe outcomes to their display styles.
var portStyles = map[types.PortStatus]termenv.Style{
	types.PortOpen:    termenv.Style{}.Foreground(termenv.ANSIGreen),
	types.PortClosed:  termenv.Style{}.Foreground(termenv.ANSIRed),
	types.PortTimeout: termenv.Style{}.Foreground(termenv.ANSIYellow),
	types.PortError:   termenv.Style{}.Foreground(termenv.ANSIMagenta),
}
