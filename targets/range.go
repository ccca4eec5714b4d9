// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package targets

import (
	"strconv"
	"strings"
)

// expandRange expands a last-octet range, either in the form "a.b.c.x-y" or
// "a.b.c.x-a.b.c.y". Ranges spanning different /24 prefixes, reversed ranges,
// and end octets beyond 255 yield nothing.
func expandRange(segment string) []string {
	parts := strings.Split(segment, "-")
	if len(parts) != 2 {
		return nil
	}
	start, ok := parseIPv4(strings.TrimSpace(parts[0]))
	if !ok {
		return nil
	}
	endpart := strings.TrimSpace(parts[1])
	var last int
	if end, ok := parseIPv4(endpart); ok {
		if end[0] != start[0] || end[1] != start[1] || end[2] != start[2] {
			return nil
		}
		last = end[3]
	} else {
		v, ok := parseOctet(endpart)
		if !ok {
			return nil
		}
		last = v
	}
	if last < start[3] {
		return nil
	}
	prefix := strconv.Itoa(start[0]) + "." + strconv.Itoa(start[1]) + "." + strconv.Itoa(start[2]) + "."
	addrs := make([]string, 0, last-start[3]+1)
	for octet := start[3]; octet <= last; octet++ {
		addrs = append(addrs, prefix+strconv.Itoa(octet))
	}
	return addrs
}
