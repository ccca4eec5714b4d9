// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package targets

import (
	"strconv"
	"strings"
)

// MinPrefixLen is the shortest CIDR prefix length that gets expanded; larger
// blocks with more than 65536 addresses are dropped like malformed segments.
const MinPrefixLen = 16

// expandCIDR returns all addresses of a CIDR block "a.b.c.d/n", including the
// network and broadcast addresses. The base address is masked to the network
// boundary first, so "10.0.0.77/30" yields 10.0.0.76 to 10.0.0.79.
func expandCIDR(segment string) []string {
	base, maskstr, _ := strings.Cut(segment, "/")
	base = strings.TrimSpace(base)
	maskstr = strings.TrimSpace(maskstr)
	octets, ok := parseIPv4(base)
	if !ok {
		return nil
	}
	mask, ok := parsePrefixLen(maskstr)
	if !ok || mask < MinPrefixLen {
		return nil
	}
	hostbits := uint(32 - mask)
	count := uint64(1) << hostbits // 1 for /32
	network := ipv4ToUint32(octets) & ^uint32((uint64(1)<<hostbits)-1)
	addrs := make([]string, 0, count)
	for offset := uint64(0); offset < count; offset++ {
		addrs = append(addrs, uint32ToIPv4(network+uint32(offset)))
	}
	return addrs
}

// parsePrefixLen parses a decimal prefix length of 0..32.
func parsePrefixLen(s string) (int, bool) {
	if s == "" || len(s) > 2 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil || v > 32 {
		return 0, false
	}
	return v, true
}
