// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package targets

import (
	"regexp"
	"strconv"
	"strings"
)

// hostnameRE matches host names and FQDNs made of letters, digits, and
// hyphens with labels of at most 63 characters; the leading hyphen check is
// done separately as RE2 lacks lookaheads.
var hostnameRE = regexp.MustCompile(`^(?:[a-zA-Z0-9-]{1,63}\.)*[a-zA-Z0-9-]{1,63}$`)

// IsIPv4 returns true if s is a dotted-quad IPv4 address with decimal octets
// in the range of 0..255.
func IsIPv4(s string) bool {
	_, ok := parseIPv4(s)
	return ok
}

// IsHostname returns true if s is a syntactically valid host name.
func IsHostname(s string) bool {
	if s == "" || s[0] == '-' {
		return false
	}
	return hostnameRE.MatchString(s)
}

// IsHostID returns true if s is either an IPv4 address or a host name.
func IsHostID(s string) bool {
	return IsIPv4(s) || IsHostname(s)
}

// parseIPv4 returns the four octets of a dotted-quad IPv4 address.
func parseIPv4(s string) ([4]int, bool) {
	var octets [4]int
	fields := strings.Split(s, ".")
	if len(fields) != 4 {
		return octets, false
	}
	for idx, field := range fields {
		v, ok := parseOctet(field)
		if !ok {
			return octets, false
		}
		octets[idx] = v
	}
	return octets, true
}

// parseOctet parses a decimal octet value of 0..255; signs and whitespace are
// not accepted.
func parseOctet(s string) (int, bool) {
	if len(s) == 0 || len(s) > 3 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil || v > 255 {
		return 0, false
	}
	return v, true
}

// ipv4ToUint32 packs the four octets into a 32-bit address.
func ipv4ToUint32(o [4]int) uint32 {
	return uint32(o[0])<<24 | uint32(o[1])<<16 | uint32(o[2])<<8 | uint32(o[3])
}

// uint32ToIPv4 renders a 32-bit address in dotted-quad notation.
func uint32ToIPv4(ip uint32) string {
	var b strings.Builder
	b.Grow(15)
	b.WriteString(strconv.Itoa(int(ip >> 24)))
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(int(ip >> 16 & 0xff)))
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(int(ip >> 8 & 0xff)))
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(int(ip & 0xff)))
	return b.String()
}
