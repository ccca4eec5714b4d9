/*
Package targets turns target specifications into sets of host identifiers, and
port specifications into port lists.

A target [Spec] is either an explicit list of host identifiers, or an
expression string of comma-separated segments mixing these forms:

	10.0.0.7                   single IPv4 address
	router.lan                 host name
	192.168.1.0/30             CIDR block, network and broadcast included
	192.168.1.1-254            last-octet range
	192.168.1.1-192.168.1.50   last-octet range with full end address

Resolution is best-effort: malformed segments are silently dropped and never
fail the resolution as a whole. Whether an empty result is an error is up to
the caller.

List specs are only validated element by element; no range or CIDR expansion
applies to them.
*/
package targets
