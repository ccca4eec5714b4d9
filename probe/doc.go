/*
Package probe implements the host prober: it measures the reachability, echo
round-trip times and packet loss of a single host, and then probes a list of
TCP ports on that host one after another.

	          +-------+
	string -->| Probe |--> types.HostResult
	          +-------+

A [Prober] never fails: all failures, such as lost echo replies, refused
connections, timeouts, or probes that could not even be set up, are encoded in
the returned [types.HostResult]. This way, one host's trouble cannot abort a
scan over many hosts.

Echo attempts are sequential, separated by the configured interval. Each
attempt gets a timeout of the interval rounded up to full seconds, plus one
second of slack. Port probes are sequential, too, so that a scan never bursts
lots of simultaneous connection attempts at the same target.

The prober can optionally operate inside a different network namespace, such
as the one of a container, see [InNetworkNamespace], and it can resolve host
names through a specific DNS server instead of the system resolver, see
[WithResolver].

# Acknowledgements

Under its hood, [Prober] leverages [go-ping/ping] for sending echo requests.

[go-ping/ping]: https://github.com/go-ping/ping
*/
package probe
