/*
Package dnsworker implements a size-limited pool of DNS client connections, all
talking to the same DNS server. Netprobe uses a [Pool] of “DNS workers” to
resolve the host names in scan targets into IPv4 addresses when the user
specifies a particular name server instead of leaving this to the system
resolver.

# Usage

	dnsclnt := dns.Client{Net: "udp"}
	pool, err := dnsworker.New(
	    context.Background(),
	    4,              // number of parallel DNS connections and thus workers
	    &dnsclnt,       // DNS client
	    "10.0.0.53:53", // address of name server
	)
	defer pool.StopWait()
	addrs, err := pool.LookupIPv4(ctx, "gateway.example.org")

A [Pool] satisfies the resolver interface of the host prober.

# Acknowledgements

Under its hood, [Pool] leverages [gammazero/workerpool] as the limiting
goroutine pool and [miekg/dns] for talking DNS.

[gammazero/workerpool]: https://github.com/gammazero/workerpool
[miekg/dns]: https://github.com/miekg/dns
*/
package dnsworker
