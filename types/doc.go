/*
Package types defines netprobe's information model: the per-host probe results
([HostResult], [PortResult]), the final [Summary] of a scan, the normalized
scan [Options], the lifecycle [Status] of scans, and the typed [Event] values a
scan streams while it runs.

# Events

A scan streams exactly one [Started] event, then one [Progress] event per
completed host in completion order, and finally either a [Done] or a [Failed]
event. Consumers switch on the concrete event type:

	for ev := range events {
		switch ev := ev.(type) {
		case *types.Started:
		case *types.Progress:
		case *types.Done:
		case *types.Failed:
		}
	}

All event values are immutable after they have been sent; in particular,
[Progress] events carry their own copy of the host result, so consumers may
keep them around without any locking.

# Nullable Values

Average RTTs and port latencies are pointers so that “no value” marshals to
JSON null instead of a misleading zero, matching what clients of the HTTP API
expect: an unreachable host has no average RTT, not one of 0ms.
*/
package types
