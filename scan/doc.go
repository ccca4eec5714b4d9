/*
Package scan implements the scan orchestrator: it expands a [Request]'s
targets into hosts, probes these hosts with bounded concurrency, streams
per-host results as they complete, and finally produces a
[types.Summary].

	s, events := scan.New(id, req)
	go func() {
	    for ev := range events {
	        // ...
	    }
	}()
	summary, err := s.Run(ctx)

A [Scan] runs only once and walks the states queued, running, and finally
either done, error, or cancelled. Each scan owns its event channel; the
channel is closed after the terminal event, or when the scan gets cancelled
before it ever ran.

[Scan.Cancel] is cooperative: hosts not yet started are skipped, while hosts
already being probed finish normally. A cancelled scan still emits its done
event, marked as cancelled, with the results of all hosts probed so far. In
contrast, cancelling the context passed to [Scan.Run] aborts the scan
outright.
*/
package scan
