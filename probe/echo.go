// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package probe

import (
	"context"
	"errors"
	"time"

	"github.com/go-ping/ping"
)

// ErrNoReply signals that an echo request did not receive any reply in time.
var ErrNoReply = errors.New("no echo reply")

// Echoer sends a single echo request to a host and returns the round-trip
// time of the reply.
type Echoer interface {
	Echo(ctx context.Context, host string, timeout time.Duration) (time.Duration, error)
}

// icmpEchoer sends echo requests using go-ping; these are privileged ICMP
// requests unless told otherwise.
type icmpEchoer struct {
	unprivileged bool
}

// Echo sends a single echo request and waits at most the specified timeout for
// the reply.
func (e *icmpEchoer) Echo(ctx context.Context, host string, timeout time.Duration) (time.Duration, error) {
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return 0, err
	}
	pinger.SetPrivileged(!e.unprivileged)
	pinger.Count = 1
	pinger.Timeout = timeout
	// Stop the pinger in case the context gets cancelled; the done channel
	// ensures that the watcher goroutine terminates in any case.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()
	if err := pinger.Run(); err != nil {
		return 0, err
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 || len(stats.Rtts) == 0 {
		return 0, ErrNoReply
	}
	return stats.Rtts[0], nil
}
