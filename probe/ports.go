// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/siemens/netprobe/types"
)

// scanPorts probes the configured TCP ports one after another, appending a
// port result for each port.
func (p *Prober) scanPorts(ctx context.Context, target string, result *types.HostResult) {
	for _, port := range p.ports {
		if ctx.Err() != nil {
			return
		}
		result.Ports = append(result.Ports, p.probePort(ctx, target, port))
	}
}

// probePort attempts a TCP connection to the specified port, closing it
// immediately when successful. The connection attempt is bounded by the
// port timeout.
func (p *Prober) probePort(ctx context.Context, target string, port int) types.PortResult {
	dialctx, cancel := context.WithTimeout(ctx, p.portTimeout)
	defer cancel()
	start := time.Now()
	conn, err := p.dialer.DialContext(dialctx, "tcp", net.JoinHostPort(target, strconv.Itoa(port)))
	elapsed := time.Since(start).Milliseconds()
	if err == nil {
		_ = conn.Close()
	}
	status := Classify(err)
	res := types.PortResult{Port: port, Status: status}
	if status != types.PortError {
		res.Latency = &elapsed
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// Classify returns the port status corresponding to the outcome of a TCP
// connection attempt:
//   - no error: open.
//   - network timeout: timeout.
//   - any other network error, such as a refused connection: closed.
//   - anything else, where the probe could not be carried out at all: error.
func Classify(err error) types.PortStatus {
	if err == nil {
		return types.PortOpen
	}
	var neterr net.Error
	if errors.As(err, &neterr) && neterr.Timeout() {
		return types.PortTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.PortTimeout
	}
	var operr *net.OpError
	var dnserr *net.DNSError
	var addrerr *net.AddrError
	if errors.As(err, &operr) || errors.As(err, &dnserr) || errors.As(err, &addrerr) {
		return types.PortClosed
	}
	return types.PortError
}
