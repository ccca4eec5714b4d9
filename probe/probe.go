// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/siemens/netprobe/targets"
	"github.com/siemens/netprobe/types"

	"github.com/thediveo/lxkns/log"
	"github.com/thediveo/lxkns/ops"
	"github.com/thediveo/lxkns/ops/relations"
	"github.com/thediveo/lxkns/species"
)

// Default probe parameters.
const (
	DefaultCount       = 3
	DefaultInterval    = time.Second
	DefaultPortTimeout = 2 * time.Second
)

// Resolver looks up the IPv4 addresses of a host name.
type Resolver interface {
	LookupIPv4(ctx context.Context, name string) ([]string, error)
}

// Dialer opens network connections; *net.Dialer satisfies this interface.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Prober probes single hosts for reachability, echo RTTs, packet loss, and
// open TCP ports. A Prober can be used concurrently for multiple hosts.
type Prober struct {
	count        int           // number of echo attempts.
	interval     time.Duration // distance between echo attempts.
	ports        []int         // TCP ports to probe, in order.
	portTimeout  time.Duration // connect timeout per port.
	unprivileged bool          // if true, uses UDP-based pings instead of privileged ICMPs.

	netns    relations.Relation // network namespace to probe from, or nil.
	resolver Resolver           // optional resolver for host names.
	echoer   Echoer
	dialer   Dialer
}

// ProberOption can be passed to New when creating new Prober objects.
type ProberOption func(*Prober)

// New returns a new [Prober]. The new prober defaults to 3 echo attempts at
// intervals of 1s, no ports, and a port timeout of 2s.
//
// The prober can be configured during creation using several options:
//   - [WithCount]
//   - [WithInterval]
//   - [WithPorts]
//   - [WithPortTimeout]
//   - [AsUnprivileged]
//   - [InNetworkNamespace]
//   - [WithResolver]
func New(options ...ProberOption) *Prober {
	p := &Prober{
		count:       DefaultCount,
		interval:    DefaultInterval,
		portTimeout: DefaultPortTimeout,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.echoer == nil {
		p.echoer = &icmpEchoer{unprivileged: p.unprivileged}
	}
	if p.dialer == nil {
		p.dialer = &net.Dialer{Timeout: p.portTimeout}
	}
	return p
}

// WithCount sets the number of echo attempts; counts below 1 are raised to 1.
func WithCount(count uint) ProberOption {
	return func(p *Prober) {
		if count < 1 {
			count = 1
		}
		p.count = int(count)
	}
}

// WithInterval sets the interval between consecutive echo attempts.
func WithInterval(interval time.Duration) ProberOption {
	return func(p *Prober) {
		p.interval = interval
	}
}

// WithPorts sets the TCP ports to probe after the echo attempts.
func WithPorts(ports []int) ProberOption {
	return func(p *Prober) {
		p.ports = append([]int(nil), ports...)
	}
}

// WithPortTimeout sets the connect timeout per TCP port.
func WithPortTimeout(timeout time.Duration) ProberOption {
	return func(p *Prober) {
		p.portTimeout = timeout
	}
}

// AsUnprivileged tells the Prober to carry out unprivileged pings using UDP
// instead of ICMP packets.
func AsUnprivileged() ProberOption {
	return func(p *Prober) {
		p.unprivileged = true
	}
}

// InNetworkNamespace optionally runs all probes inside the network namespace
// referenced by the specified filesystem path, such as "/proc/666/ns/net". An
// empty path keeps the caller's network namespace.
func InNetworkNamespace(netnsref string) ProberOption {
	return func(p *Prober) {
		if netnsref == "" {
			return
		}
		p.netns = ops.NewTypedNamespacePath(netnsref, species.CLONE_NEWNET)
	}
}

// WithResolver sets a resolver for looking up host names, instead of leaving
// this to the system resolver. IPv4 literals are never looked up.
func WithResolver(r Resolver) ProberOption {
	return func(p *Prober) {
		p.resolver = r
	}
}

// withEchoer replaces the ICMP echoer, for testing.
func withEchoer(e Echoer) ProberOption {
	return func(p *Prober) {
		p.echoer = e
	}
}

// withDialer replaces the TCP dialer, for testing.
func withDialer(d Dialer) ProberOption {
	return func(p *Prober) {
		p.dialer = d
	}
}

// Probe the specified host: first send the configured number of echo
// requests, then probe the configured TCP ports one after another. The
// returned result has its Host, Address, State, AvgRtt, PacketLoss, Samples,
// Ports and Timestamp fields set; the caller is responsible for the scan ID
// and progress fields.
//
// Probe returns early when the context gets cancelled, counting the remaining
// echo attempts as lost and skipping the remaining ports. Callers wanting
// in-flight probes to finish regardless should pass a context without
// cancellation.
func (p *Prober) Probe(ctx context.Context, host string) (result types.HostResult) {
	result = types.HostResult{
		Host:    host,
		State:   types.Down,
		Samples: []float64{},
		Ports:   make([]types.PortResult, 0, len(p.ports)),
	}
	defer func() { result.Timestamp = time.Now().UTC() }()

	target := host
	if p.resolver != nil && !targets.IsIPv4(host) {
		addrs, err := p.resolver.LookupIPv4(ctx, host)
		if err == nil && len(addrs) == 0 {
			err = errors.New("no A records")
		}
		if err != nil {
			log.Debugf("cannot resolve %s: %s", host, err.Error())
			p.fail(&result, fmt.Errorf("cannot resolve %s: %w", host, err))
			return result
		}
		target = addrs[0]
		result.Address = target
	}

	probe := func() interface{} {
		p.echo(ctx, target, &result)
		p.scanPorts(ctx, target, &result)
		return nil
	}
	// Run the probes in the requested network namespace, if necessary.
	if p.netns != nil {
		if _, err := ops.Execute(probe, p.netns); err != nil {
			log.Warnf("cannot probe %s in network namespace: %s", host, err.Error())
			result = types.HostResult{
				Host:    result.Host,
				Address: result.Address,
				State:   types.Down,
				Samples: []float64{},
				Ports:   make([]types.PortResult, 0, len(p.ports)),
			}
			p.fail(&result, err)
		}
		return result
	}
	probe()
	return result
}

// fail marks the host as down with all echo attempts lost and all ports in
// error, as the probes could not be carried out at all.
func (p *Prober) fail(result *types.HostResult, err error) {
	result.State = types.Down
	result.AvgRtt = nil
	result.PacketLoss = 100
	for _, port := range p.ports {
		result.Ports = append(result.Ports, types.PortResult{
			Port:   port,
			Status: types.PortError,
			Error:  err.Error(),
		})
	}
}

// echo sends the configured number of echo requests, one after another, and
// updates the result's samples, state, average RTT and packet loss.
func (p *Prober) echo(ctx context.Context, target string, result *types.HostResult) {
	timeout := EchoTimeout(p.interval)
	sum := 0.0
	for attempt := 0; attempt < p.count; attempt++ {
		if rtt, err := p.echoer.Echo(ctx, target, timeout); err == nil {
			ms := float64(rtt) / float64(time.Millisecond)
			result.Samples = append(result.Samples, ms)
			sum += ms
		}
		if attempt < p.count-1 && !sleep(ctx, p.interval) {
			break
		}
	}
	successes := len(result.Samples)
	if successes > 0 {
		avg := types.Round2(sum / float64(successes))
		result.AvgRtt = &avg
		result.State = types.Up
	}
	result.PacketLoss = types.Round2(float64(p.count-successes) / float64(p.count) * 100)
}

// EchoTimeout returns the timeout of a single echo attempt for the given
// interval between attempts: the interval rounded up to full seconds, plus
// one second.
func EchoTimeout(interval time.Duration) time.Duration {
	secs := (interval + time.Second - 1) / time.Second
	return (secs + 1) * time.Second
}

// sleep waits for the specified duration, returning false if the context got
// cancelled in the meantime.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		if !timer.Stop() {
			<-timer.C
		}
		return false
	}
}
