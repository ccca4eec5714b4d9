// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/siemens/netprobe/config"
	"github.com/siemens/netprobe/dnsworker"
	"github.com/siemens/netprobe/mobynet"
	"github.com/siemens/netprobe/probe"

	"github.com/docker/docker/client"
	"github.com/miekg/dns"
	"github.com/thediveo/lxkns/log"
)

// dockerDNS is Docker's embedded name server as seen from inside containers
// attached to custom networks.
const dockerDNS = "127.0.0.11:53"

// dnsWorkers is the number of name server connections kept open.
const dnsWorkers = 4

// perspective describes from where hosts get probed: either the network
// namespace of netprobe itself or the namespace of a particular container.
// Host names are optionally resolved using a specific name server.
type perspective struct {
	Container string   // container name, if any.
	NetnsPath string   // container network namespace, if any.
	Peers     []string // IPv4 addresses of the container's peers.

	options []probe.ProberOption
	pool    *dnsworker.Pool
}

// newPerspective returns the probing perspective for the specified
// container (if any) and name server (if any). When probing from a container
// without an explicit name server, names get resolved by Docker's embedded
// DNS inside the container's network namespace.
func newPerspective(ctx context.Context, unprivileged bool, nameserver string, container string) (*perspective, error) {
	p := &perspective{Container: container}
	if unprivileged {
		p.options = append(p.options, probe.AsUnprivileged())
	}
	if container != "" {
		cln, err := client.NewClientWithOpts(
			client.WithHost("unix:///var/run/docker.sock"),
			client.WithAPIVersionNegotiation(),
		)
		if err != nil {
			return nil, fmt.Errorf("cannot connect to the Docker daemon: %w", err)
		}
		defer cln.Close()
		view, err := mobynet.Inspect(ctx, cln, container)
		if err != nil {
			return nil, fmt.Errorf("cannot discover attached networks and their containers: %w", err)
		}
		p.NetnsPath = view.NetnsPath
		p.Peers = view.Addresses()
		p.options = append(p.options, probe.InNetworkNamespace(view.NetnsPath))
		if nameserver == "" {
			nameserver = dockerDNS
		}
		log.Debugf("probing from container %s via %s, %d peers",
			container, view.NetnsPath, len(p.Peers))
	}
	if nameserver != "" {
		pool, err := dnsworker.New(ctx, dnsWorkers,
			&dns.Client{Net: "tcp", Timeout: 2 * time.Second},
			config.NameserverAddr(nameserver),
			dnsworker.InNetworkNamespace(p.NetnsPath))
		if err != nil {
			return nil, err
		}
		p.pool = pool
		p.options = append(p.options, probe.WithResolver(pool))
	}
	return p, nil
}

// Options returns the prober options for probing from this perspective.
func (p *perspective) Options() []probe.ProberOption {
	return p.options
}

// Close releases the name server connections, if any.
func (p *perspective) Close() {
	if p.pool != nil {
		p.pool.StopWait()
	}
}

// String describes the perspective for display.
func (p *perspective) String() string {
	if p.Container == "" {
		return "this host"
	}
	return "container " + p.Container
}
