// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package mobynet

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"github.com/docker/docker/api/types"
)

// Client is the subset of the Docker client API required for inspecting
// containers and their networks; *client.Client satisfies this interface.
type Client interface {
	ContainerInspect(ctx context.Context, container string) (types.ContainerJSON, error)
	NetworkInspect(ctx context.Context, network string, options types.NetworkInspectOptions) (types.NetworkResource, error)
}

// Peer is another container attached to the same network as the inspected
// container.
type Peer struct {
	Name    string   // container name, without Docker's leading slash.
	Aliases []string // DNS aliases on the network, if any.
	Address string   // IPv4 address on the network, if any.
}

// Network is a Docker network the inspected container is attached to.
type Network struct {
	Name  string
	Peers []Peer // sorted by container name.
}

// Perspective of a container onto its attached networks.
type Perspective struct {
	Container string    // container name.
	NetnsPath string    // network namespace path, such as "/proc/666/ns/net".
	Networks  []Network // sorted by network name.
}

// Inspect the container with the specified name or ID, returning its network
// namespace and the peer containers on its attached networks.
//
// Docker network names are not necessarily unique, so networks are always
// inspected by their IDs as referenced from the container's network
// settings.
func Inspect(ctx context.Context, moby Client, name string) (*Perspective, error) {
	details, err := moby.ContainerInspect(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("cannot inspect container %s: %w", name, err)
	}
	if details.State == nil || details.State.Pid == 0 {
		return nil, fmt.Errorf("container %s is not running", name)
	}
	if details.NetworkSettings == nil {
		return nil, fmt.Errorf("container %s lacks network settings", name)
	}
	self := strings.TrimPrefix(details.Name, "/") // argh, Docker's "/name" legacy!
	p := &Perspective{
		Container: self,
		NetnsPath: fmt.Sprintf("/proc/%d/ns/net", details.State.Pid),
		Networks:  make([]Network, 0, len(details.NetworkSettings.Networks)),
	}
	// Peers attached to multiple networks of ours need to be inspected only
	// once.
	peerDetails := map[string]types.ContainerJSON{}
	for netName, endpoint := range details.NetworkSettings.Networks {
		if endpoint == nil {
			continue
		}
		netDetails, err := moby.NetworkInspect(ctx, endpoint.NetworkID, types.NetworkInspectOptions{})
		if err != nil {
			return nil, fmt.Errorf("cannot inspect network %s: %w", netName, err)
		}
		network := Network{Name: netName}
		for _, attached := range netDetails.Containers {
			if attached.Name == self {
				continue
			}
			peer := Peer{
				Name:    attached.Name,
				Address: addressOf(attached.IPv4Address),
			}
			// Network inspection doesn't reveal the aliases, so we need to
			// inspect the peer container itself.
			pd, ok := peerDetails[attached.Name]
			if !ok {
				pd, err = moby.ContainerInspect(ctx, attached.Name)
				if err == nil {
					peerDetails[attached.Name] = pd
				}
			}
			if pd.NetworkSettings != nil {
				if ep := pd.NetworkSettings.Networks[netName]; ep != nil {
					for _, alias := range ep.Aliases {
						if alias != peer.Name {
							peer.Aliases = append(peer.Aliases, alias)
						}
					}
				}
			}
			network.Peers = append(network.Peers, peer)
		}
		sort.Slice(network.Peers, func(i, j int) bool {
			return network.Peers[i].Name < network.Peers[j].Name
		})
		p.Networks = append(p.Networks, network)
	}
	sort.Slice(p.Networks, func(i, j int) bool {
		return p.Networks[i].Name < p.Networks[j].Name
	})
	return p, nil
}

// Addresses returns the unique IPv4 addresses of all peers, in network and
// then peer order.
func (p *Perspective) Addresses() []string {
	seen := map[string]struct{}{}
	addrs := []string{}
	for _, network := range p.Networks {
		for _, peer := range network.Peers {
			if peer.Address == "" {
				continue
			}
			if _, ok := seen[peer.Address]; ok {
				continue
			}
			seen[peer.Address] = struct{}{}
			addrs = append(addrs, peer.Address)
		}
	}
	return addrs
}

// addressOf returns the IPv4 address part of an address in CIDR notation,
// such as "172.18.0.2/16", or an empty string.
func addressOf(cidr string) string {
	if cidr == "" {
		return ""
	}
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		addr, err := netip.ParseAddr(cidr)
		if err != nil || !addr.Is4() {
			return ""
		}
		return addr.String()
	}
	if !prefix.Addr().Is4() {
		return ""
	}
	return prefix.Addr().String()
}
