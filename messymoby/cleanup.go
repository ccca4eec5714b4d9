// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package messymoby

import (
	"context"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	gi "github.com/onsi/ginkgo/v2"
	g "github.com/onsi/gomega"
)

// Cleanup removes left-over test containers that aren't running anymore, as
// well as duplicate test networks.
func Cleanup(ctx context.Context) {
	gi.GinkgoHelper()

	cln := NewClient()
	defer cln.Close()
	g.Expect(RemoveStoppedContainers(ctx, cln)).To(g.Succeed())
	g.Expect(RemoveDuplicateNetworks(ctx, cln)).To(g.Succeed())
}

// RemoveStoppedContainers removes exited as well as created-but-never-started
// containers carrying our test label.
func RemoveStoppedContainers(ctx context.Context, cln *client.Client) error {
	stopped, err := cln.ContainerList(ctx, types.ContainerListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", Label),
			filters.Arg("status", "exited"),
			filters.Arg("status", "created"),
		),
	})
	if err != nil {
		return err
	}
	for _, cntr := range stopped {
		gi.GinkgoWriter.Printf("removing stopped test container %s\n", cntr.ID)
		_ = cln.ContainerRemove(ctx, cntr.ID, types.ContainerRemoveOptions{Force: true})
	}
	return nil
}

// RemoveDuplicateNetworks removes test networks sharing the same name, yet
// having different IDs. Such duplicates confuse Docker compose to no end.
func RemoveDuplicateNetworks(ctx context.Context, cln *client.Client) error {
	nets, err := cln.NetworkList(ctx, types.NetworkListOptions{
		Filters: filters.NewArgs(filters.Arg("label", Label)),
	})
	if err != nil {
		return err
	}
	ids := map[string][]string{} // name -> []ID
	for _, net := range nets {
		ids[net.Name] = append(ids[net.Name], net.ID)
	}
	for name, netIDs := range ids {
		if len(netIDs) < 2 {
			continue
		}
		for _, netID := range netIDs {
			gi.GinkgoWriter.Printf("removing duplicate test network %s (%s)\n", name, netID)
			_ = cln.NetworkRemove(ctx, netID)
		}
	}
	return nil
}
