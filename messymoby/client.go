// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package messymoby

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/docker/docker/client"
	"github.com/onsi/gomega/gexec"

	gi "github.com/onsi/ginkgo/v2"
	g "github.com/onsi/gomega"
	s "github.com/thediveo/success"
)

// Label is the name of a “magic” label for tagging testing-related container
// or network elements.
const Label = "messymoby"

// DockerSocket is the default Docker API endpoint on the local host.
const DockerSocket = "/var/run/docker.sock"

// Available returns true if the Docker API socket as well as the docker CLI
// are present on this host.
func Available() bool {
	if _, err := os.Stat(DockerSocket); err != nil {
		return false
	}
	_, err := exec.LookPath("docker")
	return err == nil
}

// NewClient returns a new Docker client connected to the default socket API
// location on the local host.
func NewClient() *client.Client {
	gi.GinkgoHelper()

	return s.Successful(client.NewClientWithOpts(
		client.WithHost("unix://"+DockerSocket),
		client.WithAPIVersionNegotiation(),
	))
}

// Compose executes “docker compose” on the specified compose file, passing
// it the specified CLI arguments, and waits for it to gracefully finish with
// exit code 0.
func Compose(ctx context.Context, composefile string, args ...string) {
	gi.GinkgoHelper()

	args = append([]string{"compose", "-f", composefile}, args...)
	gi.By("docker " + strings.Join(args, " "))
	dc := exec.Command("docker", args...)
	sess := s.Successful(gexec.Start(dc, gi.GinkgoWriter, gi.GinkgoWriter))
	g.Eventually(sess).WithContext(ctx).Should(gexec.Exit(0))
}

// Up brings up the harness described by the specified compose file, after
// first clearing away any left-overs from previous test runs. Up registers
// a cleanup with the current Ginkgo node to tear down the harness again.
func Up(ctx context.Context, composefile string) {
	gi.GinkgoHelper()

	Cleanup(ctx)
	Compose(ctx, composefile, "down", "--remove-orphans", "-t", "1")
	Compose(ctx, composefile, "up", "-d", "--wait")
	gi.DeferCleanup(func(ctx context.Context) {
		Compose(ctx, composefile, "down", "-t", "1")
		Cleanup(ctx)
	})
}
