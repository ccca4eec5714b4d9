// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

// Package test describes the Docker compose harness used by the container
// related integration tests.
package test

// ComposeFile is the compose harness location, relative to the directories
// of the packages using it.
const ComposeFile = "../test/docker-compose.yaml"

// Names of the harness containers as created by Docker compose.
const (
	ProbeContainer = "netprobe-test-probe-1"
	Peer1Container = "netprobe-test-peer-1"
	Peer2Container = "netprobe-test-peer-2"
	OtherContainer = "netprobe-test-other-1"
)

// Networks of the harness.
const (
	NetA = "net_A"
	NetB = "net_B"
)
