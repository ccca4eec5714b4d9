// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/spf13/cobra"
	"github.com/thediveo/lxkns/log"
)

var debug *bool

func newRootCmd() (rootCmd *cobra.Command) {
	rootCmd = &cobra.Command{
		Use:   "netprobe",
		Short: "netprobe measures reachability, latency and packet loss of hosts, and probes their TCP ports",
		Long: `netprobe measures reachability, round-trip latency and packet loss of
hosts using echo probes, and checks their TCP ports using connect probes.

Scans either run locally with a live terminal display, or are submitted to a
netprobe service started using "netprobe serve".`,
		Version:      "0.9",
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if *debug {
				log.SetLevel(log.DebugLevel)
				log.Debugf("debug logging enabled")
			}
		},
	}
	debug = rootCmd.PersistentFlags().Bool(
		"debug", false, "enable debugging output")
	rootCmd.AddCommand(newScanCmd(), newServeCmd())
	return
}
