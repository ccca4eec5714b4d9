// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/siemens/netprobe/archive"
	"github.com/siemens/netprobe/scan"
	"github.com/siemens/netprobe/targets"

	"github.com/spf13/cobra"
	"github.com/thediveo/lxkns/log"
)

// scanFlags are the flags of the scan command.
type scanFlags struct {
	targets      string
	ports        string
	count        uint
	interval     time.Duration
	hosts        uint
	portTimeout  time.Duration
	dataDir      string
	noSave       bool
	json         bool
	backend      string
	unprivileged bool
	nameserver   string
	container    string
	spinner      time.Duration
}

// check the flag values for being in range.
func (f *scanFlags) check() error {
	if f.count < scan.MinCount || f.count > 1000 {
		return fmt.Errorf("--count out of range [%d..1000]", scan.MinCount)
	}
	if f.interval < scan.MinIntervalMs*time.Millisecond {
		return fmt.Errorf("--interval must be at least %dms", scan.MinIntervalMs)
	}
	if f.hosts < scan.MinMaxParallelHosts || f.hosts > 1024 {
		return fmt.Errorf("--hosts out of range [%d..1024]", scan.MinMaxParallelHosts)
	}
	if f.portTimeout < scan.MinPortTimeoutMs*time.Millisecond {
		return fmt.Errorf("--port-timeout must be at least %dms", scan.MinPortTimeoutMs)
	}
	if f.spinner < 10*time.Millisecond {
		return errors.New("--spinner must be at least 10ms")
	}
	if f.backend != "" {
		u, err := url.Parse(f.backend)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("--backend must be an http(s) URL, got %q", f.backend)
		}
	}
	if f.targets == "" && f.container == "" {
		return errors.New("--targets required, unless probing the peers of a --container")
	}
	return nil
}

// request returns the scan request described by the flags.
func (f *scanFlags) request() scan.Request {
	return scan.Request{
		Targets:          targets.FromString(f.targets),
		Ports:            targets.ParsePorts(f.ports),
		Count:            int(f.count),
		IntervalMs:       int(f.interval / time.Millisecond),
		MaxParallelHosts: int(f.hosts),
		PortTimeoutMs:    int(f.portTimeout / time.Millisecond),
	}
}

func newScanCmd() *cobra.Command {
	f := &scanFlags{}
	scanCmd := &cobra.Command{
		Use:   "scan [flags]",
		Short: "probe the specified hosts and their ports",
		Example: `  netprobe scan --targets 192.168.1.1-20,router.lan --ports 22,80,443
  netprobe scan --targets 10.0.0.0/28 --count 5 --interval 200ms --json
  netprobe scan --container web-1 --ports 5432`,
		Args: cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return f.check()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd.Context(), cmd, f)
		},
	}
	flags := scanCmd.Flags()
	flags.StringVarP(&f.targets, "targets", "t", "",
		"comma-separated IPv4 addresses, host names, CIDR blocks, and ranges such as 10.0.0.1-20")
	flags.StringVarP(&f.ports, "ports", "p", "",
		"comma-separated TCP ports and port ranges to probe, such as 22,80,8000-8010")
	flags.UintVarP(&f.count, "count", "c", scan.DefaultCount,
		"number of echo probes per host")
	flags.DurationVarP(&f.interval, "interval", "i", scan.DefaultIntervalMs*time.Millisecond,
		"interval between echo probes")
	flags.UintVar(&f.hosts, "hosts", scan.DefaultMaxParallelHosts,
		"maximum number of hosts probed in parallel")
	flags.DurationVar(&f.portTimeout, "port-timeout", scan.DefaultPortTimeoutMs*time.Millisecond,
		"TCP connect timeout per port")
	flags.StringVar(&f.dataDir, "data-dir", archive.DefaultDir,
		"directory to save scan summaries in")
	flags.BoolVar(&f.noSave, "no-save", false,
		"don't save the scan summary")
	flags.BoolVar(&f.json, "json", false,
		"print the scan summary as JSON instead of a live display")
	flags.StringVar(&f.backend, "backend", "",
		"submit the scan to the netprobe service at this URL, falling back to a local scan")
	flags.BoolVar(&f.unprivileged, "unprivileged", false,
		"use unprivileged UDP instead of ICMP echo probes")
	flags.StringVar(&f.nameserver, "nameserver", "",
		"resolve host names using this name server")
	flags.StringVar(&f.container, "container", "",
		"probe from the network namespace of this container, by default its peers")
	flags.DurationVar(&f.spinner, "spinner", 100*time.Millisecond,
		"spinner interval")
	return scanCmd
}

// runScan either submits the scan to a backend service or runs it locally.
func runScan(ctx context.Context, cmd *cobra.Command, f *scanFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req := f.request()
	out := cmd.OutOrStdout()

	if f.backend != "" {
		if f.container != "" {
			log.Warnf("--container requires a local scan, ignoring --backend")
		} else {
			id, err := submitRemote(ctx, f.backend, req)
			if err == nil {
				if f.json {
					fmt.Fprintf(out, "{\"scan_id\":%q}\n", id)
				} else {
					fmt.Fprintf(out, "scan %s queued at %s\n", id, f.backend)
				}
				return nil
			}
			log.Warnf("cannot submit scan to %s, falling back to a local scan: %s",
				f.backend, err.Error())
		}
	}

	// Keep the log from clobbering the live display.
	if !*debug && !f.json {
		log.SetLevel(log.WarnLevel)
	}
	persp, err := newPerspective(ctx, f.unprivileged, f.nameserver, f.container)
	if err != nil {
		return err
	}
	defer persp.Close()
	if f.targets == "" {
		if len(persp.Peers) == 0 {
			return fmt.Errorf("container %s has no peers to probe", f.container)
		}
		req.Targets = targets.FromList(persp.Peers...)
	}
	if !f.unprivileged && os.Geteuid() != 0 {
		log.Warnf("not running as root, privileged echo probes will likely fail; consider --unprivileged")
	}
	_, err = ScanAndReport(ctx, out, req, persp, localOptions{
		DataDir: f.dataDir,
		Save:    !f.noSave,
		JSON:    f.json,
		Spinner: f.spinner,
	})
	return err
}
