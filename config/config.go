// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/siemens/netprobe/archive"
	"github.com/siemens/netprobe/jobs"
	"github.com/siemens/netprobe/scan"
	"github.com/siemens/netprobe/store"
	"github.com/siemens/netprobe/targets"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPort is the default port the service listens on.
const DefaultPort = 3001

// Config is the service configuration.
type Config struct {
	Listen          string `yaml:"listen"`            // listening address, such as ":3001".
	MaxParallelJobs int    `yaml:"max_parallel_jobs"` // number of scans running at the same time.
	DataDir         string `yaml:"data_dir"`          // directory for scan summaries.
	Save            bool   `yaml:"save"`              // archive scan summaries.
	History         int    `yaml:"history"`           // number of scans kept in the store.
	RedisAddr       string `yaml:"redis_addr"`        // use Redis as the scan store, if set.
	Nameserver      string `yaml:"nameserver"`        // resolve host names using this name server.
	Unprivileged    bool   `yaml:"unprivileged"`      // use unprivileged (UDP) pings.
	Container       string `yaml:"container"`         // probe from inside this container's network namespace.

	// Defaults fill in the unset fields of submitted scan requests.
	Defaults scan.Request `yaml:"defaults"`
}

// Default returns the built-in default configuration.
func Default() Config {
	return Config{
		Listen:          ":" + strconv.Itoa(DefaultPort),
		MaxParallelJobs: jobs.DefaultMaxParallel,
		DataDir:         archive.DefaultDir,
		Save:            true,
		History:         store.DefaultHistory,
	}
}

// Load returns the configuration assembled from the defaults, the specified
// YAML file (if any), and the environment. An optional “.env” file in the
// working directory is loaded into the environment first, without overriding
// already existing environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("cannot load .env: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("cannot read configuration: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("malformed configuration %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	cfg.Nameserver = NameserverAddr(cfg.Nameserver)
	return cfg, cfg.Validate()
}

// ApplyEnv overrides configuration values from environment variables, as
// returned by the specified lookup function.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if port, ok := lookup("PORT"); ok && port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q", port)
		}
		c.Listen = ":" + strconv.Itoa(p)
	}
	if n, ok := lookup("MAX_PARALLEL_JOBS"); ok && n != "" {
		v, err := strconv.Atoi(n)
		if err != nil {
			return fmt.Errorf("invalid MAX_PARALLEL_JOBS %q", n)
		}
		c.MaxParallelJobs = v
	}
	if n, ok := lookup("SCAN_HISTORY"); ok && n != "" {
		v, err := strconv.Atoi(n)
		if err != nil {
			return fmt.Errorf("invalid SCAN_HISTORY %q", n)
		}
		c.History = v
	}
	if dir, ok := lookup("DATA_DIR"); ok && dir != "" {
		c.DataDir = dir
	}
	if addr, ok := lookup("REDIS_ADDR"); ok {
		c.RedisAddr = addr
	}
	if ns, ok := lookup("NAMESERVER"); ok {
		c.Nameserver = NameserverAddr(ns)
	}
	return nil
}

// Validate checks the configuration for values out of range.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.MaxParallelJobs < 1 {
		return fmt.Errorf("max_parallel_jobs must be at least 1, got %d", c.MaxParallelJobs)
	}
	if c.History < 1 {
		return fmt.Errorf("history must be at least 1, got %d", c.History)
	}
	if c.Save && c.DataDir == "" {
		return errors.New("data_dir must not be empty when saving scans")
	}
	if c.Nameserver != "" {
		host, port, err := net.SplitHostPort(NameserverAddr(c.Nameserver))
		if err != nil {
			return fmt.Errorf("invalid nameserver address %q: %w", c.Nameserver, err)
		}
		if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 ||
			(net.ParseIP(host) == nil && !targets.IsHostname(host)) {
			return fmt.Errorf("invalid nameserver address %q", c.Nameserver)
		}
	}
	return nil
}

// NameserverAddr returns the name server address with the default DNS port
// 53 added if missing; an empty address stays empty.
func NameserverAddr(addr string) string {
	if addr == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(strings.Trim(addr, "[]"), "53")
}

// Apply fills in the unset fields of a scan request from the configured
// request defaults.
func (c *Config) Apply(req scan.Request) scan.Request {
	if req.Ports == nil {
		req.Ports = c.Defaults.Ports
	}
	if req.Count == 0 {
		req.Count = c.Defaults.Count
	}
	if req.IntervalMs == 0 {
		req.IntervalMs = c.Defaults.IntervalMs
	}
	if req.MaxParallelHosts == 0 {
		req.MaxParallelHosts = c.Defaults.MaxParallelHosts
	}
	if req.PortTimeoutMs == 0 {
		req.PortTimeoutMs = c.Defaults.PortTimeoutMs
	}
	return req
}
