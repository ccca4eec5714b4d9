// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/siemens/netprobe/archive"
	"github.com/siemens/netprobe/config"
	"github.com/siemens/netprobe/manager"
	"github.com/siemens/netprobe/scan"
	"github.com/siemens/netprobe/server"
	"github.com/siemens/netprobe/store"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/thediveo/lxkns/log"
)

// shutdownTimeout limits how long a graceful service shutdown may take.
const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var configPath, listen string
	var textLog bool
	serveCmd := &cobra.Command{
		Use:   "serve [flags]",
		Short: "run the netprobe service with its HTTP API and live WebSocket events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !textLog {
				logrus.SetFormatter(&logrus.JSONFormatter{})
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	flags := serveCmd.Flags()
	flags.StringVar(&configPath, "config", "",
		"YAML configuration file")
	flags.StringVar(&listen, "listen", "",
		"listening address, overriding the configuration and PORT")
	flags.BoolVar(&textLog, "text-log", false,
		"log in text instead of JSON format")
	return serveCmd
}

// serve runs the netprobe service until ctx is done, then gracefully shuts
// down the HTTP server and the running scans.
func serve(ctx context.Context, cfg config.Config) error {
	persp, err := newPerspective(ctx, cfg.Unprivileged, cfg.Nameserver, cfg.Container)
	if err != nil {
		return err
	}
	defer persp.Close()

	var st store.Store
	if cfg.RedisAddr != "" {
		rs, err := store.Dial(ctx, cfg.RedisAddr, store.WithHistory(cfg.History))
		if err != nil {
			return err
		}
		defer rs.Close()
		st = rs
		log.Infof("keeping scan history in Redis at %s", cfg.RedisAddr)
	} else {
		st = store.NewMemoryStore(cfg.History)
	}

	mopts := []manager.Option{
		manager.WithStore(st),
		manager.WithMaxParallelJobs(cfg.MaxParallelJobs),
		manager.WithScanOptions(scan.WithProbeOptions(persp.Options()...)),
	}
	if cfg.Save {
		mopts = append(mopts, manager.WithArchive(archive.New(cfg.DataDir)))
	}
	m := manager.New(mopts...)
	srv := server.New(m, server.WithRequestDefaults(cfg.Apply))
	httpsrv := srv.HTTPServer(cfg.Listen)

	served := make(chan error, 1)
	go func() {
		served <- httpsrv.ListenAndServe()
	}()
	log.Infof("netprobe service listening on %s, probing from %s", cfg.Listen, persp)

	select {
	case err := <-served:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = m.Shutdown(context.Background())
			return err
		}
	case <-ctx.Done():
	}
	log.Infof("shutting down netprobe service")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	srv.Close()
	err = httpsrv.Shutdown(sctx)
	if merr := m.Shutdown(sctx); merr != nil {
		err = errors.Join(err, merr)
	}
	return err
}
