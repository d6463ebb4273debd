// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/AleutianAI/cosmos/internal/debugsrv"
	"github.com/AleutianAI/cosmos/pkg/config"
	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// heartbeatKeep is how many beats the heartbeat atom retains.
const heartbeatKeep = 64

// beat is the gluon of heartbeat nucleons.
type beat struct {
	Seq        uint64
	Goroutines int32
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the debug HTTP server with a heartbeat atom",
		Long: `serve keeps a cosmos alive behind the debug server (/healthz, /stats,
/atoms, /recent, /levels, /metrics). A heartbeat atom logs at every tick.
With --config, recorder levels are reloaded when the file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newApp(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if addr == "" {
				addr = rt.cfg.Debug.Addr
			}
			if addr == "" {
				addr = "127.0.0.1:6060"
			}

			srv := debugsrv.New(debugsrv.Options{
				Cosmos:         rt.cosmos,
				Buffer:         rt.set.Buffer,
				Levels:         rt.set.Levels,
				Metrics:        rt.telemetry.MetricsHandler(),
				TracerProvider: rt.telemetry.TracerProvider,
				Logger:         rt.logger.With("component", "debugsrv"),
				Version:        version,
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Run(gctx, addr) })
			g.Go(func() error { return heartbeat(gctx, rt, interval) })
			if opts.configPath != "" {
				g.Go(func() error {
					return config.Watch(gctx, opts.configPath, rt.set.Levels, rt.logger.With("component", "config"))
				})
			}

			runErr := g.Wait()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return errors.Join(runErr, rt.Close(shutdownCtx))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: debug.addr from config, else 127.0.0.1:6060)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "heartbeat period")
	return cmd
}

// heartbeat logs one beat per tick on a long-lived atom and releases the
// oldest beats beyond heartbeatKeep.
func heartbeat(ctx context.Context, rt *app, interval time.Duration) error {
	a, err := rt.cosmos.NewAtom("heartbeat")
	if err != nil {
		return err
	}
	defer rt.endAtom(a)
	a.Notice("heartbeat started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var seq uint64
	for {
		select {
		case <-ctx.Done():
			a.Notice("heartbeat stopped")
			a.Decay()
			return nil
		case <-ticker.C:
			seq++
			cosmos.Logf(a, cosmos.LevelDebug, beat{Seq: seq, Goroutines: int32(runtime.NumGoroutine())}, "beat %d", seq)
			for a.Count() > heartbeatKeep {
				if err := a.Release(a.Nucleons()[0]); err != nil {
					return err
				}
			}
		}
	}
}
