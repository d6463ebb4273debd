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
	"io"

	"github.com/AleutianAI/cosmos/pkg/config"
	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"github.com/AleutianAI/cosmos/pkg/logging"
	"github.com/AleutianAI/cosmos/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app is everything a command needs to log through a configured cosmos.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Providers
	set       *config.Set
	cosmos    *cosmos.Cosmos
}

// newApp loads the config, then starts diagnostics, telemetry, the
// recorders and the cosmos, in that order. console receives console
// recorders and diagnostics.
func newApp(ctx context.Context, opts *rootOptions, console io.Writer) (*app, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.logLevel != "" {
		level, err := cosmos.ParseLevel(opts.logLevel)
		if err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
		cfg.LogLevel = level
	}
	if opts.traceExporter != "" {
		cfg.Telemetry.TraceExporter = opts.traceExporter
	}
	if opts.metricExporter != "" {
		cfg.Telemetry.MetricExporter = opts.metricExporter
	}

	rt := &app{cfg: cfg}
	rt.logger = logging.New(logging.Config{
		Level:   cfg.LogLevel,
		LogDir:  cfg.LogDir,
		Service: cfg.Service,
		JSON:    opts.logJSON,
		Output:  console,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cfg.Telemetry.ServiceName = cfg.Service
	cfg.Telemetry.Registry = reg
	if cfg.Telemetry.Output == nil {
		cfg.Telemetry.Output = console
	}

	tel, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		_ = rt.logger.Close()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	rt.telemetry = tel

	set, err := config.Build(cfg, config.Deps{
		Logger:     rt.logger.With("component", "recorders"),
		Registerer: reg,
		Meter:      tel.Meter("github.com/AleutianAI/cosmos"),
		Tracer:     tel.Tracer("github.com/AleutianAI/cosmos"),
		Console:    console,
	})
	if err != nil {
		_ = tel.Shutdown(ctx)
		_ = rt.logger.Close()
		return nil, err
	}
	rt.set = set

	rt.cosmos = cosmos.New(
		cosmos.WithRecorders(set.Recorders...),
		cosmos.WithErrorHandler(rt.logger.ErrorHandler("cosmos")),
	)
	rt.logger.Debug("app ready",
		"service", cfg.Service,
		"recorders", len(set.Recorders),
		"trace_exporter", cfg.Telemetry.TraceExporter,
		"metric_exporter", cfg.Telemetry.MetricExporter,
	)
	return rt, nil
}

// endAtom closes the atom's span on every spans recorder, then destroys it.
func (rt *app) endAtom(a *cosmos.Atom) {
	rt.set.EndAtom(a)
	a.Destroy()
}

// Close destroys the cosmos, which closes the recorders, then flushes
// telemetry and closes the diagnostic logger.
func (rt *app) Close(ctx context.Context) error {
	err := rt.cosmos.Destroy()
	err = errors.Join(err, rt.telemetry.Shutdown(ctx))
	return errors.Join(err, rt.logger.Close())
}
