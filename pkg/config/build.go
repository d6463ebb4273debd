// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"github.com/AleutianAI/cosmos/pkg/logging"
	"github.com/AleutianAI/cosmos/pkg/recorders"
	storage "github.com/AleutianAI/cosmos/pkg/storage/badger"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Deps carries the shared collaborators recorders are built against.
// Zero fields fall back to process defaults where one exists; the otel
// and spans kinds fail without a Meter or Tracer.
type Deps struct {
	Logger     *logging.Logger
	Registerer prometheus.Registerer
	Meter      metric.Meter
	Tracer     trace.Tracer

	// Console receives console recorders. Defaults to os.Stderr.
	Console io.Writer
}

// Set is the outcome of Build.
type Set struct {
	// Recorders in configuration order, ready for cosmos.WithRecorders.
	Recorders []cosmos.Recorder

	// Levels maps recorder names to their live thresholds.
	Levels Levels

	// Buffer is the first buffer recorder, if any.
	Buffer *recorders.Buffer

	// Spans lists every spans recorder in configuration order.
	Spans []*recorders.Spans
}

// EndAtom ends the span of a on every spans recorder.
func (s *Set) EndAtom(a *cosmos.Atom) {
	for _, sp := range s.Spans {
		sp.EndAtom(a)
	}
}

// Close closes every recorder that holds resources.
func (s *Set) Close() error {
	var errs []error
	for _, r := range s.Recorders {
		if c, ok := r.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// Build constructs the recorders cfg describes.
//
// Description:
//
//	Recorders are created in configuration order; a sample section wraps
//	the recorder in recorders.Sampled. On failure every recorder already
//	built is closed.
//
// Inputs:
//
//	cfg - A validated configuration.
//	deps - Shared collaborators.
//
// Outputs:
//
//	*Set - The recorders and their thresholds.
//	error - Non-nil if any recorder could not be created.
func Build(cfg *Config, deps Deps) (*Set, error) {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Console == nil {
		deps.Console = os.Stderr
	}

	set := &Set{Levels: make(Levels, len(cfg.Recorders))}
	for _, rc := range cfg.Recorders {
		rec, err := buildOne(cfg, rc, deps, set)
		if err != nil {
			_ = set.Close()
			return nil, fmt.Errorf("recorder %q: %w", rc.Name, err)
		}
		if rc.Sample != nil {
			rec = recorders.NewSampled(rec, rc.Sample.PerSecond, rc.Sample.Burst, rc.Sample.Bypass)
		}
		if l, ok := rec.(recorders.Leveled); ok && l.Threshold() != nil {
			set.Levels[rc.Name] = l.Threshold()
		}
		set.Recorders = append(set.Recorders, rec)
	}
	return set, nil
}

func buildOne(cfg *Config, rc RecorderConfig, deps Deps, set *Set) (cosmos.Recorder, error) {
	switch rc.Kind {
	case KindConsole:
		w := recorders.NewWriter(deps.Console, rc.MinLevel)
		if rc.Console != nil {
			switch rc.Console.Color {
			case "always":
				w.SetColor(true)
			case "never":
				w.SetColor(false)
			}
		}
		return w, nil

	case KindFile:
		service := rc.File.Service
		if service == "" {
			service = cfg.Service
		}
		return recorders.NewFile(rc.File.Dir, service, rc.MinLevel)

	case KindBuffer:
		capacity := 0
		if rc.Buffer != nil {
			capacity = rc.Buffer.Capacity
		}
		b := recorders.NewBuffer(capacity, rc.MinLevel)
		if set.Buffer == nil {
			set.Buffer = b
		}
		return b, nil

	case KindBadger:
		bc := storage.DefaultConfig(rc.Badger.Path)
		if rc.Badger.InMemory {
			bc = storage.InMemoryConfig()
		}
		if rc.Badger.SyncWrites != nil {
			bc.SyncWrites = *rc.Badger.SyncWrites
		}
		if rc.Badger.GCInterval > 0 {
			bc.GCInterval = rc.Badger.GCInterval
		}
		bc.Logger = deps.Logger.Slog()
		db, err := storage.Open(bc)
		if err != nil {
			return nil, err
		}
		rec, err := recorders.NewBadger(db, true, rc.MinLevel)
		if err != nil {
			return nil, errors.Join(err, db.Close())
		}
		return rec, nil

	case KindInflux:
		return recorders.NewInflux(recorders.InfluxConfig{
			URL:         rc.Influx.URL,
			Token:       rc.Influx.Token,
			Org:         rc.Influx.Org,
			Bucket:      rc.Influx.Bucket,
			Measurement: rc.Influx.Measurement,
			Timeout:     rc.Influx.Timeout,
		}, rc.MinLevel)

	case KindPrometheus:
		return recorders.NewPrometheus(deps.Registerer, rc.prometheusNamespace(), rc.MinLevel)

	case KindOTel:
		if deps.Meter == nil {
			return nil, errors.New("otel recorder needs a meter")
		}
		return recorders.NewOTel(deps.Meter, rc.MinLevel)

	case KindSpans:
		if deps.Tracer == nil {
			return nil, errors.New("spans recorder needs a tracer")
		}
		s := recorders.NewSpans(deps.Tracer, rc.MinLevel)
		set.Spans = append(set.Spans, s)
		return s, nil

	case KindSlog:
		return recorders.NewSlog(deps.Logger.Slog().Handler(), rc.MinLevel), nil

	case KindDiscard:
		return cosmos.NullRecorder{}, nil

	default:
		return nil, fmt.Errorf("unknown kind %q", rc.Kind)
	}
}
