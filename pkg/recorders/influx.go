// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recorders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"github.com/AleutianAI/cosmos/pkg/validation"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxConfig locates the bucket an Influx recorder writes to.
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string

	// Timeout bounds each blocking write. Default: 5s.
	Timeout time.Duration
}

// Influx writes one point per nucleon to InfluxDB.
//
// Point layout:
//
//	measurement: InfluxConfig.Measurement (default "nucleons")
//	tags:        level, atom (sanitized), atom_id
//	fields:      message, pid, tid, file, line, function, age_ms
//	time:        nucleon timestamp
//
// Writes are blocking: a slow InfluxDB slows the logging caller. Wrap the
// recorder in Sampled, or raise its threshold, for chatty atoms.
type Influx struct {
	leveled

	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
	timeout     time.Duration
	closeOnce   sync.Once
}

// NewInflux connects a blocking write API to cfg.Org and cfg.Bucket.
func NewInflux(cfg InfluxConfig, min cosmos.Level) (*Influx, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influx recorder: url, org and bucket are required")
	}
	if cfg.Measurement == "" {
		cfg.Measurement = "nucleons"
	}
	if err := validation.ValidateName(cfg.Measurement); err != nil {
		return nil, fmt.Errorf("influx recorder: measurement: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Influx{
		leveled:     newLeveled(min),
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: cfg.Measurement,
		timeout:     cfg.Timeout,
	}, nil
}

// Record writes n as one point.
func (i *Influx) Record(a *cosmos.Atom, n *cosmos.Nucleon) error {
	p := influxdb2.NewPointWithMeasurement(i.measurement).
		AddTag("level", strings.ToLower(n.Level.String())).
		AddTag("atom", validation.SanitizeTagValue(a.Name())).
		AddTag("atom_id", a.ID().String()).
		AddField("message", n.Message).
		AddField("pid", n.Coords.PID).
		AddField("tid", n.Coords.TID).
		AddField("file", n.Site.File).
		AddField("line", n.Site.Line).
		AddField("function", n.Site.Function).
		AddField("age_ms", max(n.Coords.Timestamp-a.Birth(), 0)/int64(time.Millisecond)).
		SetTime(time.Unix(0, n.Coords.Timestamp))

	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()
	if err := i.writeAPI.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("influx recorder: write point: %w", err)
	}
	return nil
}

// Close releases the client. Safe to call more than once.
func (i *Influx) Close() error {
	i.closeOnce.Do(i.client.Close)
	return nil
}

var (
	_ cosmos.Recorder = (*Influx)(nil)
	_ Leveled         = (*Influx)(nil)
)
