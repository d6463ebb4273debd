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
	"fmt"
	"strings"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"github.com/AleutianAI/cosmos/pkg/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTel reports nucleons as OpenTelemetry metrics.
//
// Instruments:
//
//	cosmos.nucleons       Int64Counter   {level, atom}
//	cosmos.message.size   Int64Histogram {level}
type OTel struct {
	leveled

	nucleons metric.Int64Counter
	size     metric.Int64Histogram
}

// NewOTel creates the instruments on meter.
//
// Example:
//
//	rec, err := recorders.NewOTel(otel.Meter("cosmos"), cosmos.LevelInfo)
func NewOTel(meter metric.Meter, min cosmos.Level) (*OTel, error) {
	o := &OTel{leveled: newLeveled(min)}
	var err error

	o.nucleons, err = meter.Int64Counter(
		"cosmos.nucleons",
		metric.WithDescription("Nucleons recorded"),
		metric.WithUnit("{nucleon}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cosmos.nucleons: %w", err)
	}

	o.size, err = meter.Int64Histogram(
		"cosmos.message.size",
		metric.WithDescription("Rendered message size"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(16, 64, 256, 1024, 4096),
	)
	if err != nil {
		return nil, fmt.Errorf("create cosmos.message.size: %w", err)
	}
	return o, nil
}

// Record adds one to the counter and records the message size.
func (o *OTel) Record(a *cosmos.Atom, n *cosmos.Nucleon) error {
	ctx := context.Background()
	level := attribute.String("level", strings.ToLower(n.Level.String()))

	o.nucleons.Add(ctx, 1, metric.WithAttributes(
		level,
		attribute.String("atom", validation.SanitizeTagValue(a.Name())),
	))
	o.size.Record(ctx, int64(len(n.Message)), metric.WithAttributes(level))
	return nil
}

var (
	_ cosmos.Recorder = (*OTel)(nil)
	_ Leveled         = (*OTel)(nil)
)
