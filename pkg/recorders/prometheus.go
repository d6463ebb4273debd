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
	"fmt"
	"strings"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"github.com/AleutianAI/cosmos/pkg/validation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Nucleons
// =============================================================================

// DefaultPrometheusNamespace prefixes the metrics when no namespace is set.
const DefaultPrometheusNamespace = "cosmos"

// Prometheus counts nucleons instead of storing them.
//
// Metrics (namespace defaults to "cosmos"):
//
//	<ns>_nucleons_total{level, atom}       counter
//	<ns>_message_bytes{level}              histogram
//	<ns>_atom_age_seconds{level}           histogram of atom age at record time
//
// Atom names are sanitized with validation.SanitizeTagValue before becoming
// label values.
type Prometheus struct {
	leveled

	nucleons *prometheus.CounterVec
	bytes    *prometheus.HistogramVec
	age      *prometheus.HistogramVec
}

// NewPrometheus registers the metrics on reg. A nil reg means the default
// registerer.
//
// A namespace already registered on reg fails with an error wrapping
// prometheus.AlreadyRegisteredError; nothing is left registered.
func NewPrometheus(reg prometheus.Registerer, namespace string, min cosmos.Level) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultPrometheusNamespace
	}
	// Unregistered factory; registration happens below so a clash is an
	// error instead of a panic.
	factory := promauto.With(nil)

	p := &Prometheus{
		leveled: newLeveled(min),

		// Labels: level (trace..error), atom (sanitized atom name)
		nucleons: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nucleons_total",
			Help:      "Total nucleons recorded by level and atom",
		}, []string{"level", "atom"}),

		bytes: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_bytes",
			Help:      "Rendered message size in bytes",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 6),
		}, []string{"level"}),

		age: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "atom_age_seconds",
			Help:      "Age of the atom when the nucleon was recorded",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
		}, []string{"level"}),
	}

	var registered []prometheus.Collector
	for _, c := range []prometheus.Collector{p.nucleons, p.bytes, p.age} {
		if err := reg.Register(c); err != nil {
			for _, r := range registered {
				reg.Unregister(r)
			}
			return nil, fmt.Errorf("prometheus recorder: namespace %q: %w", namespace, err)
		}
		registered = append(registered, c)
	}
	return p, nil
}

// Record updates the metrics.
func (p *Prometheus) Record(a *cosmos.Atom, n *cosmos.Nucleon) error {
	level := strings.ToLower(n.Level.String())
	p.nucleons.WithLabelValues(level, validation.SanitizeTagValue(a.Name())).Inc()
	p.bytes.WithLabelValues(level).Observe(float64(len(n.Message)))
	age := max(n.Coords.Timestamp-a.Birth(), 0)
	p.age.WithLabelValues(level).Observe(float64(age) / 1e9)
	return nil
}

var (
	_ cosmos.Recorder = (*Prometheus)(nil)
	_ Leveled         = (*Prometheus)(nil)
)
