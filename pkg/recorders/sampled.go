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
	"io"
	"sync/atomic"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"golang.org/x/time/rate"
)

// Sampled rate-limits another recorder with a token bucket.
//
// Records at or above the bypass level always pass and do not consume
// tokens. ShouldRecord defers to the wrapped recorder and never consumes a
// token, so the first-interested scan stays free of side effects; the
// sampling decision is made in Record.
type Sampled struct {
	next    cosmos.Recorder
	limiter *rate.Limiter
	bypass  cosmos.Level

	passed  atomic.Int64
	dropped atomic.Int64
}

// NewSampled wraps next, admitting perSecond records per second with the
// given burst below the bypass level.
func NewSampled(next cosmos.Recorder, perSecond float64, burst int, bypass cosmos.Level) *Sampled {
	return &Sampled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), max(burst, 1)),
		bypass:  bypass,
	}
}

// ShouldRecord defers to the wrapped recorder.
func (s *Sampled) ShouldRecord(level cosmos.Level) bool {
	return s.next.ShouldRecord(level)
}

// Record forwards n if it bypasses sampling or a token is available.
func (s *Sampled) Record(a *cosmos.Atom, n *cosmos.Nucleon) error {
	if n.Level < s.bypass && !s.limiter.Allow() {
		s.dropped.Add(1)
		return nil
	}
	s.passed.Add(1)
	return s.next.Record(a, n)
}

// Threshold exposes the wrapped recorder's threshold, if it has one.
func (s *Sampled) Threshold() *Threshold {
	if l, ok := s.next.(Leveled); ok {
		return l.Threshold()
	}
	return nil
}

// Passed returns the number of forwarded records.
func (s *Sampled) Passed() int64 { return s.passed.Load() }

// Dropped returns the number of records sampled out.
func (s *Sampled) Dropped() int64 { return s.dropped.Load() }

// Unwrap returns the wrapped recorder.
func (s *Sampled) Unwrap() cosmos.Recorder { return s.next }

// Close closes the wrapped recorder if it is an io.Closer.
func (s *Sampled) Close() error {
	if c, ok := s.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var (
	_ cosmos.Recorder = (*Sampled)(nil)
	_ Leveled         = (*Sampled)(nil)
	_ io.Closer       = (*Sampled)(nil)
)
