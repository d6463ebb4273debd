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
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Spans maps atoms onto OpenTelemetry spans.
//
// The first nucleon of an atom starts a span named after the atom, backdated
// to the atom's birth. Every nucleon becomes a span event. An Error nucleon
// marks the span as failed. Spans end in EndAtom, or in Close for whatever
// is still open. Spans of atoms destroyed without EndAtom are ended when
// the map is next swept, which happens whenever it has doubled since the
// previous sweep.
//
// Thread Safety: Safe for concurrent use.
type Spans struct {
	leveled
	tracer trace.Tracer

	mu        sync.Mutex
	spans     map[uuid.UUID]atomSpan
	nextSweep int
}

type atomSpan struct {
	atom *cosmos.Atom
	span trace.Span
}

// minSweep is the map size below which no sweep runs.
const minSweep = 64

// NewSpans returns a recorder starting spans on tracer.
func NewSpans(tracer trace.Tracer, min cosmos.Level) *Spans {
	return &Spans{
		leveled:   newLeveled(min),
		tracer:    tracer,
		spans:     make(map[uuid.UUID]atomSpan),
		nextSweep: minSweep,
	}
}

// Record adds n as an event on the atom's span.
func (s *Spans) Record(a *cosmos.Atom, n *cosmos.Nucleon) error {
	span := s.spanFor(a)

	span.AddEvent(strings.Clone(n.Message),
		trace.WithTimestamp(time.Unix(0, n.Coords.Timestamp)),
		trace.WithAttributes(
			attribute.String("level", n.Level.String()),
			attribute.Int("tid", n.Coords.TID),
			attribute.String("code.filepath", n.Site.File),
			attribute.Int("code.lineno", n.Site.Line),
			attribute.String("code.function", n.Site.Function),
		),
	)
	if n.Level >= cosmos.LevelError {
		span.SetStatus(codes.Error, strings.Clone(n.Message))
	}
	return nil
}

func (s *Spans) spanFor(a *cosmos.Atom) trace.Span {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.spans[a.ID()]; ok {
		return e.span
	}
	if len(s.spans) >= s.nextSweep {
		s.sweepLocked()
	}
	_, span := s.tracer.Start(context.Background(), a.Name(),
		trace.WithTimestamp(time.Unix(0, a.Birth())),
		trace.WithAttributes(
			attribute.String("cosmos.atom.id", a.ID().String()),
		),
	)
	s.spans[a.ID()] = atomSpan{atom: a, span: span}
	return span
}

// sweepLocked ends and forgets the spans of destroyed atoms.
func (s *Spans) sweepLocked() {
	for id, e := range s.spans {
		if e.atom.Destroyed() {
			endSpan(e)
			delete(s.spans, id)
		}
	}
	s.nextSweep = max(2*len(s.spans), minSweep)
}

// EndAtom ends the span of a. A decayed atom's span ends at birth plus
// its duration; otherwise it ends now. EndAtom is a no-op for atoms that
// never recorded anything here.
func (s *Spans) EndAtom(a *cosmos.Atom) {
	s.mu.Lock()
	e, ok := s.spans[a.ID()]
	delete(s.spans, a.ID())
	s.mu.Unlock()
	if ok {
		endSpan(e)
	}
}

func endSpan(e atomSpan) {
	end := time.Now()
	if e.atom.Decayed() {
		end = time.Unix(0, e.atom.Birth()).Add(e.atom.Duration())
	}
	e.span.End(trace.WithTimestamp(end))
}

// Open returns the number of spans not yet ended.
func (s *Spans) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spans)
}

// Close ends every open span.
func (s *Spans) Close() error {
	s.mu.Lock()
	spans := s.spans
	s.spans = make(map[uuid.UUID]atomSpan)
	s.mu.Unlock()

	for _, e := range spans {
		e.span.End()
	}
	return nil
}

var (
	_ cosmos.Recorder = (*Spans)(nil)
	_ Leveled         = (*Spans)(nil)
)
