// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cosmos

import (
	"fmt"
	"time"

	"github.com/AleutianAI/cosmos/pkg/dlist"
	"github.com/google/uuid"
)

// =============================================================================
// Atom
// =============================================================================

// Atom is a named scope of logging activity: one request, one task, one
// subsystem instance. It owns its nucleons in chronological order and
// measures its own lifetime.
//
// Atoms are created by Cosmos.NewAtom and destroyed by Destroy, which frees
// every nucleon still linked and removes the atom from its cosmos.
type Atom struct {
	name     string
	id       uuid.UUID
	born     time.Time
	birth    int64
	duration time.Duration
	decayed  bool

	records dlist.Link[Nucleon]
	link    dlist.Link[Atom]
	cosmos  *Cosmos

	destroyed bool
}

// Name returns the name the atom was created with.
func (a *Atom) Name() string { return a.name }

// ID returns the unique id assigned at creation.
func (a *Atom) ID() uuid.UUID { return a.id }

// Birth returns the creation time as Unix nanoseconds.
func (a *Atom) Birth() int64 { return a.birth }

// Cosmos returns the owning cosmos.
func (a *Atom) Cosmos() *Cosmos { return a.cosmos }

// Duration returns the lifetime recorded by Decay, or zero before it.
func (a *Atom) Duration() time.Duration {
	a.cosmos.mu.RLock()
	defer a.cosmos.mu.RUnlock()
	return a.duration
}

// Decayed reports whether Decay has run.
func (a *Atom) Decayed() bool {
	a.cosmos.mu.RLock()
	defer a.cosmos.mu.RUnlock()
	return a.decayed
}

// Decay closes the atom's lifetime, setting Duration to the time elapsed
// since birth. It panics if called twice.
func (a *Atom) Decay() {
	if err := a.TryDecay(); err != nil {
		panic(err)
	}
}

// TryDecay is Decay returning ErrAlreadyDecayed instead of panicking.
func (a *Atom) TryDecay() error {
	now := a.cosmos.clock()

	a.cosmos.mu.Lock()
	defer a.cosmos.mu.Unlock()
	if a.decayed {
		return fmt.Errorf("%w: %q", ErrAlreadyDecayed, a.name)
	}
	d := now.Sub(a.born)
	if d < 0 {
		d = 0
	}
	a.duration = d
	a.decayed = true
	return nil
}

// Count returns the number of nucleons linked into the atom.
func (a *Atom) Count() int {
	a.cosmos.mu.RLock()
	defer a.cosmos.mu.RUnlock()
	return a.records.Count() - 1
}

// Nucleons returns a snapshot of the atom's nucleons, oldest first.
func (a *Atom) Nucleons() []*Nucleon {
	a.cosmos.mu.RLock()
	defer a.cosmos.mu.RUnlock()
	out := make([]*Nucleon, 0, a.records.Count()-1)
	for n := range a.records.All() {
		out = append(out, n)
	}
	return out
}

// Release unlinks n from the atom and frees it ahead of the atom.
func (a *Atom) Release(n *Nucleon) error {
	a.cosmos.mu.Lock()
	defer a.cosmos.mu.Unlock()
	if n.atom.Load() != a {
		return ErrForeignNucleon
	}
	n.link.Remove()
	n.atom.Store(nil)
	n.destroy(a.cosmos.alloc)
	return nil
}

// Destroy frees every nucleon, then unlinks the atom from its cosmos.
// Destroy is idempotent.
func (a *Atom) Destroy() {
	a.cosmos.mu.Lock()
	defer a.cosmos.mu.Unlock()
	a.destroyLocked()
}

// Destroyed reports whether Destroy has run.
func (a *Atom) Destroyed() bool {
	a.cosmos.mu.RLock()
	defer a.cosmos.mu.RUnlock()
	return a.destroyed
}

func (a *Atom) destroyLocked() {
	if a.destroyed {
		return
	}
	a.destroyed = true
	for n := range a.records.All() {
		n.link.Remove()
		n.atom.Store(nil)
		n.destroy(a.cosmos.alloc)
	}
	a.link.Remove()
}

// append links n at the tail. It reports false if the atom is gone.
func (a *Atom) append(n *Nucleon) bool {
	a.cosmos.mu.Lock()
	defer a.cosmos.mu.Unlock()
	if a.destroyed {
		return false
	}
	a.records.InsertBefore(&n.link)
	n.atom.Store(a)
	return true
}

// =============================================================================
// Logging
// =============================================================================

// empty is the gluon of nucleons logged without a payload.
type empty = struct{}

// Trace logs msg at LevelTrace.
func (a *Atom) Trace(msg string) { a.literal(LevelTrace, msg) }

// Debug logs msg at LevelDebug.
func (a *Atom) Debug(msg string) { a.literal(LevelDebug, msg) }

// Info logs msg at LevelInfo.
func (a *Atom) Info(msg string) { a.literal(LevelInfo, msg) }

// Notice logs msg at LevelNotice.
func (a *Atom) Notice(msg string) { a.literal(LevelNotice, msg) }

// Warn logs msg at LevelWarn.
func (a *Atom) Warn(msg string) { a.literal(LevelWarn, msg) }

// Error logs msg at LevelError.
func (a *Atom) Error(msg string) { a.literal(LevelError, msg) }

// Tracef logs a formatted message at LevelTrace.
func (a *Atom) Tracef(format string, args ...any) { a.formatted(LevelTrace, format, args) }

// Debugf logs a formatted message at LevelDebug.
func (a *Atom) Debugf(format string, args ...any) { a.formatted(LevelDebug, format, args) }

// Infof logs a formatted message at LevelInfo.
func (a *Atom) Infof(format string, args ...any) { a.formatted(LevelInfo, format, args) }

// Noticef logs a formatted message at LevelNotice.
func (a *Atom) Noticef(format string, args ...any) { a.formatted(LevelNotice, format, args) }

// Warnf logs a formatted message at LevelWarn.
func (a *Atom) Warnf(format string, args ...any) { a.formatted(LevelWarn, format, args) }

// Errorf logs a formatted message at LevelError.
func (a *Atom) Errorf(format string, args ...any) { a.formatted(LevelError, format, args) }

// literal and formatted sit one frame below the exported methods; the
// call site is two frames above emit.
func (a *Atom) literal(level Level, msg string) {
	if _, err := emit(a, level, 3, empty{}, msg); err != nil {
		a.cosmos.swallow(err)
	}
}

func (a *Atom) formatted(level Level, format string, args []any) {
	if _, err := emitf(a, level, 3, empty{}, format, args); err != nil {
		a.cosmos.swallow(err)
	}
}

// Log logs msg with a payload at level. Failures are swallowed.
func Log[G any](a *Atom, level Level, gluon G, msg string) {
	if _, err := emit(a, level, 2, gluon, msg); err != nil {
		a.cosmos.swallow(err)
	}
}

// Logf logs a formatted message with a payload at level. Failures are
// swallowed.
func Logf[G any](a *Atom, level Level, gluon G, format string, args ...any) {
	if _, err := emitf(a, level, 2, gluon, format, args); err != nil {
		a.cosmos.swallow(err)
	}
}

// Emit is Log for callers that want the outcome. It returns the linked
// nucleon, or nil with a nil error when no recorder wants level.
func Emit[G any](a *Atom, level Level, gluon G, msg string) (*Nucleon, error) {
	return emit(a, level, 2, gluon, msg)
}

// Emitf is Logf for callers that want the outcome.
func Emitf[G any](a *Atom, level Level, gluon G, format string, args ...any) (*Nucleon, error) {
	return emitf(a, level, 2, gluon, format, args)
}

// emit runs the dispatch pipeline for a literal message. skip counts the
// frames between emit and the user's call.
func emit[G any](a *Atom, level Level, skip int, gluon G, msg string) (*Nucleon, error) {
	c := a.cosmos
	recs, first := c.firstInterested(level)
	if first < 0 {
		c.stats.shortCircuited.Add(1)
		return nil, nil
	}
	n, err := NewNucleon(c, level, Caller(skip), gluon, msg)
	if err != nil {
		return nil, err
	}
	return deliver(a, recs, first, n)
}

func emitf[G any](a *Atom, level Level, skip int, gluon G, format string, args []any) (*Nucleon, error) {
	c := a.cosmos
	recs, first := c.firstInterested(level)
	if first < 0 {
		c.stats.shortCircuited.Add(1)
		return nil, nil
	}
	n, err := NewNucleonf(c, level, Caller(skip), gluon, format, args...)
	if err != nil {
		return nil, err
	}
	return deliver(a, recs, first, n)
}

func deliver(a *Atom, recs []Recorder, first int, n *Nucleon) (*Nucleon, error) {
	c := a.cosmos
	if !a.append(n) {
		n.destroy(c.alloc)
		return nil, fmt.Errorf("%w: %q", ErrAtomDestroyed, a.name)
	}
	c.push(recs, first, a, n)
	return n, nil
}
