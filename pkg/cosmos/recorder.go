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

import "io"

// =============================================================================
// Recorder Interface
// =============================================================================

// Recorder is a sink for nucleons.
//
// A cosmos consults its recorders in registration order. Recorders are not
// owned by the cosmos: Destroy calls Close on recorders that implement
// io.Closer, nothing more.
//
// # Implementation Requirements
//
//  1. ShouldRecord must be cheap and free of side effects; it is called on
//     every logging call, before anything is allocated, and may be called
//     more than once for the same nucleon.
//
//  2. Record runs synchronously on the logging goroutine. Blocking I/O
//     here blocks the caller.
//
//  3. Record must not retain n.Message of a formatted nucleon past the
//     lifetime of its atom; copy it if needed.
//
//  4. Errors from Record are counted and passed to the cosmos error
//     handler, never to the logging caller.
type Recorder interface {
	// ShouldRecord reports whether the recorder wants nucleons at level.
	ShouldRecord(level Level) bool

	// Record consumes one nucleon logged on atom a.
	Record(a *Atom, n *Nucleon) error
}

// NullRecorder wants every level and discards everything.
//
// Because it accepts all levels, a cosmos with a NullRecorder never takes
// the no-recorder shortcut; it is the reference double for measuring the
// full allocation path.
type NullRecorder struct{}

// ShouldRecord always returns true.
func (NullRecorder) ShouldRecord(Level) bool { return true }

// Record does nothing.
func (NullRecorder) Record(*Atom, *Nucleon) error { return nil }

var _ Recorder = NullRecorder{}

// =============================================================================
// Dispatch
// =============================================================================

// firstInterested returns the recorder snapshot and the index of the first
// recorder wanting level, or -1 when none does.
func (c *Cosmos) firstInterested(level Level) ([]Recorder, int) {
	c.mu.RLock()
	recs := c.recorders
	c.mu.RUnlock()

	for i, r := range recs {
		if r.ShouldRecord(level) {
			return recs, i
		}
	}
	return recs, -1
}

// push hands n to every recorder from first onward that still wants its
// level. The first-interested scan only proves one taker, so each later
// recorder is asked again.
func (c *Cosmos) push(recs []Recorder, first int, a *Atom, n *Nucleon) {
	for _, r := range recs[first:] {
		if !r.ShouldRecord(n.Level) {
			continue
		}
		if err := r.Record(a, n); err != nil {
			c.swallow(err)
		}
	}
	c.stats.dispatched.Add(1)
}

// closeRecorder calls the optional teardown hook.
func closeRecorder(r Recorder) error {
	if cl, ok := r.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
