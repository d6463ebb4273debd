// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cosmos is an in-process structured event-logging engine.
//
// # Vocabulary
//
//   - Nucleon: one logged event. Severity, message, coordinates (timestamp,
//     pid, tid), call site, and an embedded typed payload (the gluon).
//   - Atom: a named scope (a request, a task, a subsystem instance) that
//     owns its nucleons in chronological order and times its own lifetime.
//   - Cosmos: the root. Owns the atoms, the ordered recorder list and the
//     allocator nucleon regions come from.
//   - Recorder: a pluggable sink that filters by severity.
//
// # Architecture
//
//	┌──────────────────────────── Cosmos ────────────────────────────┐
//	│  atoms ring ─► Atom ─► Atom ─► …        recorders: [R0 R1 R2]  │
//	│                 │                                              │
//	│                 └─ nucleons ring ─► N ─► N ─► …                │
//	└────────────────────────────────────────────────────────────────┘
//
// Every list is an intrusive ring (package dlist): inserting and removing
// a nucleon or an atom never allocates.
//
// # Dispatch
//
// A logging call first scans the recorders for the first one that wants
// the level. If none does, the call returns without allocating. Otherwise
// the nucleon is allocated in a single region, appended to the atom, and
// pushed to every recorder from that first index onward, each asked again
// whether it wants the level.
//
// # Basic Usage
//
//	c := cosmos.New(cosmos.WithRecorders(recorders.NewWriter(os.Stderr, cosmos.LevelInfo)))
//	defer c.Destroy()
//
//	req, _ := c.NewAtom("request")
//	req.Info("request started")
//	req.Warnf("retry %d of %d", 2, 3)
//
//	type timing struct{ Micros int64 }
//	cosmos.Log(req, cosmos.LevelNotice, timing{Micros: 420}, "db call")
//
//	req.Decay()
//	req.Destroy()
//
// # Error Handling
//
// The leveled methods (Info, Warnf, Log, …) never return errors: allocation,
// formatting and recorder failures are counted in Stats and passed to the
// handler installed with WithErrorHandler. NewNucleon, NewNucleonf, Emit and
// Emitf return them.
//
// # Payloads
//
// A gluon is copied byte for byte into the nucleon's region, so its type
// must be plain data: numbers, booleans, arrays and structs of those. Types
// holding pointers (strings, slices, maps, interfaces, …) are rejected with
// ErrGluonType. Reading a gluon back requires the same type:
//
//	t, err := cosmos.Gluon[timing](n)
package cosmos
