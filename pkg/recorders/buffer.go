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
	"sync"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
)

// Buffer keeps the most recent lines in memory.
//
// The debug server serves it at /recent; tests use it to observe what a
// cosmos dispatched. A capacity of zero keeps everything.
//
// Thread Safety: Safe for concurrent use.
type Buffer struct {
	leveled

	mu    sync.Mutex
	lines []Line
	next  int
	full  bool
	limit int
	total int64
}

// NewBuffer returns a Buffer holding at most capacity lines.
func NewBuffer(capacity int, min cosmos.Level) *Buffer {
	b := &Buffer{leveled: newLeveled(min), limit: max(capacity, 0)}
	if b.limit > 0 {
		b.lines = make([]Line, 0, b.limit)
	}
	return b
}

// Record stores a copy of n.
func (b *Buffer) Record(a *cosmos.Atom, n *cosmos.Nucleon) error {
	l := LineOf(a, n)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.total++
	switch {
	case b.limit == 0 || len(b.lines) < b.limit:
		b.lines = append(b.lines, l)
	default:
		b.lines[b.next] = l
		b.next = (b.next + 1) % b.limit
		b.full = true
	}
	return nil
}

// Lines returns the retained lines, oldest first.
func (b *Buffer) Lines() []Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Line, 0, len(b.lines))
	if b.full {
		out = append(out, b.lines[b.next:]...)
		out = append(out, b.lines[:b.next]...)
		return out
	}
	return append(out, b.lines...)
}

// Messages returns the messages of the retained lines, oldest first.
func (b *Buffer) Messages() []string {
	lines := b.Lines()
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Message
	}
	return out
}

// Total returns how many lines were ever recorded, evicted ones included.
func (b *Buffer) Total() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Reset drops every retained line.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = b.lines[:0]
	b.next = 0
	b.full = false
}

var (
	_ cosmos.Recorder = (*Buffer)(nil)
	_ Leveled         = (*Buffer)(nil)
)
