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
	"sync/atomic"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
)

// Threshold is a minimum level that can be changed while recorders are in
// use. Every recorder in this package filters through one; the config
// watcher adjusts them when the config file changes.
//
// Thread Safety: Safe for concurrent use.
type Threshold struct {
	min atomic.Uint32
}

// NewThreshold returns a threshold admitting min and above.
func NewThreshold(min cosmos.Level) *Threshold {
	t := &Threshold{}
	t.min.Store(uint32(min))
	return t
}

// Level returns the current minimum.
func (t *Threshold) Level() cosmos.Level {
	return cosmos.Level(t.min.Load())
}

// SetLevel replaces the minimum and returns the previous one.
func (t *Threshold) SetLevel(min cosmos.Level) cosmos.Level {
	return cosmos.Level(t.min.Swap(uint32(min)))
}

// Allows reports whether level passes the threshold.
func (t *Threshold) Allows(level cosmos.Level) bool {
	return uint32(level) >= t.min.Load()
}

// Leveled is implemented by recorders that expose their threshold.
type Leveled interface {
	Threshold() *Threshold
}

// leveled is embedded by recorders to provide ShouldRecord and Threshold.
type leveled struct {
	threshold *Threshold
}

func newLeveled(min cosmos.Level) leveled {
	return leveled{threshold: NewThreshold(min)}
}

// ShouldRecord reports whether level passes the recorder's threshold.
func (l leveled) ShouldRecord(level cosmos.Level) bool {
	return l.threshold.Allows(level)
}

// Threshold returns the recorder's adjustable minimum level.
func (l leveled) Threshold() *Threshold {
	return l.threshold
}
