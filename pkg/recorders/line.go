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
	"strconv"
	"strings"

	"github.com/AleutianAI/cosmos/pkg/chrono"
	"github.com/AleutianAI/cosmos/pkg/cosmos"
)

// =============================================================================
// Line rendering
// =============================================================================

// Line is a nucleon detached from its atom: everything a renderer needs,
// with the message copied out of the nucleon's region.
//
// Lines are built from live nucleons (LineOf) and from persisted entries
// (Entry.Render), so both render identically.
type Line struct {
	PID       int
	TID       int
	Timestamp int64
	Birth     int64
	Level     cosmos.Level
	Atom      string
	Message   string
	Site      cosmos.CallSite
}

// LineOf captures n, logged on a, as a Line.
func LineOf(a *cosmos.Atom, n *cosmos.Nucleon) Line {
	return Line{
		PID:       n.Coords.PID,
		TID:       n.Coords.TID,
		Timestamp: n.Coords.Timestamp,
		Birth:     a.Birth(),
		Level:     n.Level,
		Atom:      a.Name(),
		Message:   strings.Clone(n.Message),
		Site:      n.Site,
	}
}

// Age returns the nanoseconds between atom birth and the record, never
// negative.
func (l Line) Age() int64 {
	return max(l.Timestamp-l.Birth, 0)
}

// String renders the line without a trailing newline.
func (l Line) String() string {
	return string(l.Append(nil))
}

// Append renders the line onto dst:
//
//	[pid:tid] 2024-03-05T07:08:09.012 I: 1.250 [request] message (file.go:42 in pkg.Func)
//
// The age is the atom's age at the time of the record, in seconds with
// millisecond precision.
func (l Line) Append(dst []byte) []byte {
	dst = append(dst, '[')
	dst = strconv.AppendInt(dst, int64(l.PID), 10)
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, int64(l.TID), 10)
	dst = append(dst, "] "...)
	dst = append(dst, chrono.ISO(l.Timestamp)...)
	dst = append(dst, ' ', l.Level.Char(), ':', ' ')
	dst = appendAge(dst, l.Age())
	dst = append(dst, " ["...)
	dst = append(dst, l.Atom...)
	dst = append(dst, "] "...)
	dst = append(dst, l.Message...)
	dst = append(dst, " ("...)
	dst = append(dst, l.Site.String()...)
	return append(dst, ')')
}

// appendAge writes ns as seconds.millis.
func appendAge(dst []byte, ns int64) []byte {
	ms := ns / 1e6
	dst = strconv.AppendInt(dst, ms/1000, 10)
	dst = append(dst, '.')
	frac := ms % 1000
	if frac < 100 {
		dst = append(dst, '0')
	}
	if frac < 10 {
		dst = append(dst, '0')
	}
	return strconv.AppendInt(dst, frac, 10)
}
