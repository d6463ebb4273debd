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
	"strings"
)

// =============================================================================
// Levels
// =============================================================================

// Level is the severity of a nucleon.
//
// Levels are ordered: Trace < Debug < Info < Notice < Warn < Error.
// Recorders usually accept every level at or above a configured minimum.
type Level uint8

const (
	// LevelTrace is for step-by-step execution detail.
	LevelTrace Level = iota

	// LevelDebug is for development troubleshooting.
	LevelDebug

	// LevelInfo is for normal operational events.
	LevelInfo

	// LevelNotice is for normal but significant events.
	// Example: "configuration reloaded", "leader elected"
	LevelNotice

	// LevelWarn is for unexpected situations the system recovers from.
	LevelWarn

	// LevelError is for failed operations.
	LevelError
)

// Levels returns every level in ascending severity.
func Levels() []Level {
	return []Level{LevelTrace, LevelDebug, LevelInfo, LevelNotice, LevelWarn, LevelError}
}

// String returns "TRACE", "DEBUG", "INFO", "NOTICE", "WARN", "ERROR",
// or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelNotice:
		return "NOTICE"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Char returns the single-letter tag used by line renderers:
// T, D, I, N, W, E, or '?' for an unknown level.
func (l Level) Char() byte {
	if !l.Valid() {
		return '?'
	}
	return "TDINWE"[l]
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l <= LevelError
}

// ParseLevel resolves a level name, ignoring case and surrounding spaces.
// "warning" and "err" are accepted as aliases.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "notice":
		return LevelNotice, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error", "err":
		return LevelError, nil
	default:
		return 0, fmt.Errorf("cosmos: unknown level %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("cosmos: invalid level %d", l)
	}
	return []byte(strings.ToLower(l.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
