// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chrono converts nanosecond timestamps into calendar fields and
// renders them under a small set of named, fixed-width formats.
//
// All conversions are in UTC and are pure functions of their input.
package chrono

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Format selects a rendering layout.
type Format string

const (
	// FormatISO renders YYYY-MM-DDTHH:MM:SS.mmm.
	FormatISO Format = "iso"
	// FormatLog renders YYYY-MM-DD HH:MM:SS.mmm.
	FormatLog Format = "log"
	// FormatDate renders YYYY-MM-DD.
	FormatDate Format = "date"
	// FormatTime renders HH:MM:SS.mmm.
	FormatTime Format = "time"
	// FormatUS renders MM/DD/YYYY HH:MM:SS.
	FormatUS Format = "us"
)

// ErrUnknownFormat is returned for a format selector outside the known set.
var ErrUnknownFormat = errors.New("chrono: unknown format")

// Formats lists every supported selector.
func Formats() []Format {
	return []Format{FormatISO, FormatLog, FormatDate, FormatTime, FormatUS}
}

// ParseFormat resolves a selector name, ignoring case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Calendar holds the broken-down UTC fields of a timestamp.
type Calendar struct {
	Year        int
	Month       int
	Day         int
	Hour        int
	Minute      int
	Second      int
	Millisecond int
}

// FromNanos splits a Unix nanosecond timestamp into calendar fields.
func FromNanos(ns int64) Calendar {
	t := time.Unix(0, ns).UTC()
	return Calendar{
		Year:        t.Year(),
		Month:       int(t.Month()),
		Day:         t.Day(),
		Hour:        t.Hour(),
		Minute:      t.Minute(),
		Second:      t.Second(),
		Millisecond: t.Nanosecond() / int(time.Millisecond),
	}
}

// Render formats the calendar under f.
func (c Calendar) Render(f Format) (string, error) {
	switch f {
	case FormatISO:
		return c.date() + "T" + c.clock(), nil
	case FormatLog:
		return c.date() + " " + c.clock(), nil
	case FormatDate:
		return c.date(), nil
	case FormatTime:
		return c.clock(), nil
	case FormatUS:
		return fmt.Sprintf("%02d/%02d/%04d %02d:%02d:%02d",
			c.Month, c.Day, c.Year, c.Hour, c.Minute, c.Second), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// String renders the calendar in ISO form.
func (c Calendar) String() string {
	return c.date() + "T" + c.clock()
}

// Render converts ns and renders it under f.
func Render(ns int64, f Format) (string, error) {
	return FromNanos(ns).Render(f)
}

// ISO renders ns as YYYY-MM-DDTHH:MM:SS.mmm.
func ISO(ns int64) string {
	return FromNanos(ns).String()
}

func (c Calendar) date() string {
	return fmt.Sprintf("%04d-%02d-%02d", c.Year, c.Month, c.Day)
}

func (c Calendar) clock() string {
	return fmt.Sprintf("%02d:%02d:%02d.%03d", c.Hour, c.Minute, c.Second, c.Millisecond)
}
