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
	"os"
	"sync"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// =============================================================================
// Palette
// =============================================================================

var (
	ColorTrace  = lipgloss.Color("#2C4A54") // Slate - muted
	ColorDebug  = lipgloss.Color("#157483") // Ocean teal
	ColorInfo   = lipgloss.Color("#20B9B4") // Primary teal
	ColorNotice = lipgloss.Color("#2CD7C7") // Bright teal
	ColorWarn   = lipgloss.Color("#F4D03F") // Gold/amber
	ColorError  = lipgloss.Color("#E74C3C") // Red
)

// levelStyles is indexed by cosmos.Level.
var levelStyles = [...]lipgloss.Style{
	cosmos.LevelTrace:  lipgloss.NewStyle().Foreground(ColorTrace),
	cosmos.LevelDebug:  lipgloss.NewStyle().Foreground(ColorDebug),
	cosmos.LevelInfo:   lipgloss.NewStyle().Foreground(ColorInfo),
	cosmos.LevelNotice: lipgloss.NewStyle().Foreground(ColorNotice).Bold(true),
	cosmos.LevelWarn:   lipgloss.NewStyle().Foreground(ColorWarn).Bold(true),
	cosmos.LevelError:  lipgloss.NewStyle().Foreground(ColorError).Bold(true),
}

// =============================================================================
// Writer
// =============================================================================

// Writer renders nucleons as lines on an io.Writer, one write per line.
//
// When the destination is a terminal the whole line is coloured by level.
// The Writer does not own w and never closes it.
//
// Thread Safety: Safe for concurrent use; lines are never interleaved.
type Writer struct {
	leveled

	mu    sync.Mutex
	w     io.Writer
	color bool
	buf   []byte
}

// NewWriter returns a Writer on w admitting min and above.
//
// Colour is enabled when w is an *os.File attached to a terminal.
func NewWriter(w io.Writer, min cosmos.Level) *Writer {
	return &Writer{
		leveled: newLeveled(min),
		w:       w,
		color:   isTerminal(w),
	}
}

// NewConsole returns a Writer on stderr.
func NewConsole(min cosmos.Level) *Writer {
	return NewWriter(os.Stderr, min)
}

// SetColor forces colour on or off.
func (w *Writer) SetColor(on bool) {
	w.mu.Lock()
	w.color = on
	w.mu.Unlock()
}

// Record writes one line.
func (w *Writer) Record(a *cosmos.Atom, n *cosmos.Nucleon) error {
	return w.WriteLine(LineOf(a, n))
}

// WriteLine renders l. The dump command uses it for persisted entries.
func (w *Writer) WriteLine(l Line) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = l.Append(w.buf[:0])
	if w.color && l.Level.Valid() {
		w.buf = append(w.buf[:0], levelStyles[l.Level].Render(string(w.buf))...)
	}
	w.buf = append(w.buf, '\n')
	_, err := w.w.Write(w.buf)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var (
	_ cosmos.Recorder = (*Writer)(nil)
	_ Leveled         = (*Writer)(nil)
)
