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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"github.com/AleutianAI/cosmos/pkg/logging"
)

// ErrClosed is returned by recorders used after Close.
var ErrClosed = errors.New("recorders: recorder closed")

// File appends rendered lines to "{service}_{YYYY-MM-DD}.log" under a
// directory, switching files when the UTC day of the records changes.
//
// Thread Safety: Safe for concurrent use.
type File struct {
	leveled

	dir     string
	service string

	mu     sync.Mutex
	file   *os.File
	day    string
	buf    []byte
	closed bool
}

// NewFile creates dir (with ~ expansion) and returns a File recorder.
// The first file is opened lazily on the first record.
func NewFile(dir, service string, min cosmos.Level) (*File, error) {
	if dir == "" {
		return nil, errors.New("file recorder: directory is required")
	}
	dir = logging.ExpandPath(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("file recorder: create directory %s: %w", dir, err)
	}
	return &File{leveled: newLeveled(min), dir: dir, service: service}, nil
}

// Dir returns the resolved directory.
func (f *File) Dir() string { return f.dir }

// Path returns the file records are currently written to, or "" before
// the first record.
func (f *File) Path() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return ""
	}
	return f.file.Name()
}

// Record appends one line.
func (f *File) Record(a *cosmos.Atom, n *cosmos.Nucleon) error {
	l := LineOf(a, n)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	day := time.Unix(0, l.Timestamp).UTC()
	if key := day.Format(time.DateOnly); key != f.day || f.file == nil {
		if err := f.rotate(day); err != nil {
			return err
		}
		f.day = key
	}

	f.buf = append(l.Append(f.buf[:0]), '\n')
	if _, err := f.file.Write(f.buf); err != nil {
		return fmt.Errorf("file recorder: write: %w", err)
	}
	return nil
}

func (f *File) rotate(day time.Time) error {
	if f.file != nil {
		if err := f.file.Close(); err != nil {
			return fmt.Errorf("file recorder: close %s: %w", f.file.Name(), err)
		}
		f.file = nil
	}
	path := filepath.Join(f.dir, logging.DailyFileName(f.service, day))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return fmt.Errorf("file recorder: open %s: %w", path, err)
	}
	f.file = file
	return nil
}

// Close syncs and closes the current file. Later records fail with
// ErrClosed.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	if f.file == nil {
		return nil
	}
	file := f.file
	f.file = nil
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("file recorder: sync: %w", err)
	}
	return file.Close()
}

var (
	_ cosmos.Recorder = (*File)(nil)
	_ Leveled         = (*File)(nil)
)
