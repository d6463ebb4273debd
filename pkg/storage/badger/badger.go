// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger opens and manages the BadgerDB instances that persist
// nucleons.
//
// The badger recorder writes one key per nucleon; the dump command reads
// them back. Both go through this package so they agree on options, the
// logger adapter and the key layout:
//
//	n/<atom uuid, 16 bytes>/<sequence, 8 bytes big-endian>
//
// Keys of one atom sort in the order they were written.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Config holds configuration for a record store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	// Default: true.
	SyncWrites bool

	// ReadOnly opens an existing database without write access.
	// The dump command uses it; badger refuses it while a writer holds the
	// directory lock.
	ReadOnly bool

	// Logger receives BadgerDB's internal messages.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often value log garbage collection runs.
	// Default: 5 minutes. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable fraction that triggers GC.
	// Default: 0.5.
	GCDiscardRatio float64
}

// DefaultConfig returns the production configuration for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: no disk, no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// slogAdapter routes BadgerDB's printf-style logger into slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (l *slogAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (l *slogAdapter) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (l *slogAdapter) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (l *slogAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

var _ badger.Logger = (*slogAdapter)(nil)

// =============================================================================
// DB
// =============================================================================

// DB is an open record store.
//
// Thread Safety: Safe for concurrent use.
type DB struct {
	*badger.DB
	cfg Config

	gcStop    chan struct{}
	gcDone    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Open opens the store described by cfg, creating the directory when
// needed, and starts value log GC when cfg.GCInterval is set.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*DB - The open store. Caller must call Close().
//	error - Non-nil if the path is missing or BadgerDB refuses to open.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if !cfg.ReadOnly {
			if err := os.MkdirAll(cfg.Path, 0750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
			}
		}
		opts = badger.DefaultOptions(cfg.Path).WithReadOnly(cfg.ReadOnly)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&slogAdapter{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	db := &DB{DB: bdb, cfg: cfg}
	if cfg.GCInterval > 0 && !cfg.InMemory && !cfg.ReadOnly {
		if cfg.GCDiscardRatio <= 0 || cfg.GCDiscardRatio >= 1 {
			bdb.Close()
			return nil, errors.New("gc discard ratio must be between 0 and 1")
		}
		db.gcStop = make(chan struct{})
		db.gcDone = make(chan struct{})
		go db.runGC()
	}
	return db, nil
}

// Path returns the database directory, or "" in memory.
func (d *DB) Path() string {
	if d.cfg.InMemory {
		return ""
	}
	return d.cfg.Path
}

// InMemory reports whether the store lives only in RAM.
func (d *DB) InMemory() bool { return d.cfg.InMemory }

// Close stops GC and closes the database. Safe to call more than once.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		if d.gcStop != nil {
			close(d.gcStop)
			<-d.gcDone
		}
		d.closeErr = d.DB.Close()
	})
	return d.closeErr
}

func (d *DB) runGC() {
	defer close(d.gcDone)

	ticker := time.NewTicker(d.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.gcStop:
			return
		case <-ticker.C:
			err := d.DB.RunValueLogGC(d.cfg.GCDiscardRatio)
			// ErrNoRewrite means there was nothing to collect.
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && d.cfg.Logger != nil {
				d.cfg.Logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

// =============================================================================
// Key layout
// =============================================================================

// RecordPrefix is the first segment of every nucleon key.
const RecordPrefix = "n/"

// recordKeyLen is "n/" + 16 uuid bytes + "/" + 8 sequence bytes.
const recordKeyLen = len(RecordPrefix) + 16 + 1 + 8

// RecordKey builds the key of the seq-th record of atom.
func RecordKey(atom uuid.UUID, seq uint64) []byte {
	key := make([]byte, 0, recordKeyLen)
	key = append(key, RecordPrefix...)
	key = append(key, atom[:]...)
	key = append(key, '/')
	return binary.BigEndian.AppendUint64(key, seq)
}

// AtomPrefix returns the key prefix shared by every record of atom.
func AtomPrefix(atom uuid.UUID) []byte {
	key := make([]byte, 0, recordKeyLen-8)
	key = append(key, RecordPrefix...)
	key = append(key, atom[:]...)
	return append(key, '/')
}

// ParseRecordKey splits a record key back into atom id and sequence.
func ParseRecordKey(key []byte) (uuid.UUID, uint64, error) {
	if len(key) != recordKeyLen || string(key[:len(RecordPrefix)]) != RecordPrefix || key[len(RecordPrefix)+16] != '/' {
		return uuid.Nil, 0, fmt.Errorf("malformed record key %x", key)
	}
	id, err := uuid.FromBytes(key[len(RecordPrefix) : len(RecordPrefix)+16])
	if err != nil {
		return uuid.Nil, 0, err
	}
	return id, binary.BigEndian.Uint64(key[recordKeyLen-8:]), nil
}

// Scan calls fn for every key under prefix in key order, stopping at the
// first error. Values are only valid inside fn.
func (d *DB) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	return d.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("scan cancelled: %w", err)
			}
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				return fn(item.Key(), val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}
