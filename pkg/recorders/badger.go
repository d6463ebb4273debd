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
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
	storage "github.com/AleutianAI/cosmos/pkg/storage/badger"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// sequenceKey holds the BadgerDB sequence that numbers records.
const sequenceKey = "seq/nucleons"

// sequenceLease is how many sequence numbers are leased per round trip.
const sequenceLease = 128

// Entry is the persisted form of a nucleon.
type Entry struct {
	Atom      string       `json:"atom"`
	AtomID    uuid.UUID    `json:"atom_id"`
	AtomBirth int64        `json:"atom_birth"`
	Seq       uint64       `json:"seq"`
	Level     cosmos.Level `json:"level"`
	Message   string       `json:"message"`
	Timestamp int64        `json:"timestamp"`
	PID       int          `json:"pid"`
	TID       int          `json:"tid"`
	File      string       `json:"file"`
	Line      int          `json:"line"`
	Function  string       `json:"function"`
}

// Render returns the entry as a Line for the line renderer.
func (e Entry) Render() Line {
	return Line{
		PID:       e.PID,
		TID:       e.TID,
		Timestamp: e.Timestamp,
		Birth:     e.AtomBirth,
		Level:     e.Level,
		Atom:      e.Atom,
		Message:   e.Message,
		Site:      cosmos.CallSite{File: e.File, Line: e.Line, Function: e.Function},
	}
}

// Badger persists every nucleon to a BadgerDB record store, one key per
// nucleon (see package storage/badger for the key layout).
//
// Thread Safety: Safe for concurrent use.
type Badger struct {
	leveled

	db      *storage.DB
	seq     *badger.Sequence
	ownsDB  bool
	closeMu sync.Mutex
	closed  bool
}

// NewBadger returns a recorder writing to db. The caller keeps ownership
// of db unless ownsDB is true, in which case Close closes it.
func NewBadger(db *storage.DB, ownsDB bool, min cosmos.Level) (*Badger, error) {
	if db == nil {
		return nil, errors.New("badger recorder: db must not be nil")
	}
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceLease)
	if err != nil {
		return nil, fmt.Errorf("badger recorder: lease sequence: %w", err)
	}
	return &Badger{leveled: newLeveled(min), db: db, seq: seq, ownsDB: ownsDB}, nil
}

// Record stores n under the next sequence number.
func (b *Badger) Record(a *cosmos.Atom, n *cosmos.Nucleon) error {
	seq, err := b.seq.Next()
	if err != nil {
		return fmt.Errorf("badger recorder: next sequence: %w", err)
	}
	value, err := json.Marshal(Entry{
		Atom:      a.Name(),
		AtomID:    a.ID(),
		AtomBirth: a.Birth(),
		Seq:       seq,
		Level:     n.Level,
		Message:   n.Message,
		Timestamp: n.Coords.Timestamp,
		PID:       n.Coords.PID,
		TID:       n.Coords.TID,
		File:      n.Site.File,
		Line:      n.Site.Line,
		Function:  n.Site.Function,
	})
	if err != nil {
		return fmt.Errorf("badger recorder: encode: %w", err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(storage.RecordKey(a.ID(), seq), value)
	})
}

// Close releases the sequence lease and, when owned, the database.
func (b *Badger) Close() error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	err := b.seq.Release()
	if b.ownsDB {
		err = errors.Join(err, b.db.Close())
	}
	return err
}

// ReadAll returns every persisted entry in record order.
func ReadAll(ctx context.Context, db *storage.DB) ([]Entry, error) {
	return readPrefix(ctx, db, []byte(storage.RecordPrefix))
}

// ReadAtom returns the entries of one atom in record order.
func ReadAtom(ctx context.Context, db *storage.DB, atom uuid.UUID) ([]Entry, error) {
	return readPrefix(ctx, db, storage.AtomPrefix(atom))
}

func readPrefix(ctx context.Context, db *storage.DB, prefix []byte) ([]Entry, error) {
	var entries []Entry
	err := db.Scan(ctx, prefix, func(key, value []byte) error {
		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return fmt.Errorf("decode %x: %w", key, err)
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Keys group by atom; the sequence restores global order.
	slices.SortFunc(entries, func(x, y Entry) int {
		return cmp.Compare(x.Seq, y.Seq)
	})
	return entries, nil
}

var (
	_ cosmos.Recorder = (*Badger)(nil)
	_ Leveled         = (*Badger)(nil)
)
