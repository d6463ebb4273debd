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
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/cosmos/pkg/dlist"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Cosmos
// =============================================================================

// Cosmos is the root of a logging tree: it owns the atoms, the ordered
// recorder list and the allocator every nucleon is carved from.
//
// # Thread Safety
//
// A Cosmos and its atoms may be used from multiple goroutines. One
// read-write mutex serializes list splices (atom membership and nucleon
// insertion), recorder registration and destruction. Recorders run outside
// the lock, so a recorder may itself log.
type Cosmos struct {
	mu        sync.RWMutex
	atoms     dlist.Link[Atom]
	recorders []Recorder // copy-on-write; never mutated in place

	alloc    Allocator
	clock    func() time.Time
	threadID func() int
	onError  func(error)
	pid      int

	destroyed bool
	stats     counters
}

// Option configures a Cosmos.
type Option func(*Cosmos)

// WithAllocator sets the allocator for nucleon regions.
// Default: HeapAllocator.
func WithAllocator(a Allocator) Option {
	return func(c *Cosmos) {
		if a != nil {
			c.alloc = a
		}
	}
}

// WithClock replaces time.Now for atom births, decay and coordinates.
func WithClock(clock func() time.Time) Option {
	return func(c *Cosmos) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithThreadID replaces the OS thread id lookup used for coordinates.
func WithThreadID(fn func() int) Option {
	return func(c *Cosmos) {
		if fn != nil {
			c.threadID = fn
		}
	}
}

// WithErrorHandler receives every error swallowed by the fire-and-forget
// logging methods (allocation, formatting and recorder failures).
// The handler runs synchronously on the logging goroutine.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Cosmos) {
		c.onError = fn
	}
}

// WithRecorders registers recorders in the given order.
func WithRecorders(recs ...Recorder) Option {
	return func(c *Cosmos) {
		for _, r := range recs {
			if r != nil {
				c.recorders = append(c.recorders, r)
			}
		}
	}
}

// New creates an empty cosmos.
func New(opts ...Option) *Cosmos {
	c := &Cosmos{
		alloc:    HeapAllocator{},
		clock:    time.Now,
		threadID: threadID,
		pid:      os.Getpid(),
	}
	c.atoms.Init(nil)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewAtom creates an atom owned by c.
//
// The name is borrowed and must stay valid as long as the atom does.
func (c *Cosmos) NewAtom(name string) (*Atom, error) {
	a := &Atom{
		name:   name,
		id:     uuid.New(),
		cosmos: c,
	}
	a.born = c.clock()
	a.birth = a.born.UnixNano()
	a.records.Init(nil)
	a.link.Init(a)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, ErrCosmosDestroyed
	}
	c.atoms.InsertBefore(&a.link)
	return a, nil
}

// AddRecorder appends r to the recorder list. Order is precedence.
func (c *Cosmos) AddRecorder(r Recorder) error {
	if r == nil {
		return ErrNilRecorder
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return ErrCosmosDestroyed
	}
	next := make([]Recorder, len(c.recorders), len(c.recorders)+1)
	copy(next, c.recorders)
	c.recorders = append(next, r)
	return nil
}

// Recorders returns the registered recorders in order.
func (c *Cosmos) Recorders() []Recorder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.recorders)
}

// Atoms returns a snapshot of the live atoms in creation order.
func (c *Cosmos) Atoms() []*Atom {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Atom, 0, c.atoms.Count()-1)
	for a := range c.atoms.All() {
		out = append(out, a)
	}
	return out
}

// AtomCount returns the number of live atoms.
func (c *Cosmos) AtomCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.atoms.Count() - 1
}

// Allocator returns the allocator nucleons are carved from.
func (c *Cosmos) Allocator() Allocator { return c.alloc }

// FreeNucleon destroys a nucleon created with NewNucleon or NewNucleonf
// that was never linked into an atom.
func (c *Cosmos) FreeNucleon(n *Nucleon) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n.atom.Load() != nil {
		return ErrNucleonLinked
	}
	n.destroy(c.alloc)
	return nil
}

// Destroy destroys every atom, then tears the recorders down.
//
// Recorders implementing io.Closer are closed concurrently; the first
// error is returned. Destroy is idempotent.
func (c *Cosmos) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	for a := range c.atoms.All() {
		a.destroyLocked()
	}
	recs := c.recorders
	c.recorders = nil
	c.mu.Unlock()

	var g errgroup.Group
	for _, r := range recs {
		g.Go(func() error {
			if err := closeRecorder(r); err != nil {
				return fmt.Errorf("close recorder %T: %w", r, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Destroyed reports whether Destroy has run.
func (c *Cosmos) Destroyed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.destroyed
}

// =============================================================================
// Stats
// =============================================================================

// Stats are cumulative counters for a cosmos.
type Stats struct {
	// Dispatched counts nucleons created and pushed to recorders.
	Dispatched int64

	// ShortCircuited counts logging calls no recorder wanted.
	ShortCircuited int64

	// Swallowed counts errors absorbed by fire-and-forget methods.
	Swallowed int64
}

type counters struct {
	dispatched     atomic.Int64
	shortCircuited atomic.Int64
	swallowed      atomic.Int64
}

// Stats returns a snapshot of the counters.
func (c *Cosmos) Stats() Stats {
	return Stats{
		Dispatched:     c.stats.dispatched.Load(),
		ShortCircuited: c.stats.shortCircuited.Load(),
		Swallowed:      c.stats.swallowed.Load(),
	}
}

func (c *Cosmos) swallow(err error) {
	c.stats.swallowed.Add(1)
	if c.onError != nil {
		c.onError(err)
	}
}

// =============================================================================
// Allocation helpers
// =============================================================================

func (c *Cosmos) allocate(size int) ([]byte, error) {
	region, err := c.alloc.Alloc(size)
	if err != nil {
		if errors.Is(err, ErrOutOfMemory) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	return region, nil
}

func (c *Cosmos) header(level Level, site CallSite, region []byte, gt reflect.Type) *Nucleon {
	n := &Nucleon{
		Level: level,
		Coords: Coordinates{
			Timestamp: c.clock().UnixNano(),
			PID:       c.pid,
			TID:       c.threadID(),
		},
		Site:      site,
		region:    region,
		gluonType: gt,
	}
	n.link.Init(n)
	return n
}
