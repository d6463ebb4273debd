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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test doubles
// =============================================================================

// spy records what it sees and accepts levels >= min.
type spy struct {
	name   string
	min    Level
	asked  int
	got    []Level
	msgs   []string
	err    error
	closed bool
	log    *[]string // shared delivery log across spies
}

func (p *spy) ShouldRecord(l Level) bool {
	p.asked++
	return l >= p.min
}

func (p *spy) Record(a *Atom, n *Nucleon) error {
	p.got = append(p.got, n.Level)
	p.msgs = append(p.msgs, n.Message)
	if p.log != nil {
		*p.log = append(*p.log, p.name)
	}
	return p.err
}

func (p *spy) Close() error {
	p.closed = true
	return nil
}

// never wants anything.
type never struct{ asked int }

func (n *never) ShouldRecord(Level) bool      { n.asked++; return false }
func (n *never) Record(*Atom, *Nucleon) error { panic("never recorder received a nucleon") }

// fixedClock advances by step on each call.
type fixedClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func newTestCosmos(t *testing.T, opts ...Option) (*Cosmos, *TrackingAllocator) {
	t.Helper()
	alloc := NewTrackingAllocator(0)
	c := New(append([]Option{WithAllocator(alloc)}, opts...)...)
	t.Cleanup(func() { _ = c.Destroy() })
	return c, alloc
}

// =============================================================================
// Cosmos
// =============================================================================

func TestNew_Defaults(t *testing.T) {
	c := New()
	assert.Equal(t, 0, c.AtomCount())
	assert.Empty(t, c.Recorders())
	assert.IsType(t, HeapAllocator{}, c.Allocator())
	assert.False(t, c.Destroyed())
}

func TestNewAtom_BorrowsNameAndLinks(t *testing.T) {
	c, _ := newTestCosmos(t)
	a, err := c.NewAtom("request")
	require.NoError(t, err)
	b, err := c.NewAtom("task")
	require.NoError(t, err)

	assert.Equal(t, "request", a.Name())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Same(t, c, a.Cosmos())
	assert.Equal(t, 2, c.AtomCount())
	assert.Equal(t, []*Atom{a, b}, c.Atoms())
}

func TestAddRecorder_OrderAndNil(t *testing.T) {
	c, _ := newTestCosmos(t)
	r1, r2 := &spy{name: "r1"}, &spy{name: "r2"}
	require.NoError(t, c.AddRecorder(r1))
	require.NoError(t, c.AddRecorder(r2))
	assert.ErrorIs(t, c.AddRecorder(nil), ErrNilRecorder)

	recs := c.Recorders()
	require.Len(t, recs, 2)
	assert.Same(t, r1, recs[0])
	assert.Same(t, r2, recs[1])
}

func TestWithRecorders_SkipsNil(t *testing.T) {
	c := New(WithRecorders(NullRecorder{}, nil, NullRecorder{}))
	assert.Len(t, c.Recorders(), 2)
}

func TestDestroy_CascadesAndClosesRecorders(t *testing.T) {
	alloc := NewTrackingAllocator(0)
	r := &spy{name: "r"}
	c := New(WithAllocator(alloc), WithRecorders(r))

	for i := 0; i < 3; i++ {
		a, err := c.NewAtom("unit")
		require.NoError(t, err)
		a.Info("one")
		a.Infof("two %d", i)
	}
	require.Equal(t, int64(6), alloc.Live())

	require.NoError(t, c.Destroy())
	assert.Equal(t, int64(0), alloc.Live())
	assert.Equal(t, int64(0), alloc.Outstanding())
	assert.Equal(t, 0, c.AtomCount())
	assert.True(t, r.closed)
	assert.Empty(t, c.Recorders())

	// Idempotent, and the cosmos refuses new work.
	require.NoError(t, c.Destroy())
	_, err := c.NewAtom("late")
	assert.ErrorIs(t, err, ErrCosmosDestroyed)
	assert.ErrorIs(t, c.AddRecorder(NullRecorder{}), ErrCosmosDestroyed)
}

type failingCloser struct{ NullRecorder }

func (failingCloser) Close() error { return errors.New("disk gone") }

func TestDestroy_ReturnsCloseError(t *testing.T) {
	c := New(WithRecorders(failingCloser{}, NullRecorder{}))
	err := c.Destroy()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

// =============================================================================
// Dispatch
// =============================================================================

func TestDispatch_ShortCircuitNoRecorders(t *testing.T) {
	c, alloc := newTestCosmos(t)
	a, err := c.NewAtom("quiet")
	require.NoError(t, err)

	a.Error("nobody listens")
	a.Errorf("nobody listens %d", 1)

	assert.Equal(t, int64(0), alloc.Allocs())
	assert.Equal(t, 0, a.Count())
	assert.Equal(t, int64(2), c.Stats().ShortCircuited)

	require.NoError(t, c.AddRecorder(NullRecorder{}))
	a.Error("now somebody does")
	assert.Equal(t, int64(1), alloc.Allocs())
	assert.Equal(t, 1, a.Count())
	assert.Equal(t, int64(1), c.Stats().Dispatched)
}

func TestDispatch_ShortCircuitBelowThreshold(t *testing.T) {
	c, alloc := newTestCosmos(t, WithRecorders(&spy{min: LevelWarn}))
	a, _ := c.NewAtom("filtered")

	a.Trace("t")
	a.Debug("d")
	a.Info("i")
	a.Notice("n")
	assert.Equal(t, int64(0), alloc.Allocs())
	assert.Equal(t, 0, a.Count())

	a.Warn("w")
	assert.Equal(t, int64(1), alloc.Allocs())
	assert.Equal(t, 1, a.Count())
}

func TestDispatch_ShortCircuitDoesNotAllocate(t *testing.T) {
	c := New(WithRecorders(&never{}))
	a, err := c.NewAtom("hot")
	require.NoError(t, err)

	allocs := testing.AllocsPerRun(100, func() {
		a.Info("dropped")
	})
	assert.Zero(t, allocs)
}

func TestDispatch_StartsAtFirstInterested(t *testing.T) {
	var order []string
	early := &spy{name: "early", min: LevelError, log: &order}
	first := &spy{name: "first", min: LevelInfo, log: &order}
	picky := &spy{name: "picky", min: LevelError, log: &order}
	last := &spy{name: "last", min: LevelTrace, log: &order}
	c, _ := newTestCosmos(t, WithRecorders(early, first, picky, last))
	a, _ := c.NewAtom("chain")

	a.Info("hello")

	assert.Equal(t, []string{"first", "last"}, order)
	assert.Equal(t, 1, early.asked, "recorders before the first taker are asked once")
	assert.Equal(t, 2, first.asked, "the first taker is asked again by the push loop")
	assert.Equal(t, 1, picky.asked, "later recorders are re-checked and may decline")
	assert.Equal(t, 1, last.asked)
}

func TestDispatch_RecorderErrorSwallowed(t *testing.T) {
	var handled []error
	boom := errors.New("boom")
	next := &spy{name: "next"}
	c, _ := newTestCosmos(t,
		WithRecorders(&spy{err: boom}, next),
		WithErrorHandler(func(err error) { handled = append(handled, err) }),
	)
	a, _ := c.NewAtom("errs")

	a.Info("still delivered")

	assert.Equal(t, []string{"still delivered"}, next.msgs)
	require.Len(t, handled, 1)
	assert.ErrorIs(t, handled[0], boom)
	assert.Equal(t, int64(1), c.Stats().Swallowed)
}

func TestDispatch_OrderingAcrossLevels(t *testing.T) {
	r := &spy{}
	c, _ := newTestCosmos(t, WithRecorders(r))
	a, _ := c.NewAtom("ordered")

	a.Trace("trace msg")
	a.Debug("debug msg")
	a.Info("info msg")
	a.Notice("notice msg")
	a.Warn("warn msg")
	a.Error("error msg")

	want := []Level{LevelTrace, LevelDebug, LevelInfo, LevelNotice, LevelWarn, LevelError}
	var gotLevels []Level
	var gotMsgs []string
	for _, n := range a.Nucleons() {
		gotLevels = append(gotLevels, n.Level)
		gotMsgs = append(gotMsgs, n.Message)
	}
	assert.Equal(t, want, gotLevels)
	assert.Equal(t, []string{"trace msg", "debug msg", "info msg", "notice msg", "warn msg", "error msg"}, gotMsgs)
	assert.Equal(t, want, r.got, "recorder sees calls in order")
}

func TestDispatch_FormattedWrappers(t *testing.T) {
	r := &spy{}
	c, _ := newTestCosmos(t, WithRecorders(r))
	a, _ := c.NewAtom("fmt")

	a.Tracef("t%d", 1)
	a.Debugf("d%d", 2)
	a.Infof("i%d", 3)
	a.Noticef("n%d", 4)
	a.Warnf("w%d", 5)
	a.Errorf("e%d", 6)

	assert.Equal(t, []string{"t1", "d2", "i3", "n4", "w5", "e6"}, r.msgs)
	for _, n := range a.Nucleons() {
		assert.True(t, n.Formatted())
	}
}

func TestLog_SwallowsFailures(t *testing.T) {
	var handled []error
	alloc := NewTrackingAllocator(8)
	c := New(WithAllocator(alloc), WithRecorders(NullRecorder{}),
		WithErrorHandler(func(err error) { handled = append(handled, err) }))
	a, _ := c.NewAtom("full")
	short := []any{1}

	assert.NotPanics(t, func() {
		a.Infof("%d", 1)                         // 0 + 1 + 1 bytes: fits
		a.Infof("this message does not fit")     // over the 8 byte cap
		a.Infof("%d %d", short...)               // missing argument
		Log(a, LevelInfo, "not plain", "string") // rejected gluon type
	})

	assert.Equal(t, 1, a.Count())
	require.Len(t, handled, 3)
	assert.ErrorIs(t, handled[0], ErrOutOfMemory)
	assert.ErrorIs(t, handled[1], ErrFormat)
	assert.ErrorIs(t, handled[2], ErrGluonType)
	assert.Equal(t, int64(3), c.Stats().Swallowed)
}

func TestEmit_ReturnsOutcome(t *testing.T) {
	c, _ := newTestCosmos(t)
	a, _ := c.NewAtom("emit")

	n, err := Emit(a, LevelInfo, int32(7), "unheard")
	assert.NoError(t, err)
	assert.Nil(t, n, "no recorder: nil nucleon, nil error")

	require.NoError(t, c.AddRecorder(NullRecorder{}))
	n, err = Emit(a, LevelInfo, int32(7), "heard")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Same(t, a, n.Atom())
	assert.Equal(t, int32(7), MustGluon[int32](n))

	var noArgs []any
	_, err = Emitf(a, LevelInfo, empty{}, "%s", noArgs...)
	assert.ErrorIs(t, err, ErrFormat)
	assert.Equal(t, int64(0), c.Stats().Swallowed, "Emit does not count as swallowed")
}

func TestEmit_CallSite(t *testing.T) {
	c, _ := newTestCosmos(t, WithRecorders(NullRecorder{}))
	a, _ := c.NewAtom("site")

	n, err := Emit(a, LevelInfo, empty{}, "here")
	require.NoError(t, err)
	assert.Contains(t, n.Site.File, "cosmos_test.go")
	assert.Contains(t, n.Site.Function, "TestEmit_CallSite")
	assert.Positive(t, n.Site.Line)

	a.Info("wrapper")
	nucleons := a.Nucleons()
	last := nucleons[len(nucleons)-1]
	assert.Contains(t, last.Site.Function, "TestEmit_CallSite")
	assert.Equal(t, n.Site.Line+6, last.Site.Line)
}

func TestCoordinates_Captured(t *testing.T) {
	clock := &fixedClock{now: time.Unix(1_700_000_000, 0), step: time.Millisecond}
	c, _ := newTestCosmos(t,
		WithRecorders(NullRecorder{}),
		WithClock(clock.Now),
		WithThreadID(func() int { return 99 }),
	)
	a, _ := c.NewAtom("coords")
	n, err := Emit(a, LevelInfo, empty{}, "x")
	require.NoError(t, err)

	assert.Equal(t, int64(1_700_000_000_001_000_000), n.Coords.Timestamp)
	assert.Equal(t, c.pid, n.Coords.PID)
	assert.Equal(t, 99, n.Coords.TID)
	assert.Equal(t, int64(1_700_000_000_000_000_000), a.Birth())
}

// =============================================================================
// Atom lifecycle
// =============================================================================

func TestAtom_DecayOnce(t *testing.T) {
	clock := &fixedClock{now: time.Unix(0, 0), step: 250 * time.Millisecond}
	c, _ := newTestCosmos(t, WithClock(clock.Now))
	a, _ := c.NewAtom("timed")

	assert.Zero(t, a.Duration())
	assert.False(t, a.Decayed())
	a.Decay()
	assert.Equal(t, 250*time.Millisecond, a.Duration())
	assert.True(t, a.Decayed())

	assert.Panics(t, func() { a.Decay() })
	assert.ErrorIs(t, a.TryDecay(), ErrAlreadyDecayed)
	assert.Equal(t, 250*time.Millisecond, a.Duration(), "duration is set once")
}

func TestAtom_DecayWallClock(t *testing.T) {
	c, _ := newTestCosmos(t)
	start := time.Now()
	a, _ := c.NewAtom("real")
	time.Sleep(2 * time.Millisecond)
	a.Decay()
	elapsed := time.Since(start)

	assert.Positive(t, a.Duration())
	assert.LessOrEqual(t, a.Duration(), elapsed+time.Millisecond)
}

func TestAtom_DestroyFreesAllAndUnlinks(t *testing.T) {
	c, alloc := newTestCosmos(t, WithRecorders(NullRecorder{}))
	keep, _ := c.NewAtom("keep")
	gone, _ := c.NewAtom("gone")

	keep.Info("stays")
	for i := 0; i < 5; i++ {
		gone.Infof("record %d", i)
	}
	require.Equal(t, int64(6), alloc.Live())
	nucleons := gone.Nucleons()

	gone.Destroy()

	assert.Equal(t, int64(1), alloc.Live())
	assert.Equal(t, int64(5), alloc.Frees())
	assert.Equal(t, 1, c.AtomCount(), "destroyed atoms leave the cosmos")
	assert.Equal(t, []*Atom{keep}, c.Atoms())
	assert.True(t, gone.Destroyed())
	for i, n := range nucleons {
		assert.Nil(t, n.Atom())
		assert.Equal(t, fmt.Sprintf("record %d", i), n.Message, "header survives destroy")
	}

	gone.Destroy() // idempotent
	assert.Equal(t, int64(5), alloc.Frees())

	gone.Info("ignored")
	_, err := Emit(gone, LevelInfo, empty{}, "ignored")
	assert.ErrorIs(t, err, ErrAtomDestroyed)
	assert.Equal(t, int64(1), alloc.Live(), "rejected nucleon is freed")
}

func TestAtom_Release(t *testing.T) {
	c, alloc := newTestCosmos(t, WithRecorders(NullRecorder{}))
	a, _ := c.NewAtom("a")
	b, _ := c.NewAtom("b")

	n1, _ := Emit(a, LevelInfo, empty{}, "one")
	n2, _ := Emit(a, LevelInfo, empty{}, "two")
	n3, _ := Emit(a, LevelInfo, empty{}, "three")

	assert.ErrorIs(t, b.Release(n2), ErrForeignNucleon)
	require.NoError(t, a.Release(n2))

	assert.Equal(t, []*Nucleon{n1, n3}, a.Nucleons())
	assert.Equal(t, int64(2), alloc.Live())
	assert.ErrorIs(t, a.Release(n2), ErrForeignNucleon, "already released")
}

func TestAtom_SnapshotReadDuringRelease(t *testing.T) {
	c, alloc := newTestCosmos(t, WithRecorders(NullRecorder{}))
	a, _ := c.NewAtom("heartbeat")
	for i := 0; i < 200; i++ {
		a.Infof("beat %d", i)
	}
	snapshot := a.Nucleons()
	require.Len(t, snapshot, 200)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i, n := range snapshot {
			assert.Equal(t, fmt.Sprintf("beat %d", i), strings.Clone(n.Message))
			_ = n.Atom()
			_, _ = Gluon[struct{}](n)
		}
	}()
	go func() {
		defer wg.Done()
		for _, n := range snapshot {
			assert.NoError(t, a.Release(n))
		}
	}()
	wg.Wait()

	assert.Zero(t, a.Count())
	assert.Equal(t, int64(0), alloc.Live())
}

func TestAtom_ConcurrentLogging(t *testing.T) {
	c, alloc := newTestCosmos(t, WithRecorders(NullRecorder{}))
	a, _ := c.NewAtom("shared")

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				a.Infof("g%d i%d", g, i)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 800, a.Count())
	a.Destroy()
	assert.Equal(t, int64(0), alloc.Outstanding())
}
