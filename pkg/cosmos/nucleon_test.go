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
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reading struct {
	Sensor  uint16
	Celsius float64
	Valid   bool
	Samples [3]int32
}

func roundTrip[G comparable](t *testing.T, c *Cosmos, want G) {
	t.Helper()
	n, err := NewNucleon(c, LevelInfo, Caller(0), want, "payload")
	require.NoError(t, err)
	defer c.FreeNucleon(n)

	got, err := Gluon[G](n)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, reflect.TypeFor[G](), n.GluonType())
	assert.Equal(t, int(unsafe.Sizeof(want)), n.Size())
	assert.Equal(t, "payload", n.Message)
	assert.False(t, n.Formatted())
}

func TestGluon_RoundTrip(t *testing.T) {
	c, alloc := newTestCosmos(t)

	t.Run("unit", func(t *testing.T) { roundTrip(t, c, struct{}{}) })
	t.Run("int32", func(t *testing.T) { roundTrip(t, c, int32(-123456)) })
	t.Run("record", func(t *testing.T) {
		roundTrip(t, c, reading{Sensor: 7, Celsius: 21.5, Valid: true, Samples: [3]int32{1, 2, 3}})
	})
	t.Run("bool", func(t *testing.T) { roundTrip(t, c, true) })

	assert.Equal(t, int64(0), alloc.Outstanding())
	assert.Equal(t, int64(4), alloc.Allocs(), "one region per nucleon, even when empty")
}

func TestGluon_Mismatch(t *testing.T) {
	c, _ := newTestCosmos(t)
	n, err := NewNucleon(c, LevelInfo, CallSite{}, int32(5), "x")
	require.NoError(t, err)

	_, err = Gluon[int64](n)
	assert.ErrorIs(t, err, ErrGluonMismatch)
	_, err = Gluon[uint32](n)
	assert.ErrorIs(t, err, ErrGluonMismatch, "same width, different type")
	assert.Panics(t, func() { MustGluon[bool](n) })

	require.NoError(t, c.FreeNucleon(n))
	_, err = Gluon[int32](n)
	assert.ErrorIs(t, err, ErrGluonMismatch, "destroyed nucleons have no gluon")
}

func TestGluon_RejectsPointerTypes(t *testing.T) {
	c, alloc := newTestCosmos(t)

	type withString struct{ Name string }
	type withPointer struct{ Next *int }

	cases := map[string]func() error{
		"string":  func() error { _, err := NewNucleon(c, LevelInfo, CallSite{}, "s", "m"); return err },
		"slice":   func() error { _, err := NewNucleon(c, LevelInfo, CallSite{}, []int{1}, "m"); return err },
		"map":     func() error { _, err := NewNucleon(c, LevelInfo, CallSite{}, map[int]int{}, "m"); return err },
		"pointer": func() error { _, err := NewNucleon(c, LevelInfo, CallSite{}, withPointer{}, "m"); return err },
		"nested":  func() error { _, err := NewNucleon(c, LevelInfo, CallSite{}, [2]withString{}, "m"); return err },
		"error":   func() error { _, err := NewNucleon[error](c, LevelInfo, CallSite{}, nil, "m"); return err },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, fn(), ErrGluonType)
		})
	}
	assert.Equal(t, int64(0), alloc.Allocs(), "rejected before allocating")
}

func TestNewNucleonf_MessageExactness(t *testing.T) {
	c, _ := newTestCosmos(t)

	n, err := NewNucleonf(c, LevelDebug, CallSite{}, struct{}{}, "debug value: %.2f", 3.14159)
	require.NoError(t, err)
	assert.Equal(t, "debug value: 3.14", n.Message)
	assert.True(t, n.Formatted())
	require.NoError(t, c.FreeNucleon(n))

	n, err = NewNucleonf(c, LevelError, CallSite{}, struct{}{}, "error code: %d message: %s", 404, "not found")
	require.NoError(t, err)
	assert.Equal(t, "error code: 404 message: not found", n.Message)
	require.NoError(t, c.FreeNucleon(n))
}

func TestNewNucleonf_Layout(t *testing.T) {
	c, _ := newTestCosmos(t)

	tests := []struct {
		name      string
		gluonSize int
		make      func() (*Nucleon, error)
		msg       string
	}{
		{"empty gluon", 0, func() (*Nucleon, error) {
			return NewNucleonf(c, LevelInfo, CallSite{}, struct{}{}, "n=%d", 42)
		}, "n=42"},
		{"int32 gluon", 4, func() (*Nucleon, error) {
			return NewNucleonf(c, LevelInfo, CallSite{}, int32(9), "n=%d", 42)
		}, "n=42"},
		{"record gluon", int(unsafe.Sizeof(reading{})), func() (*Nucleon, error) {
			return NewNucleonf(c, LevelInfo, CallSite{}, reading{Sensor: 1}, "%s", "sensor")
		}, "sensor"},
		{"empty message", 4, func() (*Nucleon, error) {
			return NewNucleonf(c, LevelInfo, CallSite{}, int32(1), "%s", "")
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.make()
			require.NoError(t, err)
			defer c.FreeNucleon(n)

			msgOff := align16(tt.gluonSize)
			assert.Equal(t, msgOff+len(tt.msg)+1, n.Size())
			assert.Equal(t, tt.msg, n.Message)
			assert.Equal(t, byte(0), n.region[msgOff+len(tt.msg)], "NUL terminator")
			assert.Equal(t, tt.msg, string(n.region[msgOff:msgOff+len(tt.msg)]))
			if len(tt.msg) > 0 {
				assert.Equal(t, unsafe.Pointer(&n.region[msgOff]), unsafe.Pointer(unsafe.StringData(n.Message)),
					"message views the region without copying")
			}
		})
	}
}

func TestNewNucleonf_GluonSurvivesMessage(t *testing.T) {
	c, _ := newTestCosmos(t)
	want := reading{Sensor: 3, Celsius: -4.25, Valid: true, Samples: [3]int32{7, 8, 9}}
	n, err := NewNucleonf(c, LevelInfo, CallSite{}, want, "sensor %d reads %.1f", want.Sensor, want.Celsius)
	require.NoError(t, err)
	defer c.FreeNucleon(n)

	got, err := Gluon[reading](n)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "sensor 3 reads -4.2", n.Message)
}

func TestNewNucleonf_FormatErrors(t *testing.T) {
	c, alloc := newTestCosmos(t)
	const format = "value: %d"

	// Arguments go through a slice so the mismatches reach run time.
	wrongType := []any{"not a number"}
	_, err := NewNucleonf(c, LevelInfo, CallSite{}, struct{}{}, format, wrongType...)
	assert.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), "%!d(string=not a number)")

	var missing []any
	_, err = NewNucleonf(c, LevelInfo, CallSite{}, struct{}{}, format, missing...)
	assert.ErrorIs(t, err, ErrFormat)

	extra := []any{1, 2}
	_, err = NewNucleonf(c, LevelInfo, CallSite{}, struct{}{}, format, extra...)
	assert.ErrorIs(t, err, ErrFormat)

	assert.Equal(t, int64(0), alloc.Allocs())
}

// flipper renders with a different length on every call.
type flipper struct{ calls *int }

func (f flipper) String() string {
	*f.calls++
	if *f.calls%2 == 1 {
		return "short"
	}
	return "much longer text"
}

func TestNewNucleonf_UnstableArgument(t *testing.T) {
	c, alloc := newTestCosmos(t)
	calls := 0

	_, err := NewNucleonf(c, LevelInfo, CallSite{}, struct{}{}, "%v", flipper{calls: &calls})
	assert.ErrorIs(t, err, ErrFormat)
	assert.Equal(t, int64(0), alloc.Outstanding(), "region returned on failure")
	assert.Equal(t, int64(1), alloc.Frees())
}

func TestNewNucleon_OutOfMemory(t *testing.T) {
	c := New(WithAllocator(NewTrackingAllocator(4)))

	_, err := NewNucleon(c, LevelInfo, CallSite{}, int64(1), "too big")
	assert.ErrorIs(t, err, ErrOutOfMemory)

	n, err := NewNucleon(c, LevelInfo, CallSite{}, int32(1), "fits")
	require.NoError(t, err)
	require.NoError(t, c.FreeNucleon(n))
}

type brokenAllocator struct{}

func (brokenAllocator) Alloc(int) ([]byte, error) { return nil, errors.New("mmap failed") }
func (brokenAllocator) Free([]byte)               {}

func TestNewNucleon_AllocatorErrorWrapped(t *testing.T) {
	c := New(WithAllocator(brokenAllocator{}))
	_, err := NewNucleon(c, LevelInfo, CallSite{}, int32(1), "x")
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Contains(t, err.Error(), "mmap failed")
}

func TestFreeNucleon_RefusesLinked(t *testing.T) {
	c, alloc := newTestCosmos(t, WithRecorders(NullRecorder{}))
	a, _ := c.NewAtom("owner")
	n, err := Emit(a, LevelInfo, int32(1), "linked")
	require.NoError(t, err)

	assert.ErrorIs(t, c.FreeNucleon(n), ErrNucleonLinked)
	assert.Equal(t, int64(1), alloc.Live())
}

// =============================================================================
// Allocators
// =============================================================================

func TestHeapAllocator_Alignment(t *testing.T) {
	var h HeapAllocator
	for _, size := range []int{1, 7, 8, 15, 16, 33, 100} {
		region, err := h.Alloc(size)
		require.NoError(t, err)
		assert.Len(t, region, size)
		assert.Zero(t, uintptr(unsafe.Pointer(&region[0]))%8, "size %d", size)
	}
	region, err := h.Alloc(0)
	require.NoError(t, err)
	assert.Empty(t, region)

	_, err = h.Alloc(-1)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestTrackingAllocator_Accounting(t *testing.T) {
	a := NewTrackingAllocator(100)

	r1, err := a.Alloc(60)
	require.NoError(t, err)
	_, err = a.Alloc(50)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, int64(60), a.Outstanding(), "refused request is not accounted")
	assert.Equal(t, int64(1), a.Failures())

	r2, err := a.Alloc(40)
	require.NoError(t, err)
	assert.Equal(t, int64(100), a.Outstanding())
	assert.Equal(t, int64(2), a.Live())

	a.Free(r1)
	a.Free(r2)
	assert.Equal(t, int64(0), a.Outstanding())
	assert.Equal(t, int64(0), a.Live())
	assert.Equal(t, int64(2), a.Allocs())
	assert.Equal(t, int64(2), a.Frees())
}

func TestTrackingAllocator_ParentFailure(t *testing.T) {
	a := &TrackingAllocator{Parent: brokenAllocator{}}
	_, err := a.Alloc(8)
	require.Error(t, err)
	assert.Equal(t, int64(0), a.Outstanding())
	assert.Equal(t, int64(1), a.Failures())
}

func TestAlign16(t *testing.T) {
	for in, want := range map[int]int{0: 0, 1: 16, 15: 16, 16: 16, 17: 32, 40: 48} {
		assert.Equal(t, want, align16(in), "align16(%d)", in)
	}
}
