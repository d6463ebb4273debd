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
	"sync/atomic"
	"unsafe"
)

// =============================================================================
// Allocators
// =============================================================================

// Allocator provides the backing regions of nucleons.
//
// Every nucleon takes exactly one region, released exactly once when the
// nucleon is destroyed.
//
// # Implementation Requirements
//
//  1. Alloc must return a slice of exactly size bytes whose first byte is
//     aligned to at least 8 bytes. Size may be zero.
//  2. Alloc returns an error (ideally wrapping ErrOutOfMemory) when it
//     cannot satisfy the request.
//  3. Free receives the slice Alloc returned, unmodified in length.
//  4. Both methods must be safe for concurrent use.
type Allocator interface {
	Alloc(size int) ([]byte, error)
	Free(region []byte)
}

// HeapAllocator allocates regions from the Go heap.
//
// Regions are carved from []uint64 so their base is 8-byte aligned.
// Free is a no-op; the garbage collector reclaims the memory once the
// nucleon is unreachable.
type HeapAllocator struct{}

// Alloc returns a zeroed, 8-byte aligned region of size bytes.
func (HeapAllocator) Alloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrOutOfMemory, size)
	}
	if size == 0 {
		return []byte{}, nil
	}
	words := make([]uint64, (size+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size), nil
}

// Free is a no-op.
func (HeapAllocator) Free([]byte) {}

var _ Allocator = HeapAllocator{}

// TrackingAllocator wraps another allocator and accounts for every region
// it hands out.
//
// It serves two purposes:
//   - leak checks: Outstanding() returns to zero once every nucleon has
//     been destroyed;
//   - memory caps: with a non-zero Limit, requests that would push the
//     outstanding byte count past the limit fail with ErrOutOfMemory.
//
// TrackingAllocator is safe for concurrent use.
type TrackingAllocator struct {
	// Parent provides the memory. Nil means HeapAllocator.
	Parent Allocator

	// Limit caps outstanding bytes. Zero means unlimited.
	Limit int64

	outstanding atomic.Int64
	live        atomic.Int64
	allocs      atomic.Int64
	frees       atomic.Int64
	failures    atomic.Int64
}

// NewTrackingAllocator returns a heap-backed tracking allocator with the
// given byte limit (zero for unlimited).
func NewTrackingAllocator(limit int64) *TrackingAllocator {
	return &TrackingAllocator{Limit: limit}
}

// Alloc reserves size bytes against the limit and delegates to Parent.
func (a *TrackingAllocator) Alloc(size int) ([]byte, error) {
	if a.Limit > 0 {
		if a.outstanding.Add(int64(size)) > a.Limit {
			a.outstanding.Add(-int64(size))
			a.failures.Add(1)
			return nil, fmt.Errorf("%w: %d bytes requested, limit %d", ErrOutOfMemory, size, a.Limit)
		}
	} else {
		a.outstanding.Add(int64(size))
	}

	region, err := a.parent().Alloc(size)
	if err != nil {
		a.outstanding.Add(-int64(size))
		a.failures.Add(1)
		return nil, err
	}
	a.live.Add(1)
	a.allocs.Add(1)
	return region, nil
}

// Free returns region to Parent and releases its accounting.
func (a *TrackingAllocator) Free(region []byte) {
	a.outstanding.Add(-int64(len(region)))
	a.live.Add(-1)
	a.frees.Add(1)
	a.parent().Free(region)
}

// Outstanding returns the number of bytes allocated and not yet freed.
func (a *TrackingAllocator) Outstanding() int64 { return a.outstanding.Load() }

// Live returns the number of regions allocated and not yet freed.
func (a *TrackingAllocator) Live() int64 { return a.live.Load() }

// Allocs returns the total number of successful allocations.
func (a *TrackingAllocator) Allocs() int64 { return a.allocs.Load() }

// Frees returns the total number of frees.
func (a *TrackingAllocator) Frees() int64 { return a.frees.Load() }

// Failures returns the number of refused allocations.
func (a *TrackingAllocator) Failures() int64 { return a.failures.Load() }

func (a *TrackingAllocator) parent() Allocator {
	if a.Parent == nil {
		return HeapAllocator{}
	}
	return a.Parent
}

var _ Allocator = (*TrackingAllocator)(nil)

// align16 rounds n up to the next multiple of 16.
func align16(n int) int {
	return (n + 15) &^ 15
}
