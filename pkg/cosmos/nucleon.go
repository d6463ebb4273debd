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
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/AleutianAI/cosmos/pkg/dlist"
)

// =============================================================================
// Nucleon
// =============================================================================

// Nucleon is one recorded event.
//
// The header fields are set at creation and must be treated as read-only.
// The payload (gluon) and, for formatted messages, the message bytes live in
// a single region obtained from the cosmos allocator:
//
//	literal:    [ gluon (sizeof G) ]
//	formatted:  [ gluon | pad to 16 ][ message bytes ][ NUL ]
//
// For formatted nucleons Message views the region directly; it is only
// valid until the nucleon is destroyed.
//
// Destroying a nucleon never rewrites its header, so a snapshot taken with
// Atom.Nucleons can be read while another goroutine releases the same
// nucleons.
type Nucleon struct {
	// Level is the severity.
	Level Level

	// Message is the literal or rendered message.
	Message string

	// Coords are the timestamp, pid and tid at creation.
	Coords Coordinates

	// Site is the source location of the logging call.
	Site CallSite

	link      dlist.Link[Nucleon]
	atom      atomic.Pointer[Atom]
	region    []byte
	gluonType reflect.Type
	formatted bool
	freed     atomic.Bool
}

// Atom returns the atom the nucleon is linked into, or nil.
func (n *Nucleon) Atom() *Atom { return n.atom.Load() }

// Size returns the byte size of the backing region.
func (n *Nucleon) Size() int { return len(n.region) }

// Formatted reports whether Message was rendered into the region.
func (n *Nucleon) Formatted() bool { return n.formatted }

// GluonType returns the static type the payload was stored with.
func (n *Nucleon) GluonType() reflect.Type { return n.gluonType }

// Gluon reads the payload back as G.
//
// G must be exactly the type the nucleon was created with; any other type
// returns ErrGluonMismatch.
func Gluon[G any](n *Nucleon) (G, error) {
	var zero G
	if n.freed.Load() {
		return zero, fmt.Errorf("%w: nucleon already destroyed", ErrGluonMismatch)
	}
	want := reflect.TypeFor[G]()
	if want != n.gluonType {
		return zero, fmt.Errorf("%w: stored %v, read as %v", ErrGluonMismatch, n.gluonType, want)
	}
	if want.Size() == 0 {
		return zero, nil
	}
	return *(*G)(unsafe.Pointer(unsafe.SliceData(n.region))), nil
}

// MustGluon is Gluon for callers that know the stored type; it panics on a
// mismatch.
func MustGluon[G any](n *Nucleon) G {
	g, err := Gluon[G](n)
	if err != nil {
		panic(err)
	}
	return g
}

// NewNucleon creates an unlinked nucleon carrying a literal message.
//
// The region holds only the gluon; msg is referenced, not copied.
// Errors wrap ErrGluonType or ErrOutOfMemory.
func NewNucleon[G any](c *Cosmos, level Level, site CallSite, gluon G, msg string) (*Nucleon, error) {
	gt, size, err := gluonLayout[G]()
	if err != nil {
		return nil, err
	}
	region, err := c.allocate(size)
	if err != nil {
		return nil, err
	}
	storeGluon(region, gluon)

	n := c.header(level, site, region, gt)
	n.Message = msg
	return n, nil
}

// NewNucleonf creates an unlinked nucleon whose message is rendered from
// format and args with fmt semantics.
//
// The message length is measured by a dry run, the region is allocated once
// with room for the gluon, the message and a NUL terminator, and the message
// is rendered straight into its tail. Errors wrap ErrGluonType,
// ErrOutOfMemory or ErrFormat.
func NewNucleonf[G any](c *Cosmos, level Level, site CallSite, gluon G, format string, args ...any) (*Nucleon, error) {
	gt, size, err := gluonLayout[G]()
	if err != nil {
		return nil, err
	}

	var dry countingWriter
	_, _ = fmt.Fprintf(&dry, format, args...)
	if dry.bad != "" {
		return nil, fmt.Errorf("%w: %s", ErrFormat, dry.bad)
	}

	msgOff := align16(size)
	region, err := c.allocate(msgOff + dry.n + 1)
	if err != nil {
		return nil, err
	}

	w := fixedWriter{buf: region[msgOff : msgOff+dry.n]}
	if _, err := fmt.Fprintf(&w, format, args...); err != nil || w.n != dry.n {
		c.alloc.Free(region)
		return nil, fmt.Errorf("%w: rendered length changed between passes", ErrFormat)
	}
	region[msgOff+dry.n] = 0
	storeGluon(region, gluon)

	n := c.header(level, site, region, gt)
	n.formatted = true
	if dry.n > 0 {
		n.Message = unsafe.String(&region[msgOff], dry.n)
	}
	return n, nil
}

// storeGluon copies gluon into the start of region.
func storeGluon[G any](region []byte, gluon G) {
	if unsafe.Sizeof(gluon) == 0 {
		return
	}
	*(*G)(unsafe.Pointer(unsafe.SliceData(region))) = gluon
}

// destroy releases the region. The nucleon must already be unlinked.
// Only the freed flag changes; the header stays as it was.
func (n *Nucleon) destroy(alloc Allocator) {
	if !n.freed.CompareAndSwap(false, true) {
		return
	}
	alloc.Free(n.region)
}

// =============================================================================
// Gluon layout
// =============================================================================

// plainTypes caches the plain-data verdict per payload type.
var plainTypes sync.Map // map[reflect.Type]bool

// gluonLayout returns the type tag and byte size of G, rejecting types that
// hold pointers.
func gluonLayout[G any]() (reflect.Type, int, error) {
	t := reflect.TypeFor[G]()
	if !isPlain(t) {
		return nil, 0, fmt.Errorf("%w: %v", ErrGluonType, t)
	}
	return t, int(t.Size()), nil
}

func isPlain(t reflect.Type) bool {
	if v, ok := plainTypes.Load(t); ok {
		return v.(bool)
	}
	plain := computePlain(t)
	plainTypes.Store(t, plain)
	return plain
}

func computePlain(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return t.Len() == 0 || computePlain(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !computePlain(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// =============================================================================
// Writers
// =============================================================================

// countingWriter measures rendered output and notes fmt error markers.
type countingWriter struct {
	n   int
	bad string
}

var fmtErrorMarker = []byte("%!")

func (w *countingWriter) Write(p []byte) (int, error) {
	if w.bad == "" {
		if i := bytes.Index(p, fmtErrorMarker); i >= 0 {
			end := i + bytes.IndexByte(p[i:], ')') + 1
			if end <= i {
				end = len(p)
			}
			w.bad = string(p[i:end])
		}
	}
	w.n += len(p)
	return len(p), nil
}

// errRegionFull reports a render that outgrew its reserved bytes.
var errRegionFull = errors.New("region full")

// fixedWriter writes into a preallocated slice and refuses to grow.
type fixedWriter struct {
	buf []byte
	n   int
}

func (w *fixedWriter) Write(p []byte) (int, error) {
	if len(p) > len(w.buf)-w.n {
		c := copy(w.buf[w.n:], p)
		w.n += c
		return c, errRegionFull
	}
	copy(w.buf[w.n:], p)
	w.n += len(p)
	return len(p), nil
}

var (
	_ io.Writer = (*countingWriter)(nil)
	_ io.Writer = (*fixedWriter)(nil)
)
