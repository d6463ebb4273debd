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

import "errors"

var (
	// ErrOutOfMemory indicates the allocator could not provide a region.
	ErrOutOfMemory = errors.New("cosmos: out of memory")

	// ErrFormat indicates a formatted message could not be rendered:
	// bad verb, missing or extra argument, or an unstable argument whose
	// rendering changed between the sizing and writing passes.
	ErrFormat = errors.New("cosmos: format error")

	// ErrGluonType indicates a payload type that cannot be stored by byte
	// copy (it contains pointers, strings, slices, maps, channels,
	// functions or interfaces).
	ErrGluonType = errors.New("cosmos: gluon type is not plain data")

	// ErrGluonMismatch indicates a payload read with a type other than the
	// one it was stored with.
	ErrGluonMismatch = errors.New("cosmos: gluon type mismatch")

	// ErrAlreadyDecayed indicates a second Decay on the same atom.
	ErrAlreadyDecayed = errors.New("cosmos: atom already decayed")

	// ErrAtomDestroyed indicates use of an atom after Destroy.
	ErrAtomDestroyed = errors.New("cosmos: atom destroyed")

	// ErrCosmosDestroyed indicates use of a cosmos after Destroy.
	ErrCosmosDestroyed = errors.New("cosmos: cosmos destroyed")

	// ErrNilRecorder indicates AddRecorder was given nil.
	ErrNilRecorder = errors.New("cosmos: nil recorder")

	// ErrNucleonLinked indicates an attempt to free a nucleon that is
	// still linked into an atom; release it through the atom instead.
	ErrNucleonLinked = errors.New("cosmos: nucleon still linked")

	// ErrForeignNucleon indicates a nucleon handed to an atom that does
	// not own it.
	ErrForeignNucleon = errors.New("cosmos: nucleon not owned by atom")
)
