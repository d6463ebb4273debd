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
	"runtime"
	"strconv"
)

// Coordinates locate a nucleon in time and execution context.
// They are captured once, when the nucleon is created.
type Coordinates struct {
	// Timestamp is Unix time in nanoseconds.
	Timestamp int64

	// PID is the process id.
	PID int

	// TID is the OS thread id, or zero where the platform has none.
	TID int
}

// CallSite is the source location that produced a nucleon.
type CallSite struct {
	File     string
	Line     int
	Function string
}

// String renders "file:line in function".
func (s CallSite) String() string {
	return s.File + ":" + strconv.Itoa(s.Line) + " in " + s.Function
}

// Caller returns the call site skip frames above its own caller.
// Caller(0) describes the function that called Caller.
func Caller(skip int) CallSite {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return CallSite{File: "???", Function: "???"}
	}
	site := CallSite{File: file, Line: line, Function: "???"}
	if fn := runtime.FuncForPC(pc); fn != nil {
		site.Function = fn.Name()
	}
	return site
}
