// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recorders provides the concrete cosmos.Recorder implementations.
//
//	Writer      lines on an io.Writer, coloured on terminals
//	File        lines in a daily file
//	Buffer      recent lines in memory
//	Slog        records on a slog.Handler
//	Sampled     token-bucket sampling around another recorder
//	Prometheus  counters and histograms
//	OTel        OpenTelemetry metrics
//	Spans       OpenTelemetry spans, one per atom
//	Badger      durable records in BadgerDB
//	Influx      points in InfluxDB
//
// Every recorder except Sampled filters through its own Threshold, which
// can be changed while the recorder is in use.
//
// Line rendering is shared by Writer, File, Buffer and the dump command:
//
//	[pid:tid] <iso timestamp> <level char>: <atom age s.mmm> [<atom>] <message> (<file>:<line> in <function>)
package recorders
