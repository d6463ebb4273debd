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
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"github.com/AleutianAI/cosmos/pkg/logging"
)

// Slog forwards nucleons to a slog.Handler, so a cosmos can feed whatever
// structured logging pipeline the host program already has.
//
// Each record carries the attributes atom, atom_id, pid, tid and a source
// group (file, line, function). Levels map as in logging.SlogLevel.
type Slog struct {
	leveled
	handler slog.Handler
}

// NewSlog returns a recorder writing to h.
func NewSlog(h slog.Handler, min cosmos.Level) *Slog {
	return &Slog{leveled: newLeveled(min), handler: h}
}

// Record converts n into a slog.Record.
func (s *Slog) Record(a *cosmos.Atom, n *cosmos.Nucleon) error {
	ctx := context.Background()
	level := logging.SlogLevel(n.Level)
	if !s.handler.Enabled(ctx, level) {
		return nil
	}

	r := slog.NewRecord(time.Unix(0, n.Coords.Timestamp), level, strings.Clone(n.Message), 0)
	r.AddAttrs(
		slog.String("atom", a.Name()),
		slog.String("atom_id", a.ID().String()),
		slog.Int("pid", n.Coords.PID),
		slog.Int("tid", n.Coords.TID),
		slog.Group(slog.SourceKey,
			slog.String("file", n.Site.File),
			slog.Int("line", n.Site.Line),
			slog.String("function", n.Site.Function),
		),
	)
	return s.handler.Handle(ctx, r)
}

var (
	_ cosmos.Recorder = (*Slog)(nil)
	_ Leveled         = (*Slog)(nil)
)
