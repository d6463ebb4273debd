// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"cmp"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"github.com/AleutianAI/cosmos/pkg/logging"
	"github.com/AleutianAI/cosmos/pkg/recorders"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last event before it
// reloads.
const DefaultDebounce = 100 * time.Millisecond

// Levels maps recorder names to their live thresholds.
type Levels map[string]*recorders.Threshold

// Change is one threshold moved by Apply.
type Change struct {
	Recorder string
	From     cosmos.Level
	To       cosmos.Level
}

// Apply sets every threshold to the min_level cfg gives its recorder.
// Recorders absent from cfg are left alone. Changes are returned sorted by
// recorder name.
func (l Levels) Apply(cfg *Config) []Change {
	var changes []Change
	for _, rc := range cfg.Recorders {
		t, ok := l[rc.Name]
		if !ok {
			continue
		}
		if prev := t.SetLevel(rc.MinLevel); prev != rc.MinLevel {
			changes = append(changes, Change{Recorder: rc.Name, From: prev, To: rc.MinLevel})
		}
	}
	slices.SortFunc(changes, func(a, b Change) int {
		return cmp.Compare(a.Recorder, b.Recorder)
	})
	return changes
}

// Watch reloads path whenever it changes and applies the new recorder
// levels.
//
// Description:
//
//	The parent directory is watched rather than the file, so editors that
//	save by rename are seen. Events are debounced. A file that fails to
//	load or validate is logged and ignored; the previous levels stay.
//	Only thresholds are hot-reloaded. Adding or removing recorders needs a
//	restart.
//
// Inputs:
//
//	ctx - Cancelling ctx stops the watch.
//	path - The configuration file.
//	levels - Thresholds from Build.
//	logger - Receives reload and failure messages. May be nil.
//
// Outputs:
//
//	error - Non-nil only if the watch could not be started. Returns nil
//	        once ctx is done.
func Watch(ctx context.Context, path string, levels Levels, logger *logging.Logger) error {
	return watch(ctx, path, levels, logger, DefaultDebounce)
}

func watch(ctx context.Context, path string, levels Levels, logger *logging.Logger, debounce time.Duration) error {
	if logger == nil {
		logger = logging.Discard()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	logger.Debug("watching config", "path", abs)

	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timerC = time.After(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watch error", "path", abs, "error", err)

		case <-timerC:
			timerC = nil
			reload(abs, levels, logger)
		}
	}
}

func reload(path string, levels Levels, logger *logging.Logger) {
	cfg, err := Load(path)
	if err != nil {
		logger.Warn("config reload failed, keeping previous levels", "path", path, "error", err)
		return
	}
	changes := levels.Apply(cfg)
	for _, c := range changes {
		logger.Notice("recorder level changed", "recorder", c.Recorder, "from", c.From, "to", c.To)
	}
	if len(changes) == 0 {
		logger.Debug("config reloaded, no level changes", "path", path)
	}
}
