// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides the diagnostic logger of the cosmos tooling.
//
// This is not the cosmos engine itself: it is where the CLI, the debug
// server, the config watcher and BadgerDB report what they are doing, and
// where errors swallowed by a cosmos end up.
//
// # Architecture
//
// The logger is built on log/slog with a fan-out handler:
//
//	┌──────────────────────────────────────────────┐
//	│                    Logger                    │
//	│  ┌──────────────────┐  ┌──────────────────┐  │
//	│  │ stderr (text or  │  │ daily JSON file  │  │
//	│  │ JSON, default)   │  │ (optional)       │  │
//	│  └──────────────────┘  └──────────────────┘  │
//	└──────────────────────────────────────────────┘
//
// # Basic Usage
//
//	logger := logging.New(logging.Config{
//	    Level:   cosmos.LevelInfo,
//	    LogDir:  "~/.cosmos/logs",  // Supports ~ expansion
//	    Service: "cosmos",
//	})
//	defer logger.Close()
//
//	c := cosmos.New(cosmos.WithErrorHandler(logger.ErrorHandler("cosmos")))
//
// # Log Levels
//
// The logger speaks cosmos levels. They map onto slog levels so that slog
// handlers order them correctly:
//
//	Trace  → slog.LevelDebug-4
//	Debug  → slog.LevelDebug
//	Info   → slog.LevelInfo
//	Notice → slog.LevelInfo+2
//	Warn   → slog.LevelWarn
//	Error  → slog.LevelError
//
// # Thread Safety
//
// Logger is safe for concurrent use.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
)

// =============================================================================
// Level Mapping
// =============================================================================

const (
	// SlogLevelTrace is the slog level cosmos Trace maps to.
	SlogLevelTrace = slog.LevelDebug - 4

	// SlogLevelNotice is the slog level cosmos Notice maps to.
	SlogLevelNotice = slog.LevelInfo + 2
)

// SlogLevel maps a cosmos level onto slog. Unknown levels map to Info.
func SlogLevel(l cosmos.Level) slog.Level {
	switch l {
	case cosmos.LevelTrace:
		return SlogLevelTrace
	case cosmos.LevelDebug:
		return slog.LevelDebug
	case cosmos.LevelInfo:
		return slog.LevelInfo
	case cosmos.LevelNotice:
		return SlogLevelNotice
	case cosmos.LevelWarn:
		return slog.LevelWarn
	case cosmos.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// replaceLevel prints TRACE and NOTICE instead of "DEBUG-4" and "INFO+2".
func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	switch a.Value.Any() {
	case SlogLevelTrace:
		a.Value = slog.StringValue("TRACE")
	case SlogLevelNotice:
		a.Value = slog.StringValue("NOTICE")
	}
	return a
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures logger behavior.
//
// The zero value is valid: Trace level, text on stderr, no file.
type Config struct {
	// Level sets the minimum level.
	Level cosmos.Level

	// LogDir enables file logging to the specified directory.
	//
	// The file is named "{Service}_{YYYY-MM-DD}.log" and is always JSON.
	// The directory is created with 0750 permissions. Supports ~.
	//
	// Default: "" (file logging disabled)
	LogDir string

	// Service is attached to every entry as the "service" attribute.
	Service string

	// JSON switches stderr output from text to JSON.
	JSON bool

	// Quiet disables stderr output.
	Quiet bool

	// Output replaces stderr. Tests use it to capture output.
	Output io.Writer
}

// =============================================================================
// Logger
// =============================================================================

// Logger is a leveled structured logger writing to stderr and, optionally,
// a daily log file.
type Logger struct {
	slog   *slog.Logger
	config Config

	// sink is shared with child loggers created by With.
	sink *fileSink
}

// fileSink owns the optional log file.
type fileSink struct {
	mu   sync.Mutex
	file *os.File
}

// New creates a Logger.
//
// A log directory that cannot be created or opened is reported once on
// the remaining handlers and otherwise ignored: logging must never stop a
// program from starting.
//
// The returned Logger must be closed with Close() when LogDir is set.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{
		Level:       SlogLevel(config.Level),
		ReplaceAttr: replaceLevel,
	}
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(out, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(out, opts))
		}
	}

	logger := &Logger{config: config, sink: &fileSink{}}

	var fileErr error
	if config.LogDir != "" {
		logger.sink.file, fileErr = openDailyFile(config.LogDir, config.Service, time.Now())
		if logger.sink.file != nil {
			handlers = append(handlers, slog.NewJSONHandler(logger.sink.file, opts))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(out, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}
	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}
	logger.slog = slog.New(handler)

	if fileErr != nil {
		logger.Warn("file logging disabled", "dir", config.LogDir, "error", fileErr.Error())
	}
	return logger
}

// Default returns an Info-level stderr logger for the "cosmos" service.
func Default() *Logger {
	return New(Config{Level: cosmos.LevelInfo, Service: "cosmos"})
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(Config{Level: cosmos.LevelError, Output: io.Discard})
}

// DailyFileName returns "{service}_{YYYY-MM-DD}.log" for day.
// An empty service becomes "cosmos".
func DailyFileName(service string, day time.Time) string {
	if service == "" {
		service = "cosmos"
	}
	return fmt.Sprintf("%s_%s.log", service, day.Format("2006-01-02"))
}

func openDailyFile(dir, service string, day time.Time) (*os.File, error) {
	dir = ExpandPath(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(dir, DailyFileName(service, day))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

// Trace logs at cosmos Trace level.
func (l *Logger) Trace(msg string, args ...any) { l.log(cosmos.LevelTrace, msg, args...) }

// Debug logs at Debug level.
func (l *Logger) Debug(msg string, args ...any) { l.log(cosmos.LevelDebug, msg, args...) }

// Info logs at Info level.
//
// Example:
//
//	logger.Info("recorder built", "name", rc.Name, "kind", rc.Kind)
func (l *Logger) Info(msg string, args ...any) { l.log(cosmos.LevelInfo, msg, args...) }

// Notice logs at cosmos Notice level.
func (l *Logger) Notice(msg string, args ...any) { l.log(cosmos.LevelNotice, msg, args...) }

// Warn logs at Warn level.
func (l *Logger) Warn(msg string, args ...any) { l.log(cosmos.LevelWarn, msg, args...) }

// Error logs at Error level.
func (l *Logger) Error(msg string, args ...any) { l.log(cosmos.LevelError, msg, args...) }

// With returns a child logger carrying extra attributes. The child shares
// the parent's file; closing either closes it.
//
// Example:
//
//	watchLog := logger.With("component", "config-watch", "path", path)
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:   l.slog.With(args...),
		config: l.config,
		sink:   l.sink,
	}
}

// Slog returns the underlying slog.Logger, for libraries that take one
// (BadgerDB's adapter, the debug server).
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// ErrorHandler adapts the logger to cosmos.WithErrorHandler. Every error a
// cosmos swallows is logged at Warn with the given component name.
func (l *Logger) ErrorHandler(component string) func(error) {
	child := l.With("component", component)
	return func(err error) {
		child.Warn("logging call failed", "error", err.Error())
	}
}

// Close syncs and closes the log file, if any. Safe to call more than once.
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.file == nil {
		return nil
	}
	file := l.sink.file
	l.sink.file = nil

	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

func (l *Logger) log(level cosmos.Level, msg string, args ...any) {
	l.slog.Log(context.Background(), SlogLevel(level), msg, args...)
}

// =============================================================================
// Multi-Handler (Internal)
// =============================================================================

// multiHandler fans out log records to multiple slog handlers.
type multiHandler struct {
	handlers []slog.Handler
}

// Enabled returns true if any handler is enabled for the level.
func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle sends the record to all enabled handlers, stopping at the first
// error.
func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

var _ slog.Handler = (*multiHandler)(nil)

// =============================================================================
// Helper Functions
// =============================================================================

// ExpandPath expands a leading ~ to the user's home directory.
//
// Examples:
//   - "~/.cosmos/logs" -> "/home/user/.cosmos/logs"
//   - "/var/log" -> "/var/log" (unchanged)
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
