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
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// =============================================================================
// Slog
// =============================================================================

func TestSlog_Attributes(t *testing.T) {
	var out bytes.Buffer
	h := slog.NewJSONHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug})
	c, _ := newCosmos(t, 0, NewSlog(h, cosmos.LevelTrace))
	a := newAtom(t, c, "request")

	a.Trace("below the handler level")
	a.Noticef("user %s logged in", "ada")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1, "the handler's own level still applies")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "user ada logged in", entry["msg"])
	assert.Equal(t, "INFO+2", entry["level"])
	assert.Equal(t, "request", entry["atom"])
	assert.Equal(t, a.ID().String(), entry["atom_id"])
	assert.EqualValues(t, 7, entry["tid"])

	source, ok := entry["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, source["file"], "sinks_test.go")
	assert.Contains(t, source["function"], "TestSlog_Attributes")
}

// =============================================================================
// Sampled
// =============================================================================

func TestSampled_BurstThenDrop(t *testing.T) {
	buf := NewBuffer(0, cosmos.LevelTrace)
	s := NewSampled(buf, 0.001, 2, cosmos.LevelWarn)
	c, _ := newCosmos(t, 0, s)
	a := newAtom(t, c, "chatty")

	for i := 0; i < 5; i++ {
		a.Infof("tick %d", i)
	}
	a.Warn("always")
	a.Error("always too")

	assert.Equal(t, []string{"tick 0", "tick 1", "always", "always too"}, buf.Messages())
	assert.Equal(t, int64(4), s.Passed())
	assert.Equal(t, int64(3), s.Dropped())
}

func TestSampled_DefersLevelsAndClose(t *testing.T) {
	f, err := NewFile(t.TempDir(), "svc", cosmos.LevelWarn)
	require.NoError(t, err)
	s := NewSampled(f, 10, 10, cosmos.LevelError)

	assert.False(t, s.ShouldRecord(cosmos.LevelInfo))
	assert.True(t, s.ShouldRecord(cosmos.LevelWarn))
	assert.Same(t, f.Threshold(), s.Threshold())
	assert.Same(t, cosmos.Recorder(f), s.Unwrap())

	require.NoError(t, s.Close())
	assert.True(t, f.closed)

	assert.Nil(t, NewSampled(cosmos.NullRecorder{}, 1, 1, cosmos.LevelError).Threshold())
}

// =============================================================================
// Prometheus
// =============================================================================

func TestPrometheus_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg, "test", cosmos.LevelDebug)
	require.NoError(t, err)
	c, _ := newCosmos(t, 250*time.Millisecond, p)
	a := newAtom(t, c, "http request")

	a.Trace("filtered")
	a.Info("one")
	a.Info("two")
	a.Error("boom")

	assert.InDelta(t, 2, testutil.ToFloat64(p.nucleons.WithLabelValues("info", "http_request")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(p.nucleons.WithLabelValues("error", "http_request")), 1e-9)
	assert.Equal(t, 2, testutil.CollectAndCount(p.nucleons))
	assert.Equal(t, 2, testutil.CollectAndCount(p.bytes))

	count, err := testutil.GatherAndCount(reg, "test_atom_age_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per level")
}

func TestPrometheus_DefaultNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg, "", cosmos.LevelInfo)
	require.NoError(t, err)
	c, _ := newCosmos(t, 0, p)
	newAtom(t, c, "x").Info("m")

	count, err := testutil.GatherAndCount(reg, DefaultPrometheusNamespace+"_nucleons_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrometheus_NamespaceTaken(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg, "shared", cosmos.LevelInfo)
	require.NoError(t, err)

	var p *Prometheus
	require.NotPanics(t, func() {
		p, err = NewPrometheus(reg, "shared", cosmos.LevelInfo)
	})
	require.Error(t, err)
	assert.Nil(t, p)
	var are prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &are)

	// Only the clashing namespace is refused.
	_, err = NewPrometheus(reg, "other", cosmos.LevelInfo)
	assert.NoError(t, err)
}

// Metrics registered on a clash are rolled back.
func TestPrometheus_PartialClashUnregisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "half", Name: "atom_age_seconds", Help: "taken",
	})))

	_, err := NewPrometheus(reg, "half", cosmos.LevelInfo)
	require.Error(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	assert.Equal(t, "half_atom_age_seconds", mfs[0].GetName())
}

// =============================================================================
// OTel metrics
// =============================================================================

func TestOTel_Counter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	rec, err := NewOTel(provider.Meter("test"), cosmos.LevelInfo)
	require.NoError(t, err)
	c, _ := newCosmos(t, 0, rec)
	a := newAtom(t, c, "job")

	a.Debug("filtered")
	a.Info("a")
	a.Info("bb")
	a.Warn("ccc")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	var sizeCount uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				require.Equal(t, "cosmos.nucleons", m.Name)
				for _, dp := range data.DataPoints {
					level, _ := dp.Attributes.Value(attribute.Key("level"))
					atom, _ := dp.Attributes.Value(attribute.Key("atom"))
					assert.Equal(t, "job", atom.AsString())
					counts[level.AsString()] += dp.Value
				}
			case metricdata.Histogram[int64]:
				require.Equal(t, "cosmos.message.size", m.Name)
				for _, dp := range data.DataPoints {
					sizeCount += dp.Count
				}
			}
		}
	}
	assert.Equal(t, map[string]int64{"info": 2, "warn": 1}, counts)
	assert.Equal(t, uint64(3), sizeCount)
}

// =============================================================================
// Spans
// =============================================================================

func TestSpans_AtomBecomesSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	spans := NewSpans(tp.Tracer("test"), cosmos.LevelInfo)
	c, _ := newCosmos(t, time.Second, spans)
	a := newAtom(t, c, "checkout")

	a.Info("cart loaded")
	a.Errorf("payment declined: %s", "insufficient funds")
	assert.Equal(t, 1, spans.Open())

	a.Decay()
	spans.EndAtom(a)
	assert.Equal(t, 0, spans.Open())

	ended := sr.Ended()
	require.Len(t, ended, 1)
	span := ended[0]
	assert.Equal(t, "checkout", span.Name())
	assert.True(t, epoch.Equal(span.StartTime()), span.StartTime())
	assert.True(t, epoch.Add(3*time.Second).Equal(span.EndTime()), "ends at birth plus duration, got %v", span.EndTime())
	assert.Equal(t, codes.Error, span.Status().Code)

	events := span.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "cart loaded", events[0].Name)
	assert.Equal(t, "payment declined: insufficient funds", events[1].Name)
	assert.True(t, epoch.Add(time.Second).Equal(events[0].Time))
}

func TestSpans_CloseEndsOpenSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	spans := NewSpans(tp.Tracer("test"), cosmos.LevelTrace)
	c, _ := newCosmos(t, 0, spans)
	newAtom(t, c, "one").Info("x")
	newAtom(t, c, "two").Info("y")
	spans.EndAtom(newAtom(t, c, "silent"))

	require.NoError(t, c.Destroy())
	assert.Len(t, sr.Ended(), 2)
	assert.Equal(t, 0, spans.Open())
}

// =============================================================================
// Message lifetime
// =============================================================================

// scribbleAllocator overwrites every region it frees, as an allocator that
// recycles regions would.
type scribbleAllocator struct{ cosmos.HeapAllocator }

func (scribbleAllocator) Free(region []byte) {
	for i := range region {
		region[i] = 'x'
	}
}

// keepHandler retains every record it handles.
type keepHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *keepHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *keepHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *keepHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *keepHandler) WithGroup(string) slog.Handler      { return h }

func TestSlog_MessageOutlivesNucleon(t *testing.T) {
	h := &keepHandler{}
	c := cosmos.New(cosmos.WithAllocator(scribbleAllocator{}), cosmos.WithRecorders(NewSlog(h, cosmos.LevelTrace)))
	defer c.Destroy()
	a := newAtom(t, c, "session")

	n, err := cosmos.Emitf(a, cosmos.LevelInfo, struct{}{}, "user %s logged in", "ada")
	require.NoError(t, err)
	require.NoError(t, a.Release(n))

	require.Len(t, h.records, 1)
	assert.Equal(t, "user ada logged in", h.records[0].Message)
}

func TestSpans_MessageOutlivesNucleon(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	spans := NewSpans(tp.Tracer("test"), cosmos.LevelInfo)
	c := cosmos.New(cosmos.WithAllocator(scribbleAllocator{}), cosmos.WithRecorders(spans))
	defer c.Destroy()
	a := newAtom(t, c, "checkout")

	n, err := cosmos.Emitf(a, cosmos.LevelError, struct{}{}, "declined: %s", "funds")
	require.NoError(t, err)
	require.NoError(t, a.Release(n))
	spans.EndAtom(a)

	ended := sr.Ended()
	require.Len(t, ended, 1)
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "declined: funds", ended[0].Events()[0].Name)
	assert.Equal(t, "declined: funds", ended[0].Status().Description)
}

// =============================================================================
// Spans of destroyed atoms
// =============================================================================

func TestSpans_SweepsDestroyedAtoms(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	spans := NewSpans(tp.Tracer("test"), cosmos.LevelInfo)
	c, _ := newCosmos(t, 0, spans)

	for i := 0; i < minSweep; i++ {
		a := newAtom(t, c, "short")
		a.Info("done")
		a.Destroy()
	}
	assert.Equal(t, minSweep, spans.Open(), "nothing swept below the watermark")
	assert.Empty(t, sr.Ended())

	live := newAtom(t, c, "live")
	live.Info("starts a span and sweeps")
	assert.Equal(t, 1, spans.Open())
	assert.Len(t, sr.Ended(), minSweep)

	// The next sweep runs when the map is back at the watermark; the live
	// atom keeps its span through it.
	for i := 0; i < minSweep; i++ {
		a := newAtom(t, c, "short")
		a.Info("done")
		a.Destroy()
	}
	assert.Equal(t, 2, spans.Open(), "live atom plus the atom created after the sweep")
	assert.Len(t, sr.Ended(), 2*minSweep-1)
	for _, s := range sr.Ended() {
		assert.Equal(t, "short", s.Name())
	}
}
