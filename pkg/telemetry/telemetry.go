// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

var (
	// ErrNilContext is returned by Init when ctx is nil.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnknownExporter is returned for an exporter name Init does not know.
	ErrUnknownExporter = errors.New("unknown exporter")
)

// Exporter names accepted in Config.
const (
	ExporterNone       = "none"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterPrometheus = "prometheus"
)

// Config controls telemetry behavior.
//
// All fields have sensible defaults via DefaultConfig().
type Config struct {
	// ServiceName identifies this service in traces and metrics.
	ServiceName string `yaml:"service_name"`

	// ServiceVersion is the version string for this service.
	ServiceVersion string `yaml:"service_version"`

	// Environment identifies the deployment environment (development, production).
	Environment string `yaml:"environment"`

	// TraceExporter selects the trace exporter: "otlp", "stdout", or "none".
	TraceExporter string `yaml:"trace_exporter"`

	// MetricExporter selects the metric exporter: "prometheus", "stdout", or "none".
	MetricExporter string `yaml:"metric_exporter"`

	// OTLPEndpoint is the OTLP receiver endpoint for traces.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// OTLPInsecure disables TLS for OTLP connections.
	OTLPInsecure bool `yaml:"otlp_insecure"`

	// Registry receives the OTel Prometheus exporter. A fresh registry is
	// created when nil.
	Registry *prometheus.Registry `yaml:"-"`

	// Output receives the stdout exporters. Defaults to os.Stdout.
	Output io.Writer `yaml:"-"`
}

// DefaultConfig returns opinionated defaults for development.
//
// Environment variables override defaults where applicable:
//   - COSMOS_ENV: environment name
//   - OTEL_TRACES_EXPORTER: trace exporter type
//   - OTEL_METRICS_EXPORTER: metric exporter type
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint
func DefaultConfig() Config {
	return Config{
		ServiceName:    "cosmos",
		ServiceVersion: "1.0.0",
		Environment:    getEnvOr("COSMOS_ENV", "development"),
		TraceExporter:  getEnvOr("OTEL_TRACES_EXPORTER", ExporterNone),
		MetricExporter: getEnvOr("OTEL_METRICS_EXPORTER", ExporterPrometheus),
		OTLPEndpoint:   getEnvOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTLPInsecure:   true,
	}
}

// Providers holds the SDK providers built by Init.
type Providers struct {
	// TracerProvider is a no-op provider when tracing is disabled.
	TracerProvider trace.TracerProvider

	// MeterProvider is a no-op provider when metrics are disabled.
	MeterProvider metric.MeterProvider

	// Registry is the Prometheus registry backing MetricsHandler.
	Registry *prometheus.Registry

	metricsHandler http.Handler
	shutdownFuncs  []func(context.Context) error
}

// Tracer returns a named tracer from the trace provider.
func (p *Providers) Tracer(name string) trace.Tracer { return p.TracerProvider.Tracer(name) }

// Meter returns a named meter from the meter provider.
func (p *Providers) Meter(name string) metric.Meter { return p.MeterProvider.Meter(name) }

// MetricsHandler returns the HTTP handler for the /metrics endpoint.
//
// The handler serves Registry, which also holds the OTel metrics when the
// prometheus exporter is selected. It is never nil.
func (p *Providers) MetricsHandler() http.Handler { return p.metricsHandler }

// Shutdown flushes and stops every provider Init started. Errors from all
// providers are joined.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.shutdownFuncs = nil
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

// Init initializes the telemetry stack with the given configuration.
//
// Description:
//
//	Builds a TracerProvider and a MeterProvider based on the configuration
//	and installs them as the otel globals. Disabled signals get no-op
//	providers so callers never branch on nil.
//
// Inputs:
//
//	ctx - Context for initialization (used for exporter connections).
//	cfg - Telemetry configuration. Use DefaultConfig() for sensible defaults.
//
// Outputs:
//
//	*Providers - The providers. Shutdown must be called on exit.
//	error - Non-nil if initialization fails. Anything already started is
//	        shut down before returning.
//
// Thread Safety: Call once at application startup.
func Init(ctx context.Context, cfg Config) (*Providers, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	p := &Providers{
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  metricnoop.NewMeterProvider(),
		Registry:       reg,
		metricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)

	// --- TRACES ---
	if cfg.TraceExporter != ExporterNone && cfg.TraceExporter != "" {
		tp, err := initTracer(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		p.TracerProvider = tp
		p.shutdownFuncs = append(p.shutdownFuncs, tp.Shutdown)
	}

	// --- METRICS ---
	if cfg.MetricExporter != ExporterNone && cfg.MetricExporter != "" {
		mp, err := initMeter(cfg, res, reg)
		if err != nil {
			_ = p.Shutdown(ctx)
			return nil, fmt.Errorf("init meter: %w", err)
		}
		p.MeterProvider = mp
		p.shutdownFuncs = append(p.shutdownFuncs, mp.Shutdown)
	}

	otel.SetTracerProvider(p.TracerProvider)
	otel.SetMeterProvider(p.MeterProvider)
	return p, nil
}

// initTracer creates and returns a configured TracerProvider.
func initTracer(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)

	case ExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(outputOf(cfg)))

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}

	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}

// initMeter creates and returns a configured MeterProvider.
func initMeter(cfg Config, res *resource.Resource, reg *prometheus.Registry) (*sdkmetric.MeterProvider, error) {
	switch cfg.MetricExporter {
	case ExporterPrometheus:
		exporter, err := promexporter.New(promexporter.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		return sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		), nil

	case ExporterStdout:
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(outputOf(cfg)))
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		return sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}
}

func outputOf(cfg Config) io.Writer {
	if cfg.Output != nil {
		return cfg.Output
	}
	return os.Stdout
}

// getEnvOr returns the environment variable value or the fallback.
func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
