// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires the OpenTelemetry SDK for the cosmos binaries.
//
// It builds a TracerProvider and a MeterProvider from a Config, backed by a
// dedicated Prometheus registry so that the prometheus recorder, the OTel
// meter and the debug server's /metrics endpoint all share one scrape
// target. The spans recorder and the otel recorder take their tracer and
// meter from the returned Providers.
//
// # Usage
//
//	p, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer p.Shutdown(context.Background())
//
//	spans := recorders.NewSpans(p.Tracer("cosmos"), cosmos.LevelInfo)
//
// # Environment Variables
//
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: prometheus)
//   - COSMOS_ENV: environment name (default: development)
package telemetry
