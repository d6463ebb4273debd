// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath     string
	logLevel       string
	logJSON        bool
	traceExporter  string
	metricExporter string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "cosmos",
		Short: "Structured event logging with atoms, nucleons and recorders",
		Long: `cosmos records leveled events under named atoms and fans them out
to the recorders listed in a YAML config (console, file, badger, influx,
prometheus, otel, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config (default: one console recorder)")
	flags.StringVar(&opts.logLevel, "log-level", "", "override log_level for the tool's own diagnostics")
	flags.BoolVar(&opts.logJSON, "log-json", false, "write diagnostics as JSON")
	flags.StringVar(&opts.traceExporter, "trace-exporter", "", "override telemetry.trace_exporter (otlp, stdout, none)")
	flags.StringVar(&opts.metricExporter, "metric-exporter", "", "override telemetry.metric_exporter (prometheus, stdout, none)")

	rootCmd.AddCommand(
		newDemoCmd(opts),
		newDumpCmd(),
		newCalendarCmd(),
		newServeCmd(opts),
	)
	return rootCmd
}
