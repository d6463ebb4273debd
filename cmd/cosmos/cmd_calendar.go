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
	"fmt"
	"strconv"
	"time"

	"github.com/AleutianAI/cosmos/pkg/chrono"
	"github.com/spf13/cobra"
)

func newCalendarCmd() *cobra.Command {
	var (
		format string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "calendar <unix-nanos|now>",
		Short: "Render a nanosecond timestamp as a UTC calendar string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ns int64
			if args[0] == "now" {
				ns = time.Now().UnixNano()
			} else {
				v, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("timestamp %q: %w", args[0], err)
				}
				ns = v
			}

			out := cmd.OutOrStdout()
			if all {
				for _, f := range chrono.Formats() {
					s, err := chrono.Render(ns, f)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%-5s %s\n", f, s)
				}
				return nil
			}

			f, err := chrono.ParseFormat(format)
			if err != nil {
				return err
			}
			s, err := chrono.Render(ns, f)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, s)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(chrono.FormatISO), "iso, log, date, time or us")
	cmd.Flags().BoolVar(&all, "all", false, "print every format")
	return cmd
}
