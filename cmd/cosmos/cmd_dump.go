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
	"context"
	"fmt"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"github.com/AleutianAI/cosmos/pkg/recorders"
	storage "github.com/AleutianAI/cosmos/pkg/storage/badger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newDumpCmd() *cobra.Command {
	var (
		dbPath   string
		atomID   string
		minLevel string
		color    bool
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print records persisted by a badger recorder",
		Long: `dump opens a badger recorder's directory read-only and prints every
record in write order with the console line format.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			threshold := cosmos.LevelTrace
			if minLevel != "" {
				l, err := cosmos.ParseLevel(minLevel)
				if err != nil {
					return fmt.Errorf("--min-level: %w", err)
				}
				threshold = l
			}

			cfg := storage.DefaultConfig(dbPath)
			cfg.ReadOnly = true
			cfg.GCInterval = 0
			db, err := storage.Open(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			var entries []recorders.Entry
			if atomID != "" {
				id, err := uuid.Parse(atomID)
				if err != nil {
					return fmt.Errorf("--atom: %w", err)
				}
				entries, err = recorders.ReadAtom(ctx, db, id)
				if err != nil {
					return err
				}
			} else {
				entries, err = recorders.ReadAll(ctx, db)
				if err != nil {
					return err
				}
			}

			w := recorders.NewWriter(cmd.OutOrStdout(), threshold)
			if cmd.Flags().Changed("color") {
				w.SetColor(color)
			}
			for _, e := range entries {
				if e.Level < threshold {
					continue
				}
				if err := w.WriteLine(e.Render()); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "badger directory written by a badger recorder")
	cmd.Flags().StringVar(&atomID, "atom", "", "only records of this atom id")
	cmd.Flags().StringVar(&minLevel, "min-level", "", "skip records below this level")
	cmd.Flags().BoolVar(&color, "color", false, "force colour on or off (default: when stdout is a terminal)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}
