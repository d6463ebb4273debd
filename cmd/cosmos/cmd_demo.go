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
	"github.com/spf13/cobra"
)

// requestTiming is the gluon carried by demo request nucleons.
type requestTiming struct {
	Status uint16
	Micros int64
}

// jobProgress is the gluon carried by the demo batch job.
type jobProgress struct {
	Done  int32
	Total int32
}

func newDemoCmd(opts *rootOptions) *cobra.Command {
	var requests int

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a small workload against the configured recorders",
		Long: `demo creates one atom per simulated request plus a batch job atom,
logs at every level with typed payloads, decays each atom and prints the
cosmos counters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if requests < 0 {
				return fmt.Errorf("--requests must not be negative")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			rt, err := newApp(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			runDemo(rt, requests)

			st := rt.cosmos.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "dispatched=%d short_circuited=%d swallowed=%d\n",
				st.Dispatched, st.ShortCircuited, st.Swallowed)
			return rt.Close(context.Background())
		},
	}
	cmd.Flags().IntVarP(&requests, "requests", "n", 3, "number of simulated requests")
	return cmd
}

func runDemo(rt *app, requests int) {
	c := rt.cosmos
	paths := []string{"/v1/orders", "/v1/users", "/healthz"}

	for i := range requests {
		a, err := c.NewAtom("request")
		if err != nil {
			rt.logger.Warn("demo atom", "error", err)
			return
		}
		path := paths[i%len(paths)]
		a.Tracef("parsing headers for %s", path)
		a.Infof("GET %s", path)
		micros := int64(420 + 137*i)
		cosmos.Logf(a, cosmos.LevelNotice, requestTiming{Status: 200, Micros: micros},
			"handled %s in %dus", path, micros)
		if i%3 == 2 {
			a.Warnf("slow downstream after %d retries", i)
		}
		a.Decay()
		rt.endAtom(a)
	}

	job, err := c.NewAtom("reindex")
	if err != nil {
		rt.logger.Warn("demo atom", "error", err)
		return
	}
	const total = 4
	for done := int32(1); done <= total; done++ {
		cosmos.Logf(job, cosmos.LevelDebug, jobProgress{Done: done, Total: total},
			"reindexed shard %d/%d", done, total)
	}
	job.Error("shard 3 checksum mismatch")
	job.Decay()
	rt.endAtom(job)
}
