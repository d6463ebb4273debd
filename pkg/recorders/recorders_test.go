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
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/cosmos/pkg/cosmos"
	"github.com/stretchr/testify/require"
)

// epoch is 2024-03-05T07:08:09.012Z.
var epoch = time.Date(2024, 3, 5, 7, 8, 9, 12_000_000, time.UTC)

// stepClock returns epoch, then advances by step on every reading.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// newCosmos returns a cosmos with a deterministic clock and thread id,
// destroyed at the end of the test.
func newCosmos(t *testing.T, step time.Duration, recs ...cosmos.Recorder) (*cosmos.Cosmos, *stepClock) {
	t.Helper()
	clock := &stepClock{now: epoch, step: step}
	c := cosmos.New(
		cosmos.WithClock(clock.Now),
		cosmos.WithThreadID(func() int { return 7 }),
		cosmos.WithRecorders(recs...),
		cosmos.WithErrorHandler(func(err error) { t.Errorf("swallowed: %v", err) }),
	)
	t.Cleanup(func() { c.Destroy() })
	return c, clock
}

func newAtom(t *testing.T, c *cosmos.Cosmos, name string) *cosmos.Atom {
	t.Helper()
	a, err := c.NewAtom(name)
	require.NoError(t, err)
	return a
}
