// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cosmos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLevel_Ordering(t *testing.T) {
	levels := Levels()
	require.Len(t, levels, 6)
	for i := 1; i < len(levels); i++ {
		assert.Less(t, levels[i-1], levels[i])
	}
}

func TestLevel_StringAndChar(t *testing.T) {
	tests := []struct {
		level Level
		str   string
		char  byte
	}{
		{LevelTrace, "TRACE", 'T'},
		{LevelDebug, "DEBUG", 'D'},
		{LevelInfo, "INFO", 'I'},
		{LevelNotice, "NOTICE", 'N'},
		{LevelWarn, "WARN", 'W'},
		{LevelError, "ERROR", 'E'},
		{Level(42), "UNKNOWN", '?'},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.str, tt.level.String())
			assert.Equal(t, tt.char, tt.level.Char())
		})
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"trace":   LevelTrace,
		"DEBUG":   LevelDebug,
		" info ":  LevelInfo,
		"Notice":  LevelNotice,
		"warning": LevelWarn,
		"err":     LevelError,
		"ERROR\n": LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("fatal")
	assert.Error(t, err)
}

func TestLevel_YAML(t *testing.T) {
	var doc struct {
		Min Level `yaml:"min"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("min: warning\n"), &doc))
	assert.Equal(t, LevelWarn, doc.Min)

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, "min: warn\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("min: loud\n"), &doc))

	_, err = Level(9).MarshalText()
	assert.Error(t, err)
}
