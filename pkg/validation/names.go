// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks names that end up in storage keys, metric
// labels, file names and line protocol.
//
// Recorder names and measurement names come from configuration and are
// strict. Atom names come from application code and may hold anything, so
// they are sanitized rather than rejected before being used as tag values.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// namePattern matches recorder, service and measurement names.
// Allows: lowercase letters, digits, underscore, dot, hyphen.
// Must start with a letter. Max length: 64.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_.\-]{0,63}$`)

// MaxTagValueLen caps sanitized tag values.
const MaxTagValueLen = 128

// ValidateName validates a configured name.
//
// Valid names:
//   - 1-64 characters
//   - start with a lowercase letter
//   - lowercase letters, digits, '_', '.', '-'
//
// Example:
//
//	if err := validation.ValidateName(rc.Name); err != nil {
//	    return fmt.Errorf("recorder %d: %w", i, err)
//	}
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid name %q (must be 1-64 lowercase alphanumeric chars, '_', '.', or '-', starting with a letter)", name)
	}
	return nil
}

// ValidateNames validates several names and rejects duplicates.
// The error lists every offending name.
func ValidateNames(names []string) error {
	var invalid, dup []string
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if err := ValidateName(n); err != nil {
			invalid = append(invalid, n)
			continue
		}
		if seen[n] {
			dup = append(dup, n)
		}
		seen[n] = true
	}

	switch {
	case len(invalid) > 0:
		return fmt.Errorf("invalid names: %q", invalid)
	case len(dup) > 0:
		return fmt.Errorf("duplicate names: %q", dup)
	}
	return nil
}

// SanitizeName trims and lowercases name, then validates it.
func SanitizeName(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if err := ValidateName(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// SanitizeTagValue makes an arbitrary atom name safe to use as a metric
// label or line protocol tag value.
//
// Control characters, separators ('=', ',', ' ', '"', '\\') and invalid
// UTF-8 become '_'. The result is cut to MaxTagValueLen bytes on a rune
// boundary. An empty input yields "_".
func SanitizeTagValue(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(min(len(s), MaxTagValueLen))
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size <= 1 {
				r = '_'
			}
		}
		switch {
		case r < 0x20, r == 0x7f:
			r = '_'
		case r == '=', r == ',', r == ' ', r == '"', r == '\\':
			r = '_'
		}
		if b.Len()+utf8.RuneLen(r) > MaxTagValueLen {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}
