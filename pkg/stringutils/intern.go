// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package stringutils provides string helpers for the engine's hot paths:
// interning via the unique package for values repeated across snapshots
// (torrent states, tracker domains, categories) and cached unicode
// normalization backing the API's torrent search.
package stringutils

import (
	"strings"
	"unique"
)

// Intern returns a canonical representation of the string. Identical strings
// share the same underlying memory, which keeps repeated snapshot values like
// state names and categories from accumulating per-cycle allocations.
func Intern(s string) string {
	if s == "" {
		return ""
	}
	return unique.Make(s).Value()
}

// InternNormalized interns a trimmed, lowercased version of the string, the
// canonical form for case-insensitive matching.
func InternNormalized(s string) string {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return ""
	}
	return unique.Make(normalized).Value()
}
