// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "strings"

// RedactString masks a secret with asterisks of the same length so config
// responses never echo credentials.
func RedactString(s string) string {
	if len(s) == 0 {
		return ""
	}

	return strings.Repeat("*", len(s))
}

// IsRedactedValue reports whether a submitted value is a redacted placeholder,
// meaning the stored secret should be kept rather than overwritten.
func IsRedactedValue(value string) bool {
	if value == "" {
		return false
	}

	for _, char := range value {
		if char != '*' {
			return false
		}
	}
	return true
}
