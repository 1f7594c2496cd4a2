// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"testing"
)

func TestIntern(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty string", "", ""},
		{"simple string", "uploading", "uploading"},
		{"with spaces", "hello world", "hello world"},
		{"unicode", "你好世界", "你好世界"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Intern(tt.input)
			if got != tt.want {
				t.Errorf("Intern() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInternDeduplication(t *testing.T) {
	s1 := "tracker.example.com"
	s2 := string([]byte("tracker.example.com"))

	if Intern(s1) != Intern(s2) {
		t.Errorf("interned strings should be equal: %q vs %q", Intern(s1), Intern(s2))
	}
}

func TestInternNormalized(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty string", "", ""},
		{"whitespace only", "   ", ""},
		{"mixed case with spaces", "  StalledUP  ", "stalledup"},
		{"already normalized", "radarr", "radarr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InternNormalized(tt.input)
			if got != tt.want {
				t.Errorf("InternNormalized() = %q, want %q", got, tt.want)
			}
		})
	}
}
