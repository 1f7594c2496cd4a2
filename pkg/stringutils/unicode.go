// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// unicodeNormalizer caches NFKD results; torrent names recur across
	// searches and snapshots.
	unicodeNormalizer = NewNormalizer(defaultNormalizerTTL, normalizeUnicodeInner)

	searchNormalizer = NewNormalizer(defaultNormalizerTTL, normalizeForSearchInner)
)

func normalizeUnicodeInner(s string) string {
	// Distinct letters NFKD does not decompose to ASCII (Nordic/Germanic),
	// mapped by convention instead.
	s = strings.ReplaceAll(s, "æ", "ae")
	s = strings.ReplaceAll(s, "Æ", "AE")
	s = strings.ReplaceAll(s, "œ", "oe")
	s = strings.ReplaceAll(s, "Œ", "OE")
	s = strings.ReplaceAll(s, "ø", "o")
	s = strings.ReplaceAll(s, "Ø", "O")
	s = strings.ReplaceAll(s, "ß", "ss")
	s = strings.ReplaceAll(s, "ð", "d")
	s = strings.ReplaceAll(s, "Ð", "D")
	s = strings.ReplaceAll(s, "þ", "th")
	s = strings.ReplaceAll(s, "Þ", "TH")

	// transform.Chain is not safe for concurrent reuse, so build it per call.
	// The cache in front keeps that cheap.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

func normalizeForSearchInner(s string) string {
	s = unicodeNormalizer.Normalize(s)
	s = strings.ToLower(strings.TrimSpace(s))

	// Scene release names separate words with dots, underscores and hyphens.
	s = strings.ReplaceAll(s, ".", " ")
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, ":", "")

	return Intern(strings.Join(strings.Fields(s), " "))
}

// NormalizeUnicode removes diacritics and decomposes ligatures, with caching.
// Examples:
//   - "Shōgun" → "Shogun"
//   - "Amélie" → "Amelie"
//   - "Björk" → "Bjork"
//   - "ﬁ" → "fi"
func NormalizeUnicode(s string) string {
	return unicodeNormalizer.Normalize(s)
}

// NormalizeForSearch folds a torrent name into the form the API search
// matches against: unicode-normalized, lowercased, with scene separators
// (".", "_", "-") turned into spaces and runs of spaces collapsed.
// Examples:
//   - "Amélie.2001.1080p.BluRay" → "amelie 2001 1080p bluray"
//   - "Shōgun_S01E03" → "shogun s01e03"
func NormalizeForSearch(s string) string {
	return searchNormalizer.Normalize(s)
}
