// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathSetContainsExactMembers(t *testing.T) {
	set := NewPathSet()
	set.Add("/data/movies/Film.2024/film.mkv")

	assert.True(t, set.Contains("/data/movies/Film.2024/film.mkv"))
	assert.False(t, set.Contains("/data/movies/Film.2024"))
	assert.False(t, set.Contains("/data/movies"))
	assert.Equal(t, 1, set.Len())
}

func TestPathSetCoversAncestors(t *testing.T) {
	set := NewPathSet()
	set.Add("/data/movies/Film.2024/film.mkv")

	assert.True(t, set.Covers("/data/movies/Film.2024"))
	assert.True(t, set.Covers("/data/movies"))
	assert.True(t, set.Covers("/data"))
	assert.False(t, set.Covers("/data/tv"))
	assert.False(t, set.Covers("/data/movies/Film.2024/film.mkv"))
}

func TestAddWithAncestorsStopsAtSaveRoot(t *testing.T) {
	set := NewPathSet()
	set.AddWithAncestors("/data/movies/Show/Season 1/ep1.mkv", "/data/movies")

	// Intermediate directories between the file and the save root count as
	// active, the save root itself does not.
	assert.True(t, set.Contains("/data/movies/Show/Season 1/ep1.mkv"))
	assert.True(t, set.Contains("/data/movies/Show/Season 1"))
	assert.True(t, set.Contains("/data/movies/Show"))
	assert.False(t, set.Contains("/data/movies"))
	assert.False(t, set.Contains("/data"))
}

func TestAddWithAncestorsBlankStopWalksToRoot(t *testing.T) {
	set := NewPathSet()
	set.AddWithAncestors("/data/movies/Film/film.mkv", "")

	assert.True(t, set.Contains("/data/movies/Film"))
	assert.True(t, set.Contains("/data/movies"))
	assert.True(t, set.Contains("/data"))
	assert.False(t, set.Contains("/"))
}

func TestIsActiveBothDirections(t *testing.T) {
	set := NewPathSet()
	set.AddWithAncestors("/data/movies/Film.2024", "/data/movies")

	// Exact member.
	assert.True(t, set.IsActive("/data/movies/Film.2024"))
	// Descendants of an active path belong to the torrent.
	assert.True(t, set.IsActive("/data/movies/Film.2024/subs/eng.srt"))
	// Ancestors of an active path must never be treated as orphans.
	assert.True(t, set.IsActive("/data/movies"))
	assert.True(t, set.IsActive("/data"))
	// Siblings are fair game.
	assert.False(t, set.IsActive("/data/movies/Other.Film"))
	assert.False(t, set.IsActive("/data/tv"))
}

func TestIsActiveRequiresPathBoundary(t *testing.T) {
	set := NewPathSet()
	set.Add("/data/movies/Film")

	// Shared string prefix without a separator boundary is not a match.
	assert.False(t, set.IsActive("/data/movies/Film.2024"))
	assert.True(t, set.IsActive("/data/movies/Film/part1.mkv"))
}

func TestPathSetNormalizesInput(t *testing.T) {
	set := NewPathSet()
	set.Add("/data/movies//Film/")

	assert.True(t, set.Contains("/data/movies/Film"))
	assert.True(t, set.IsActive("/data/movies/Film/extras"))
}

func TestPathSetIgnoresEmptyPaths(t *testing.T) {
	set := NewPathSet()
	set.Add("")
	set.Add(".")
	set.AddWithAncestors("", "/data")

	assert.Equal(t, 0, set.Len())
}
