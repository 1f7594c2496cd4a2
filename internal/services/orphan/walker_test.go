// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func backdate(t *testing.T, path string, age time.Duration) {
	t.Helper()
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
}

func candidatePaths(candidates []Candidate) []string {
	paths := make([]string, 0, len(candidates))
	for _, c := range candidates {
		paths = append(paths, c.Path)
	}
	return paths
}

func TestWalkScanDirFindsOrphanFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "active", "Film.2024", "film.mkv"), "payload")
	writeFile(t, filepath.Join(root, "active", "stray.mkv"), "stray")
	writeFile(t, filepath.Join(root, "orphan.mkv"), "orphan")
	writeFile(t, filepath.Join(root, "young.mkv"), "fresh")
	backdate(t, filepath.Join(root, "active", "stray.mkv"), 2*time.Hour)
	backdate(t, filepath.Join(root, "orphan.mkv"), 2*time.Hour)

	set := NewPathSet()
	set.AddWithAncestors(filepath.Join(root, "active", "Film.2024"), filepath.Join(root, "active"))

	candidates, err := walkScanDir(context.Background(), root, set, nil, time.Hour, time.Now())
	require.NoError(t, err)

	paths := candidatePaths(candidates)
	// The stray file next to the active content dir is found because the
	// walker descends through directories that still cover active paths.
	assert.Contains(t, paths, filepath.Join(root, "active", "stray.mkv"))
	assert.Contains(t, paths, filepath.Join(root, "orphan.mkv"))
	// Too young to qualify.
	assert.NotContains(t, paths, filepath.Join(root, "young.mkv"))
	// Owned by the torrent.
	assert.NotContains(t, paths, filepath.Join(root, "active", "Film.2024", "film.mkv"))
	assert.Len(t, candidates, 2)
}

func TestWalkOrphanDirBecomesSingleCandidate(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Old.Release")
	writeFile(t, filepath.Join(dir, "part1.bin"), "aaaa")
	writeFile(t, filepath.Join(dir, "sub", "part2.bin"), "bbbbbb")
	backdate(t, filepath.Join(dir, "sub"), 3*time.Hour)
	backdate(t, dir, 3*time.Hour)

	candidates, err := walkScanDir(context.Background(), root, NewPathSet(), nil, time.Hour, time.Now())
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	c := candidates[0]
	assert.Equal(t, dir, c.Path)
	assert.True(t, c.Dir)
	assert.Equal(t, int64(10), c.Size)
}

func TestWalkYoungDirDescendedForOldFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Mixed.Release")
	writeFile(t, filepath.Join(dir, "old.bin"), "old")
	writeFile(t, filepath.Join(dir, "new.bin"), "new")
	backdate(t, filepath.Join(dir, "old.bin"), 2*time.Hour)
	// The directory itself keeps a fresh mtime, so it cannot be reclaimed as
	// a unit yet. Old files inside it still are.

	candidates, err := walkScanDir(context.Background(), root, NewPathSet(), nil, time.Hour, time.Now())
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, filepath.Join(dir, "old.bin"), candidates[0].Path)
	assert.False(t, candidates[0].Dir)
}

func TestWalkActiveDirOwnsSubtree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Film", "film.mkv"), "payload")
	writeFile(t, filepath.Join(root, "Film", "extras", "deleted.scene.mkv"), "extra")

	set := NewPathSet()
	set.Add(filepath.Join(root, "Film"))

	candidates, err := walkScanDir(context.Background(), root, set, nil, 0, time.Now())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestWalkIgnorePathBoundary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep", "important.bin"), "keep")
	writeFile(t, filepath.Join(root, "keepme.bin"), "gone")

	ignore := []string{filepath.Join(root, "keep")}
	candidates, err := walkScanDir(context.Background(), root, NewPathSet(), ignore, 0, time.Now())
	require.NoError(t, err)

	paths := candidatePaths(candidates)
	// keepme.bin shares a string prefix with the ignore path but is not
	// under it.
	assert.Contains(t, paths, filepath.Join(root, "keepme.bin"))
	assert.NotContains(t, paths, filepath.Join(root, "keep", "important.bin"))
}

func TestWalkSkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "target.bin"), "target")
	require.NoError(t, os.Symlink(filepath.Join(outside, "target.bin"), filepath.Join(root, "link.bin")))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "linkdir")))

	candidates, err := walkScanDir(context.Background(), root, NewPathSet(), nil, 0, time.Now())
	require.NoError(t, err)
	assert.Empty(t, candidates)

	// The symlink targets are untouched.
	_, err = os.Stat(filepath.Join(outside, "target.bin"))
	assert.NoError(t, err)
}

func TestWalkCancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.bin"), "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := walkScanDir(ctx, root, NewPathSet(), nil, 0, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeIgnorePaths(t *testing.T) {
	paths, err := NormalizeIgnorePaths([]string{"/data/keep/", "/data//other"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/keep", "/data/other"}, paths)

	_, err = NormalizeIgnorePaths([]string{"relative/path"})
	assert.ErrorContains(t, err, "must be absolute")
}

func TestTorrentFileName(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "release.torrent")
	require.NoError(t, os.WriteFile(valid, []byte("d4:infod4:name7:My.Filmee"), 0o644))

	name, ok := torrentFileName(valid)
	assert.True(t, ok)
	assert.Equal(t, "My.Film", name)

	garbage := filepath.Join(dir, "broken.torrent")
	require.NoError(t, os.WriteFile(garbage, []byte("not bencode"), 0o644))
	_, ok = torrentFileName(garbage)
	assert.False(t, ok)

	_, ok = torrentFileName(filepath.Join(dir, "film.mkv"))
	assert.False(t, ok)
}
