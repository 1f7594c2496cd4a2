// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameFilesystemSiblingDirs(t *testing.T) {
	dir := t.TempDir()
	sub1 := filepath.Join(dir, "a")
	sub2 := filepath.Join(dir, "b")
	require.NoError(t, os.Mkdir(sub1, 0o755))
	require.NoError(t, os.Mkdir(sub2, 0o755))

	same, err := SameFilesystem(sub1, sub2)
	require.NoError(t, err)
	assert.True(t, same)
}

func TestSameFilesystemSamePath(t *testing.T) {
	dir := t.TempDir()

	same, err := SameFilesystem(dir, dir)
	require.NoError(t, err)
	assert.True(t, same)
}

func TestSameFilesystemFileAndParent(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	same, err := SameFilesystem(file, dir)
	require.NoError(t, err)
	assert.True(t, same)
}

func TestSameFilesystemEmptyPath(t *testing.T) {
	_, err := SameFilesystem("", t.TempDir())
	assert.Error(t, err)
}

func TestSameFilesystemMissingPath(t *testing.T) {
	dir := t.TempDir()

	_, err := SameFilesystem(filepath.Join(dir, "missing"), dir)
	assert.Error(t, err)
}
