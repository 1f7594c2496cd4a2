// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package mover relocates files and directory trees without giving up when
// individual files vanish mid-transfer. Cross-filesystem moves out of a
// download directory race with external tools (FileFlows, renamers) that may
// grab or replace files while the copy runs, so every file is copied
// independently and per-file failures never abort the whole move.
package mover

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/pkg/fsutil"
)

// FileError records one file that could not be copied.
type FileError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result describes the outcome of a move. Success means at least one file
// made it; Partial reports a mixed outcome.
type Result struct {
	Success     bool
	Source      string
	Dest        string
	FilesCopied int
	FilesFailed int
	Errors      []FileError
}

func (r Result) Partial() bool {
	return r.FilesCopied > 0 && r.FilesFailed > 0
}

// Mover performs resilient moves. The copy and same-filesystem functions are
// injectable so tests can simulate files disappearing mid-transfer.
type Mover struct {
	copyFile func(src, dst string) error
	sameFS   func(path1, path2 string) (bool, error)
}

func New() *Mover {
	return &Mover{
		copyFile: copyFileContents,
		sameFS:   fsutil.SameFilesystem,
	}
}

// Move relocates source to dest. Dest must not exist yet; its parent is
// created as needed. Same-filesystem moves use an atomic rename and count as
// one copied unit. When removeSource is false the source files are left in
// place after copying, for callers whose source cleanup happens elsewhere.
func (m *Mover) Move(source, dest string, removeSource bool) Result {
	result := Result{Source: source, Dest: dest}

	destParent := filepath.Dir(dest)
	if err := os.MkdirAll(destParent, 0o755); err != nil {
		result.Errors = append(result.Errors, FileError{Path: source, Reason: fmt.Sprintf("create destination parent: %v", err)})
		return result
	}

	if same, err := m.sameFS(source, destParent); err == nil && same {
		if err := os.Rename(source, dest); err == nil {
			result.Success = true
			result.FilesCopied = 1
			return result
		}
		log.Debug().Str("source", source).Msg("mover: rename failed, falling back to copy")
	}

	fi, err := os.Stat(source)
	if err != nil {
		result.FilesFailed = 1
		result.Errors = append(result.Errors, FileError{Path: source, Reason: classifyCopyError(source, err)})
		return result
	}

	if !fi.IsDir() {
		return m.moveFile(source, dest, removeSource, result)
	}
	return m.moveTree(source, dest, removeSource, result)
}

func (m *Mover) moveFile(source, dest string, removeSource bool, result Result) Result {
	if err := m.copyFile(source, dest); err != nil {
		reason := classifyCopyError(source, err)
		result.FilesFailed = 1
		result.Errors = append(result.Errors, FileError{Path: source, Reason: reason})
		log.Warn().Str("file", source).Str("reason", reason).Msg("mover: copy failed")
		return result
	}

	result.Success = true
	result.FilesCopied = 1

	if removeSource {
		if err := os.Remove(source); err != nil {
			log.Warn().Err(err).Str("file", source).Msg("mover: copied but failed to remove source")
		}
	}
	return result
}

func (m *Mover) moveTree(source, dest string, removeSource bool, result Result) Result {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		result.Errors = append(result.Errors, FileError{Path: dest, Reason: fmt.Sprintf("create destination: %v", err)})
		return result
	}

	var copiedSources []string

	walkErr := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Entries can vanish between listing and visiting.
			result.FilesFailed++
			result.Errors = append(result.Errors, FileError{Path: path, Reason: classifyCopyError(path, err)})
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(source, path)
		if err != nil {
			return nil
		}

		if err := m.copyFile(path, filepath.Join(dest, rel)); err != nil {
			reason := classifyCopyError(path, err)
			result.FilesFailed++
			result.Errors = append(result.Errors, FileError{Path: rel, Reason: reason})
			log.Warn().Str("file", rel).Str("reason", reason).Msg("mover: copy failed")
			return nil
		}

		result.FilesCopied++
		copiedSources = append(copiedSources, path)
		return nil
	})
	if walkErr != nil {
		result.Errors = append(result.Errors, FileError{Path: source, Reason: walkErr.Error()})
	}

	result.Success = result.FilesCopied > 0

	if removeSource && result.FilesCopied > 0 {
		for _, src := range copiedSources {
			if err := os.Remove(src); err != nil {
				log.Debug().Err(err).Str("file", src).Msg("mover: could not remove copied source")
			}
		}
		cleanupEmptyDirs(source)
	}

	return result
}

// classifyCopyError maps a copy failure to a reason string. A missing source
// usually means another process moved it first, which is expected traffic on
// shared download directories.
func classifyCopyError(path string, err error) string {
	name := filepath.Base(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Sprintf("file disappeared during copy (likely being processed externally): %s", name)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Sprintf("permission denied: %s: %v", name, err)
	default:
		return fmt.Sprintf("io error copying %s: %v", name, err)
	}
}

// copyFileContents copies src to dst, creating parent directories and
// preserving mode and modification time. An existing dst is overwritten.
func copyFileContents(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if err := os.Chtimes(dst, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		log.Debug().Err(err).Str("file", dst).Msg("mover: could not preserve mtime")
	}
	return nil
}

// cleanupEmptyDirs removes empty directories under root bottom-up, then root
// itself. Failures are ignored; a non-empty directory simply stays.
func cleanupEmptyDirs(root string) {
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})

	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], string(os.PathSeparator)) > strings.Count(dirs[j], string(os.PathSeparator))
	})

	for _, dir := range dirs {
		_ = os.Remove(dir)
	}
	_ = os.Remove(root)
}
