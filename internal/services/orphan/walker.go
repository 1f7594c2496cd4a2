// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Candidate is one filesystem entry with no tracked torrent claiming it.
type Candidate struct {
	Path       string
	Dir        bool
	Size       int64
	ModifiedAt time.Time
}

// walkScanDir walks one scan root and returns the orphan candidates under it.
// An orphaned directory becomes a single candidate and its contents are not
// descended into; a directory still too young to qualify is descended so old
// files inside it are found individually.
func walkScanDir(ctx context.Context, root string, set *PathSet, ignorePaths []string, minAge time.Duration, now time.Time) ([]Candidate, error) {
	root = filepath.Clean(root)
	var candidates []Candidate

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if os.IsPermission(err) {
				return nil
			}
			return err
		}

		if path == root {
			return nil
		}

		// Symlinks are never followed or reclaimed.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if isIgnoredPath(path, ignorePaths) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			// An active directory owns everything below it.
			if set.Contains(path) {
				return fs.SkipDir
			}
			// Something active lives deeper; keep walking to find orphans
			// sitting next to it.
			if set.Covers(path) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			if now.Sub(info.ModTime()) < minAge {
				return nil
			}

			candidates = append(candidates, Candidate{
				Path:       path,
				Dir:        true,
				Size:       treeSize(path),
				ModifiedAt: info.ModTime(),
			})
			return fs.SkipDir
		}

		if set.IsActive(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime()) < minAge {
			return nil
		}

		candidates = append(candidates, Candidate{
			Path:       path,
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
		return nil
	})

	return candidates, err
}

// treeSize sums the file sizes under a directory, tolerating errors. Sizing
// is for audit logs only, so a partial sum beats no candidate.
func treeSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

// isIgnoredPath reports whether path matches any ignore prefix, requiring a
// separator boundary so /data/foo never matches /data/foobar.
func isIgnoredPath(path string, ignorePaths []string) bool {
	for _, prefix := range ignorePaths {
		if path == prefix {
			return true
		}
		if strings.HasPrefix(path, prefix) && len(path) > len(prefix) && path[len(prefix)] == filepath.Separator {
			return true
		}
	}
	return false
}

// NormalizeIgnorePaths cleans the configured ignore paths. Relative paths are
// rejected so a prefix match can never wander.
func NormalizeIgnorePaths(paths []string) ([]string, error) {
	result := make([]string, 0, len(paths))
	for _, p := range paths {
		cleaned := filepath.Clean(p)
		if !filepath.IsAbs(cleaned) {
			return nil, fmt.Errorf("ignore path must be absolute: %s", p)
		}
		result = append(result, cleaned)
	}
	return result, nil
}
