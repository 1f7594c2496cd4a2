// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/mover"
)

const metaSuffix = ".meta.json"

// recycleMeta is the sidecar written next to every staged entry so a recycled
// item can be traced back to where it came from.
type recycleMeta struct {
	OriginalPath string            `json:"originalPath"`
	RecycledAt   time.Time         `json:"recycledAt"`
	FilesCopied  int               `json:"filesCopied"`
	FilesFailed  int               `json:"filesFailed"`
	Errors       []mover.FileError `json:"errors,omitempty"`
}

// Recycler stages orphans into a holding directory instead of deleting them,
// and prunes entries older than the retention window.
type Recycler struct {
	dir       string
	retention time.Duration
	mover     *mover.Mover
	now       func() time.Time
}

// NewRecycler returns a recycler rooted at dir. A retention of zero or less
// disables pruning.
func NewRecycler(dir string, retentionDays int, mv *mover.Mover) *Recycler {
	return &Recycler{
		dir:       normalizePath(dir),
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		mover:     mv,
		now:       time.Now,
	}
}

// Stage moves a candidate into the recycle directory under a timestamped name
// and writes its sidecar. The move keeps the mover's per-file tolerance, so a
// partially staged directory still counts as staged.
func (r *Recycler) Stage(c Candidate) mover.Result {
	dest := r.destFor(c.Path)

	result := r.mover.Move(c.Path, dest, true)
	if !result.Success {
		return result
	}

	meta := recycleMeta{
		OriginalPath: c.Path,
		RecycledAt:   r.now().UTC(),
		FilesCopied:  result.FilesCopied,
		FilesFailed:  result.FilesFailed,
		Errors:       result.Errors,
	}
	if err := r.writeMeta(dest, meta); err != nil {
		log.Warn().Err(err).Str("entry", dest).Msg("orphan: could not write recycle sidecar")
	}
	return result
}

// destFor builds a unique destination name inside the recycle directory.
func (r *Recycler) destFor(source string) string {
	stamp := r.now().UTC().Format("20060102-150405")
	dest := filepath.Join(r.dir, fmt.Sprintf("%s.%s", filepath.Base(source), stamp))
	if _, err := os.Lstat(dest); err == nil {
		dest = filepath.Join(r.dir, fmt.Sprintf("%s.%d", filepath.Base(source), r.now().UnixNano()))
	}
	return dest
}

func (r *Recycler) writeMeta(dest string, meta recycleMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(dest+metaSuffix, data, 0o644)
}

// Prune removes staged entries older than the retention window, sidecars
// included. Per-entry failures are logged and skipped.
func (r *Recycler) Prune() int {
	if r.retention <= 0 {
		return 0
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("dir", r.dir).Msg("orphan: could not read recycle directory")
		}
		return 0
	}

	cutoff := r.now().Add(-r.retention)
	removed := 0

	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), metaSuffix) {
			continue
		}

		path := filepath.Join(r.dir, entry.Name())
		if r.stagedAt(path, entry).After(cutoff) {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			log.Error().Err(err).Str("entry", path).Msg("orphan: could not prune recycled entry")
			continue
		}
		if err := os.Remove(path + metaSuffix); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("entry", path).Msg("orphan: could not remove recycle sidecar")
		}

		log.Info().Str("entry", path).Msg("orphan: pruned recycled entry past retention")
		removed++
	}

	return removed
}

// stagedAt reads the staging time from the sidecar. Entries whose sidecar is
// missing or unreadable fall back to their own modification time, which for a
// renamed entry may predate staging and prune it early; that is the safe
// direction for a holding area.
func (r *Recycler) stagedAt(path string, entry os.DirEntry) time.Time {
	data, err := os.ReadFile(path + metaSuffix)
	if err == nil {
		var meta recycleMeta
		if err := json.Unmarshal(data, &meta); err == nil && !meta.RecycledAt.IsZero() {
			return meta.RecycledAt
		}
	}

	if info, err := entry.Info(); err == nil {
		return info.ModTime()
	}
	return time.Time{}
}
