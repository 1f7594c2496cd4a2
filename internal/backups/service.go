// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package backups creates point-in-time archives of the sweeparr database.
// Snapshots are taken with VACUUM INTO, so an archive is consistent even
// while the daemon keeps writing.
package backups

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mholt/archives"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/database"
)

const (
	defaultKeep     = 5
	timestampLayout = "20060102T150405"
	archivePrefix   = "sweeparr-backup-"
	archiveSuffix   = ".tar.zst"
)

// Config controls where archives land and how many are retained.
type Config struct {
	// Dir receives the archives. Empty means a "backups" directory next to
	// the database file.
	Dir string

	// Keep bounds how many archives are retained, oldest removed first.
	// Zero or negative falls back to the default of 5.
	Keep int

	// Extra names additional files copied into every archive, such as the
	// config file. Missing entries are skipped with a warning.
	Extra []string
}

// Service archives the database on demand.
type Service struct {
	db     *database.DB
	dbPath string
	cfg    Config

	now func() time.Time
}

func NewService(db *database.DB, dbPath string, cfg Config) *Service {
	if cfg.Keep <= 0 {
		cfg.Keep = defaultKeep
	}
	return &Service{
		db:     db,
		dbPath: dbPath,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run writes one archive and prunes the retention window. Returns the
// archive path.
func (s *Service) Run(ctx context.Context) (string, error) {
	dir := s.cfg.Dir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(s.dbPath), "backups")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create backup dir %s", dir)
	}

	stamp := s.now().Format(timestampLayout)

	snapshot := filepath.Join(dir, fmt.Sprintf("snapshot-%s.db", stamp))
	// VACUUM INTO refuses to overwrite, so clear leftovers from a run that
	// crashed between snapshot and archive.
	_ = os.Remove(snapshot)
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return "", errors.Wrap(err, "snapshot database")
	}
	defer os.Remove(snapshot)

	archivePath, err := s.writeArchive(ctx, dir, stamp, snapshot)
	if err != nil {
		return "", err
	}

	s.prune(dir)
	return archivePath, nil
}

func (s *Service) writeArchive(ctx context.Context, dir, stamp, snapshot string) (string, error) {
	names := map[string]string{snapshot: "sweeparr.db"}
	for _, extra := range s.cfg.Extra {
		if _, err := os.Stat(extra); err != nil {
			log.Warn().Err(err).Str("path", extra).Msg("backup: skipping extra file")
			continue
		}
		names[extra] = filepath.Base(extra)
	}

	files, err := archives.FilesFromDisk(ctx, nil, names)
	if err != nil {
		return "", errors.Wrap(err, "collect backup files")
	}

	archivePath := uniquePath(filepath.Join(dir, archivePrefix+stamp+archiveSuffix))
	out, err := os.Create(archivePath)
	if err != nil {
		return "", errors.Wrapf(err, "create archive %s", archivePath)
	}
	defer out.Close()

	format := archives.CompressedArchive{
		Compression: archives.Zstd{},
		Archival:    archives.Tar{},
	}
	if err := format.Archive(ctx, out, files); err != nil {
		os.Remove(archivePath)
		return "", errors.Wrap(err, "write archive")
	}

	log.Info().Str("path", archivePath).Msg("backup: archive written")
	return archivePath, nil
}

// prune keeps the newest Keep archives by modification time. Failures only
// log; a full retention window must never fail the backup that just ran.
func (s *Service) prune(dir string) {
	matches, err := filepath.Glob(filepath.Join(dir, archivePrefix+"*"+archiveSuffix))
	if err != nil || len(matches) <= s.cfg.Keep {
		return
	}

	type stamped struct {
		path string
		mod  time.Time
	}
	entries := make([]stamped, 0, len(matches))
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		entries = append(entries, stamped{path: m, mod: fi.ModTime()})
	}

	if len(entries) <= s.cfg.Keep {
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mod.After(entries[j].mod) })

	for _, old := range entries[s.cfg.Keep:] {
		if err := os.Remove(old.path); err != nil {
			log.Warn().Err(err).Str("path", old.path).Msg("backup: could not prune old archive")
			continue
		}
		log.Debug().Str("path", old.path).Msg("backup: pruned old archive")
	}
}

// uniquePath appends a numeric suffix while the path is taken, so two
// backups within the same second never clobber each other.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := archiveSuffix
	base := path[:len(path)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
