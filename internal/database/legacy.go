// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mholt/archives"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Older releases persisted tracking state as a flat JSON file next to the
// database. ImportLegacyState folds that file into the torrents table once,
// archives it and removes the original. The original is only touched after
// the imported rows are verified readable, so a failed import leaves the
// file in place for the next start.

type legacyTorrent struct {
	FirstSeen    string `json:"first_seen"`
	CurrentState string `json:"current_state"`
	StateSince   string `json:"state_since"`
	StalledSince string `json:"stalled_since"`
}

type legacyState struct {
	Torrents map[string]legacyTorrent `json:"torrents"`
}

// LegacyStatePath returns the flat-file location a previous release would
// have used for the given database path.
func LegacyStatePath(databasePath string) string {
	return strings.TrimSuffix(databasePath, filepath.Ext(databasePath)) + ".json"
}

// ImportLegacyState imports the legacy JSON state file for databasePath if
// one exists. Returns the number of imported torrents. A missing file is not
// an error.
func (db *DB) ImportLegacyState(ctx context.Context, databasePath string) (int, error) {
	legacyPath := LegacyStatePath(databasePath)

	data, err := os.ReadFile(legacyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "read legacy state file %s", legacyPath)
	}

	var state legacyState
	if err := json.Unmarshal(data, &state); err != nil {
		return 0, errors.Wrapf(err, "parse legacy state file %s", legacyPath)
	}

	if len(state.Torrents) == 0 {
		log.Warn().Str("path", legacyPath).Msg("legacy state file contains no torrents, leaving it in place")
		return 0, nil
	}

	log.Info().Int("torrents", len(state.Torrents)).Str("path", legacyPath).Msg("importing legacy state file")

	now := time.Now().UTC()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin legacy import transaction")
	}
	defer tx.Rollback()

	hashes := make([]string, 0, len(state.Torrents))
	for hash, t := range state.Torrents {
		currentState := t.CurrentState
		if currentState == "" {
			currentState = "unknown"
		}

		var stalledSince any
		if s, ok := parseLegacyTime(t.StalledSince); ok {
			stalledSince = s
		}

		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO torrents (hash, name, current_state, state_changed_at, stalled_since, first_seen_at, last_seen_at)
			VALUES (?, '', ?, ?, ?, ?, ?)`,
			hash,
			currentState,
			parseLegacyTimeOr(t.StateSince, now),
			stalledSince,
			parseLegacyTimeOr(t.FirstSeen, now),
			now.Format(time.DateTime),
		)
		if err != nil {
			return 0, errors.Wrapf(err, "import legacy torrent %s", hash)
		}

		hashes = append(hashes, hash)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit legacy import")
	}

	if err := db.verifyImportedHashes(ctx, hashes); err != nil {
		return 0, errors.Wrap(err, "verify legacy import")
	}

	backupPath, err := db.archiveLegacyFile(ctx, legacyPath)
	if err != nil {
		// The import itself succeeded. Keep the original rather than risk
		// losing the only copy.
		log.Warn().Err(err).Str("path", legacyPath).Msg("failed to archive legacy state file, leaving it in place")
		return len(hashes), nil
	}
	log.Info().Str("backup", backupPath).Msg("archived legacy state file")

	if err := os.Remove(legacyPath); err != nil {
		log.Warn().Err(err).Str("path", legacyPath).Msg("failed to remove legacy state file after import")
	} else {
		log.Info().Str("path", legacyPath).Msg("removed legacy state file after successful import")
	}

	return len(hashes), nil
}

// verifyImportedHashes confirms every imported hash is readable back from the
// torrents table before the legacy file is deleted.
func (db *DB) verifyImportedHashes(ctx context.Context, hashes []string) error {
	const chunkSize = 500

	for start := 0; start < len(hashes); start += chunkSize {
		end := start + chunkSize
		if end > len(hashes) {
			end = len(hashes)
		}
		chunk := hashes[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
		query := fmt.Sprintf("SELECT COUNT(*) FROM torrents WHERE hash IN (%s)", placeholders)

		args := make([]any, len(chunk))
		for i, h := range chunk {
			args[i] = h
		}

		var count int
		if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
			return errors.Wrap(err, "count imported torrents")
		}
		if count != len(chunk) {
			return errors.Errorf("expected %d imported torrents, found %d", len(chunk), count)
		}
	}

	return nil
}

// archiveLegacyFile writes a tar.gz copy of the legacy state file next to the
// database and returns its path.
func (db *DB) archiveLegacyFile(ctx context.Context, legacyPath string) (string, error) {
	backupPath := filepath.Join(
		filepath.Dir(legacyPath),
		fmt.Sprintf("legacy-state-%s.tar.gz", time.Now().UTC().Format("20060102T150405")),
	)

	files, err := archives.FilesFromDisk(ctx, nil, map[string]string{
		legacyPath: filepath.Base(legacyPath),
	})
	if err != nil {
		return "", errors.Wrap(err, "collect legacy state file")
	}

	out, err := os.Create(backupPath)
	if err != nil {
		return "", errors.Wrapf(err, "create backup archive %s", backupPath)
	}
	defer out.Close()

	format := archives.CompressedArchive{
		Compression: archives.Gz{},
		Archival:    archives.Tar{},
	}

	if err := format.Archive(ctx, out, files); err != nil {
		os.Remove(backupPath)
		return "", errors.Wrap(err, "write backup archive")
	}

	return backupPath, nil
}

// parseLegacyTime accepts the timestamp formats older releases wrote
// (RFC 3339 from the tracker loop, plain datetime from manual edits).
func parseLegacyTime(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, layout := range []string{time.RFC3339, time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.DateTime), true
		}
	}
	return "", false
}

func parseLegacyTimeOr(s string, fallback time.Time) string {
	if v, ok := parseLegacyTime(s); ok {
		return v
	}
	return fallback.UTC().Format(time.DateTime)
}
