// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/autobrr/sweeparr/internal/dbinterface"
)

// UnregisteredTorrent is one torrent whose trackers report it as gone.
type UnregisteredTorrent struct {
	Hash            string    `json:"hash"`
	Name            string    `json:"name,omitempty"`
	TrackerMessage  string    `json:"trackerMessage,omitempty"`
	FirstDetectedAt time.Time `json:"firstDetectedAt"`
	LastSeenAt      time.Time `json:"lastSeenAt"`
}

// UnregisteredStore tracks how long each torrent has been reported
// unregistered by its trackers, so deletion can wait out transient tracker
// hiccups. A nil db puts the store into degraded mode.
type UnregisteredStore struct {
	db dbinterface.Querier
}

func NewUnregisteredStore(db dbinterface.Querier) *UnregisteredStore {
	return &UnregisteredStore{db: db}
}

// Mark records an unregistered detection. The first detection time is
// preserved across repeat observations; only name, message and last seen
// refresh.
func (s *UnregisteredStore) Mark(ctx context.Context, hash, name, message string, now time.Time) error {
	normalized := normalizeInfoHash(hash)
	if normalized == "" {
		return errors.New("hash is required")
	}

	if s.db == nil {
		return nil
	}

	ts := formatStoreTime(now)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO unregistered (hash, name, tracker_message, first_detected_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash)
		DO UPDATE SET name = excluded.name, tracker_message = excluded.tracker_message, last_seen_at = excluded.last_seen_at
	`, normalized, name, message, ts, ts)
	return err
}

// Hours returns how long ago the torrent was first detected as unregistered,
// or nil if it has never been marked.
func (s *UnregisteredStore) Hours(ctx context.Context, hash string, now time.Time) (*float64, error) {
	if s.db == nil {
		return nil, nil
	}

	var firstDetected time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT first_detected_at FROM unregistered WHERE hash = ?
	`, normalizeInfoHash(hash)).Scan(&firstDetected)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	hours := now.UTC().Sub(firstDetected).Hours()
	if hours < 0 {
		hours = 0
	}
	return &hours, nil
}

// Clear drops the detection for a torrent whose trackers answer normally
// again. Clearing an unknown hash is a no-op.
func (s *UnregisteredStore) Clear(ctx context.Context, hash string) error {
	if s.db == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM unregistered WHERE hash = ?`, normalizeInfoHash(hash))
	return err
}

// GC removes detections for torrents absent from the current snapshot.
func (s *UnregisteredStore) GC(ctx context.Context, currentHashes []string) (int64, error) {
	if s.db == nil {
		return 0, nil
	}

	normalized := normalizeInfoHashList(currentHashes)
	if len(normalized) == 0 {
		return 0, nil
	}

	placeholders := buildPlaceholders(len(normalized))
	args := make([]any, len(normalized))
	for i, h := range normalized {
		args[i] = h
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM unregistered WHERE hash NOT IN (%s)
	`, placeholders), args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (s *UnregisteredStore) List(ctx context.Context) ([]*UnregisteredTorrent, error) {
	if s.db == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, name, tracker_message, first_detected_at, last_seen_at
		FROM unregistered
		ORDER BY first_detected_at, hash
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var torrents []*UnregisteredTorrent
	for rows.Next() {
		var t UnregisteredTorrent
		if err := rows.Scan(&t.Hash, &t.Name, &t.TrackerMessage, &t.FirstDetectedAt, &t.LastSeenAt); err != nil {
			return nil, err
		}
		torrents = append(torrents, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return torrents, nil
}

func (s *UnregisteredStore) Count(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, nil
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM unregistered`).Scan(&count)
	return count, err
}
