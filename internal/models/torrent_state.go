// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/autobrr/sweeparr/internal/dbinterface"
)

// stateRetention bounds how long a row survives without being seen in a
// snapshot, protecting against state left behind by degraded runs.
const stateRetention = 30 * 24 * time.Hour

// TorrentState is one tracked torrent's lifecycle row.
type TorrentState struct {
	Hash           string     `json:"hash"`
	Name           string     `json:"name,omitempty"`
	CurrentState   string     `json:"currentState"`
	PreviousState  string     `json:"previousState,omitempty"`
	StateChangedAt time.Time  `json:"stateChangedAt"`
	StalledSince   *time.Time `json:"stalledSince,omitempty"`
	FirstSeenAt    time.Time  `json:"firstSeenAt"`
	LastSeenAt     time.Time  `json:"lastSeenAt"`
}

// TorrentStateStore tracks per-torrent lifecycle state between runs. A nil
// db puts the store into degraded mode: writes succeed without persisting
// and reads return zero values.
type TorrentStateStore struct {
	db dbinterface.Querier
}

func NewTorrentStateStore(db dbinterface.Querier) *TorrentStateStore {
	return &TorrentStateStore{db: db}
}

// Upsert records one observation of a torrent. A state change moves
// current_state to previous_state and restarts the state clock; entering a
// stalled state starts the stall clock, leaving one clears it. Observations
// with an unchanged state only refresh name and last_seen_at.
func (s *TorrentStateStore) Upsert(ctx context.Context, hash, name, state string, stalled bool, now time.Time) error {
	if s.db == nil {
		return nil
	}

	hash = normalizeInfoHash(hash)
	if hash == "" {
		return errors.New("hash is required")
	}

	ts := formatStoreTime(now)

	var currentState string
	var stalledSince sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT current_state, stalled_since FROM torrents WHERE hash = ?
	`, hash).Scan(&currentState, &stalledSince)

	if errors.Is(err, sql.ErrNoRows) {
		var since any
		if stalled {
			since = ts
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO torrents (hash, name, current_state, state_changed_at, stalled_since, first_seen_at, last_seen_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, hash, name, state, ts, since, ts, ts)
		return err
	}
	if err != nil {
		return err
	}

	if currentState == state {
		_, err = s.db.ExecContext(ctx, `
			UPDATE torrents SET name = ?, last_seen_at = ? WHERE hash = ?
		`, name, ts, hash)
		return err
	}

	switch {
	case stalled && !stalledSince.Valid:
		_, err = s.db.ExecContext(ctx, `
			UPDATE torrents
			SET name = ?, previous_state = current_state, current_state = ?, state_changed_at = ?, stalled_since = ?, last_seen_at = ?
			WHERE hash = ?
		`, name, state, ts, ts, ts, hash)
	case !stalled && stalledSince.Valid:
		_, err = s.db.ExecContext(ctx, `
			UPDATE torrents
			SET name = ?, previous_state = current_state, current_state = ?, state_changed_at = ?, stalled_since = NULL, last_seen_at = ?
			WHERE hash = ?
		`, name, state, ts, ts, hash)
	default:
		_, err = s.db.ExecContext(ctx, `
			UPDATE torrents
			SET name = ?, previous_state = current_state, current_state = ?, state_changed_at = ?, last_seen_at = ?
			WHERE hash = ?
		`, name, state, ts, ts, hash)
	}

	return err
}

func (s *TorrentStateStore) Get(ctx context.Context, hash string) (*TorrentState, error) {
	if s.db == nil {
		return nil, sql.ErrNoRows
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT hash, name, current_state, previous_state, state_changed_at, stalled_since, first_seen_at, last_seen_at
		FROM torrents
		WHERE hash = ?
	`, normalizeInfoHash(hash))

	var t TorrentState
	var previousState sql.NullString
	var stalledSince sql.NullTime
	if err := row.Scan(&t.Hash, &t.Name, &t.CurrentState, &previousState, &t.StateChangedAt, &stalledSince, &t.FirstSeenAt, &t.LastSeenAt); err != nil {
		return nil, err
	}

	t.PreviousState = previousState.String
	if stalledSince.Valid {
		since := stalledSince.Time
		t.StalledSince = &since
	}

	return &t, nil
}

// StalledDurationDays returns how long the torrent has been continuously
// stalled, in days. Zero for unknown hashes and torrents that are not
// currently stalled, including immediately after a transition out of the
// stalled state.
func (s *TorrentStateStore) StalledDurationDays(ctx context.Context, hash string, now time.Time) (float64, error) {
	if s.db == nil {
		return 0, nil
	}

	var stalledSince sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT stalled_since FROM torrents WHERE hash = ?
	`, normalizeInfoHash(hash)).Scan(&stalledSince)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !stalledSince.Valid {
		return 0, nil
	}

	days := now.UTC().Sub(stalledSince.Time).Hours() / 24
	if days < 0 {
		return 0, nil
	}
	return days, nil
}

// GC removes rows for torrents absent from the current snapshot, plus any
// row not seen within the retention window. An empty snapshot is
// indistinguishable from a failed listing and never wipes the table.
func (s *TorrentStateStore) GC(ctx context.Context, currentHashes []string, now time.Time) (int64, error) {
	if s.db == nil {
		return 0, nil
	}

	normalized := normalizeInfoHashList(currentHashes)
	if len(normalized) == 0 {
		return 0, nil
	}

	placeholders := buildPlaceholders(len(normalized))
	cutoff := formatStoreTime(now.Add(-stateRetention))

	args := make([]any, 0, len(normalized)+1)
	for _, h := range normalized {
		args = append(args, h)
	}
	args = append(args, cutoff)

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM torrents WHERE hash NOT IN (%s) OR last_seen_at < ?
	`, placeholders), args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (s *TorrentStateStore) Count(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, nil
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM torrents`).Scan(&count)
	return count, err
}

// formatStoreTime renders timestamps the way every store writes and compares
// them: second precision, UTC, matching SQLite's CURRENT_TIMESTAMP.
func formatStoreTime(t time.Time) string {
	return t.UTC().Format(time.DateTime)
}

func normalizeInfoHash(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func normalizeInfoHashList(values []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(values))
	for _, value := range values {
		normalized := normalizeInfoHash(value)
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func buildPlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	var sb strings.Builder
	for i := range count {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('?')
	}
	return sb.String()
}
