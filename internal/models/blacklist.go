// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/autobrr/sweeparr/internal/dbinterface"
)

// BlacklistEntry protects one torrent from every deletion path.
type BlacklistEntry struct {
	Hash      string    `json:"hash"`
	Name      string    `json:"name,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// BlacklistStore holds the operator's protect list. A nil db puts the store
// into degraded mode: writes succeed without persisting and reads return
// zero values, so nothing is ever protected.
type BlacklistStore struct {
	db dbinterface.Querier
}

func NewBlacklistStore(db dbinterface.Querier) *BlacklistStore {
	return &BlacklistStore{db: db}
}

// Add upserts a single entry. Re-adding a hash refreshes its name and reason.
func (s *BlacklistStore) Add(ctx context.Context, entry *BlacklistEntry) error {
	if entry == nil {
		return errors.New("entry is nil")
	}

	normalized := normalizeInfoHash(entry.Hash)
	if normalized == "" {
		return errors.New("hash is required")
	}

	if s.db == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blacklist (hash, name, reason)
		VALUES (?, ?, ?)
		ON CONFLICT(hash)
		DO UPDATE SET name = excluded.name, reason = excluded.reason
	`, normalized, entry.Name, entry.Reason)
	return err
}

// AddMany upserts a batch of entries in a single statement. Duplicate hashes
// within the batch collapse to the last occurrence. Returns the number of
// rows written.
func (s *BlacklistStore) AddMany(ctx context.Context, entries []*BlacklistEntry) (int64, error) {
	valid := make([]*BlacklistEntry, 0, len(entries))
	seen := make(map[string]int)
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		normalized := normalizeInfoHash(entry.Hash)
		if normalized == "" {
			continue
		}
		if idx, exists := seen[normalized]; exists {
			valid[idx] = &BlacklistEntry{Hash: normalized, Name: entry.Name, Reason: entry.Reason}
			continue
		}
		seen[normalized] = len(valid)
		valid = append(valid, &BlacklistEntry{Hash: normalized, Name: entry.Name, Reason: entry.Reason})
	}

	if len(valid) == 0 || s.db == nil {
		return 0, nil
	}

	query := dbinterface.BuildQueryWithPlaceholders(`
		INSERT INTO blacklist (hash, name, reason)
		VALUES %s
		ON CONFLICT(hash)
		DO UPDATE SET name = excluded.name, reason = excluded.reason
	`, 3, len(valid))

	args := make([]any, 0, len(valid)*3)
	for _, entry := range valid {
		args = append(args, entry.Hash, entry.Name, entry.Reason)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (s *BlacklistStore) Remove(ctx context.Context, hash string) error {
	normalized := normalizeInfoHash(hash)
	if normalized == "" {
		return errors.New("hash is required")
	}

	if s.db == nil {
		return nil
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE hash = ?`, normalized)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (s *BlacklistStore) List(ctx context.Context) ([]*BlacklistEntry, error) {
	if s.db == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, name, reason, created_at
		FROM blacklist
		ORDER BY created_at DESC, hash
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*BlacklistEntry
	for rows.Next() {
		var entry BlacklistEntry
		if err := rows.Scan(&entry.Hash, &entry.Name, &entry.Reason, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (s *BlacklistStore) Clear(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM blacklist`)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (s *BlacklistStore) Contains(ctx context.Context, hash string) (bool, error) {
	if s.db == nil {
		return false, nil
	}

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM blacklist WHERE hash = ?`, normalizeInfoHash(hash)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// Hashes returns the full protect set for one classification pass, avoiding
// a per-torrent query.
func (s *BlacklistStore) Hashes(ctx context.Context) (map[string]struct{}, error) {
	if s.db == nil {
		return map[string]struct{}{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT hash FROM blacklist`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[string]struct{})
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		hashes[hash] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return hashes, nil
}

func (s *BlacklistStore) Count(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, nil
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blacklist`).Scan(&count)
	return count, err
}
