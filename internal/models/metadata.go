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

// Metadata keys used by the services.
const (
	MetaLastOrphanScan = "last_orphan_scan"
	MetaLastCleanupRun = "last_cleanup_run"
)

// MetadataStore is a small key/value table for scheduler bookkeeping such as
// the last orphan scan time. A nil db puts the store into degraded mode.
type MetadataStore struct {
	db dbinterface.Querier
}

func NewMetadataStore(db dbinterface.Querier) *MetadataStore {
	return &MetadataStore{db: db}
}

// Get returns the stored value, or fallback when the key is absent.
func (s *MetadataStore) Get(ctx context.Context, key, fallback string) (string, error) {
	if s.db == nil {
		return fallback, nil
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return fallback, err
	}
	return value, nil
}

func (s *MetadataStore) Set(ctx context.Context, key, value string, now time.Time) error {
	if key == "" {
		return errors.New("key is required")
	}

	if s.db == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, formatStoreTime(now))
	return err
}

// GetTime reads a timestamp value. The zero time is returned when the key is
// absent or holds an unparseable value.
func (s *MetadataStore) GetTime(ctx context.Context, key string) (time.Time, error) {
	value, err := s.Get(ctx, key, "")
	if err != nil || value == "" {
		return time.Time{}, err
	}

	t, err := time.ParseInLocation(time.DateTime, value, time.UTC)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

func (s *MetadataStore) SetTime(ctx context.Context, key string, t time.Time) error {
	return s.Set(ctx, key, formatStoreTime(t), t)
}
