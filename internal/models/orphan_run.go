// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/autobrr/sweeparr/internal/dbinterface"
)

// Orphan run statuses.
const (
	OrphanRunRunning   = "running"
	OrphanRunCompleted = "completed"
	OrphanRunFailed    = "failed"
)

// OrphanRun is one recorded orphan scan.
type OrphanRun struct {
	ID             int64      `json:"id"`
	Status         string     `json:"status"`
	TriggeredBy    string     `json:"triggeredBy"`
	ScanPaths      []string   `json:"scanPaths"`
	FilesFound     int        `json:"filesFound"`
	FilesRemoved   int        `json:"filesRemoved"`
	DirsRemoved    int        `json:"dirsRemoved"`
	BytesReclaimed int64      `json:"bytesReclaimed"`
	DryRun         bool       `json:"dryRun"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// OrphanRunStore records orphan scan history. A nil db puts the store into
// degraded mode.
type OrphanRunStore struct {
	db dbinterface.Querier
}

func NewOrphanRunStore(db dbinterface.Querier) *OrphanRunStore {
	return &OrphanRunStore{db: db}
}

// StartRun records the beginning of a scan and returns its run ID. Returns 0
// in degraded mode.
func (s *OrphanRunStore) StartRun(ctx context.Context, triggeredBy string, scanPaths []string, dryRun bool, now time.Time) (int64, error) {
	if s.db == nil {
		return 0, nil
	}

	pathsJSON, err := json.Marshal(scanPaths)
	if err != nil {
		return 0, fmt.Errorf("marshal scan paths: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO orphan_runs (status, triggered_by, scan_paths, dry_run, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, OrphanRunRunning, triggeredBy, string(pathsJSON), dryRun, formatStoreTime(now))
	if err != nil {
		return 0, fmt.Errorf("insert orphan run: %w", err)
	}

	return res.LastInsertId()
}

// CompleteRun closes a run with its results.
func (s *OrphanRunStore) CompleteRun(ctx context.Context, runID int64, filesFound, filesRemoved, dirsRemoved int, bytesReclaimed int64, now time.Time) error {
	if s.db == nil || runID == 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE orphan_runs
		SET status = ?, files_found = ?, files_removed = ?, dirs_removed = ?, bytes_reclaimed = ?, completed_at = ?
		WHERE id = ?
	`, OrphanRunCompleted, filesFound, filesRemoved, dirsRemoved, bytesReclaimed, formatStoreTime(now), runID)
	return err
}

// FailRun closes a run with an error message.
func (s *OrphanRunStore) FailRun(ctx context.Context, runID int64, message string, now time.Time) error {
	if s.db == nil || runID == 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE orphan_runs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?
	`, OrphanRunFailed, message, formatStoreTime(now), runID)
	return err
}

func (s *OrphanRunStore) GetRun(ctx context.Context, runID int64) (*OrphanRun, error) {
	if s.db == nil {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, triggered_by, scan_paths, files_found, files_removed,
		       dirs_removed, bytes_reclaimed, dry_run, error_message, started_at, completed_at
		FROM orphan_runs
		WHERE id = ?
	`, runID)

	run, err := scanOrphanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first.
func (s *OrphanRunStore) ListRuns(ctx context.Context, limit int) ([]*OrphanRun, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, triggered_by, scan_paths, files_found, files_removed,
		       dirs_removed, bytes_reclaimed, dry_run, error_message, started_at, completed_at
		FROM orphan_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*OrphanRun
	for rows.Next() {
		run, err := scanOrphanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// PruneRuns drops all but the newest keep runs.
func (s *OrphanRunStore) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	if keep < 0 {
		keep = 0
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM orphan_runs
		WHERE id NOT IN (SELECT id FROM orphan_runs ORDER BY started_at DESC, id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func scanOrphanRun(scan func(...any) error) (*OrphanRun, error) {
	var run OrphanRun
	var pathsJSON sql.NullString
	var errorMessage sql.NullString
	var completedAt sql.NullTime

	err := scan(
		&run.ID,
		&run.Status,
		&run.TriggeredBy,
		&pathsJSON,
		&run.FilesFound,
		&run.FilesRemoved,
		&run.DirsRemoved,
		&run.BytesReclaimed,
		&run.DryRun,
		&errorMessage,
		&run.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if pathsJSON.Valid && pathsJSON.String != "" {
		if err := json.Unmarshal([]byte(pathsJSON.String), &run.ScanPaths); err != nil {
			return nil, fmt.Errorf("unmarshal scan paths: %w", err)
		}
	}
	if run.ScanPaths == nil {
		run.ScanPaths = []string{}
	}
	run.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	return &run, nil
}
