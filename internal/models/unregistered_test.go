// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/sweeparr/internal/database"
	"github.com/autobrr/sweeparr/internal/models"
	"github.com/autobrr/sweeparr/internal/testdb"
)

func setupUnregisteredTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(testdb.PathFromTemplate(t, "models", "unregistered.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}

func TestUnregisteredStore_MarkPreservesFirstDetection(t *testing.T) {
	db := setupUnregisteredTestDB(t)
	ctx := context.Background()
	store := models.NewUnregisteredStore(db)

	hash := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb1"
	t0 := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.Mark(ctx, hash, "gone", "Unregistered torrent", t0))

	hours, err := store.Hours(ctx, hash, t0.Add(6*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, hours)
	assert.InDelta(t, 6.0, *hours, 0.01)

	// A later observation refreshes the message but not the first detection.
	t1 := t0.Add(12 * time.Hour)
	require.NoError(t, store.Mark(ctx, hash, "gone", "torrent not found", t1))

	hours, err = store.Hours(ctx, hash, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, hours)
	assert.InDelta(t, 24.0, *hours, 0.01)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "torrent not found", list[0].TrackerMessage)
	assert.WithinDuration(t, t0, list[0].FirstDetectedAt, time.Second)
	assert.WithinDuration(t, t1, list[0].LastSeenAt, time.Second)
}

func TestUnregisteredStore_HoursUnknownHash(t *testing.T) {
	db := setupUnregisteredTestDB(t)
	ctx := context.Background()
	store := models.NewUnregisteredStore(db)

	hours, err := store.Hours(ctx, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb2", time.Now())
	require.NoError(t, err)
	assert.Nil(t, hours)
}

func TestUnregisteredStore_ClearIsIdempotent(t *testing.T) {
	db := setupUnregisteredTestDB(t)
	ctx := context.Background()
	store := models.NewUnregisteredStore(db)

	hash := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb3"
	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.Mark(ctx, hash, "gone", "Unregistered torrent", now))

	require.NoError(t, store.Clear(ctx, hash))
	require.NoError(t, store.Clear(ctx, hash))

	hours, err := store.Hours(ctx, hash, now)
	require.NoError(t, err)
	assert.Nil(t, hours)
}

func TestUnregisteredStore_GC(t *testing.T) {
	db := setupUnregisteredTestDB(t)
	ctx := context.Background()
	store := models.NewUnregisteredStore(db)

	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.Mark(ctx, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb4", "kept", "dead", now))
	require.NoError(t, store.Mark(ctx, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb5", "gone", "dead", now))

	// An empty snapshot must not wipe the table.
	removed, err := store.GC(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = store.GC(ctx, []string{"BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB4"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUnregisteredStore_Degraded(t *testing.T) {
	store := models.NewUnregisteredStore(nil)
	ctx := context.Background()

	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.Mark(ctx, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb6", "x", "dead", now))

	hours, err := store.Hours(ctx, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb6", now)
	require.NoError(t, err)
	assert.Nil(t, hours)
}
