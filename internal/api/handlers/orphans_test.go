// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/sweeparr/internal/database"
	"github.com/autobrr/sweeparr/internal/models"
)

func setupOrphansRouter(t *testing.T) (http.Handler, *models.OrphanRunStore) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "orphans.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	store := models.NewOrphanRunStore(db)
	r := chi.NewRouter()
	NewOrphansHandler(store).RegisterRoutes(r)
	return r, store
}

func TestOrphansHandler_ListRuns(t *testing.T) {
	router, store := setupOrphansRouter(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)

	first, err := store.StartRun(ctx, "schedule", []string{"/downloads"}, false, base)
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(ctx, first, 9, 9, 2, 512, base.Add(time.Minute)))

	second, err := store.StartRun(ctx, "manual", []string{"/downloads"}, true, base.Add(time.Hour))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/orphans/runs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp OrphanRunListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 2, resp.Count)

	// Newest first.
	assert.Equal(t, second, resp.Runs[0].ID)
	assert.Equal(t, "manual", resp.Runs[0].TriggeredBy)
	assert.Equal(t, models.OrphanRunRunning, resp.Runs[0].Status)

	assert.Equal(t, first, resp.Runs[1].ID)
	assert.Equal(t, models.OrphanRunCompleted, resp.Runs[1].Status)
	assert.Equal(t, 9, resp.Runs[1].FilesRemoved)
	assert.Equal(t, int64(512), resp.Runs[1].BytesReclaimed)
}

func TestOrphansHandler_ListRunsLimit(t *testing.T) {
	router, store := setupOrphansRouter(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := store.StartRun(ctx, "schedule", nil, false, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/orphans/runs?limit=3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp OrphanRunListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Count)
}

func TestOrphansHandler_GetRun(t *testing.T) {
	router, store := setupOrphansRouter(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	id, err := store.StartRun(ctx, "manual", []string{"/downloads", "/seeds"}, true, now)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/orphans/runs/"+strconv.FormatInt(id, 10), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var run models.OrphanRun
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
	assert.Equal(t, id, run.ID)
	assert.Equal(t, []string{"/downloads", "/seeds"}, run.ScanPaths)
	assert.True(t, run.DryRun)
	assert.Nil(t, run.CompletedAt)
}

func TestOrphansHandler_GetRunNotFound(t *testing.T) {
	router, _ := setupOrphansRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/orphans/runs/424242", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrphansHandler_GetRunInvalidID(t *testing.T) {
	router, _ := setupOrphansRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/orphans/runs/not-a-number", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
