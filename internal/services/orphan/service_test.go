// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/sweeparr/internal/database"
	"github.com/autobrr/sweeparr/internal/domain"
	"github.com/autobrr/sweeparr/internal/metrics"
	"github.com/autobrr/sweeparr/internal/models"
)

func testService(t *testing.T, cfg *domain.Config) (*Service, *models.Stores) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "orphan.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	stores := models.NewStores(db)

	svc := NewService(func() domain.Config { return *cfg }, stores, nil, metrics.NewManager().Cycle())
	return svc, stores
}

func orphanConfig(scanDirs ...string) *domain.Config {
	cfg := domain.Defaults()
	cfg.Orphans.Enabled = true
	cfg.Orphans.ScanDirs = scanDirs
	cfg.Orphans.MinAgeHours = 1
	return &cfg
}

// seedScanDir lays out one claimed torrent and one stale orphan next to it.
func seedScanDir(t *testing.T, scanDir string) []qbt.Torrent {
	t.Helper()

	writeFile(t, filepath.Join(scanDir, "Film.2024", "film.mkv"), "payload")
	writeFile(t, filepath.Join(scanDir, "orphan.mkv"), "orphan")
	backdate(t, filepath.Join(scanDir, "orphan.mkv"), 2*time.Hour)

	return []qbt.Torrent{{
		Hash:        "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa01",
		Name:        "Film.2024",
		SavePath:    scanDir,
		ContentPath: filepath.Join(scanDir, "Film.2024"),
	}}
}

func TestRunIfDueRemovesOrphans(t *testing.T) {
	scanDir := t.TempDir()
	cfg := orphanConfig(scanDir)
	svc, stores := testService(t, cfg)
	torrents := seedScanDir(t, scanDir)

	svc.SetFileLister(func(_ context.Context, hash string) ([]string, error) {
		return []string{filepath.Join("Film.2024", "film.mkv")}, nil
	})

	files, dirs, bytes, err := svc.RunIfDue(context.Background(), torrents)
	require.NoError(t, err)
	assert.Equal(t, 1, files)
	assert.Equal(t, 0, dirs)
	assert.Equal(t, int64(6), bytes)

	_, err = os.Stat(filepath.Join(scanDir, "orphan.mkv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(scanDir, "Film.2024", "film.mkv"))
	assert.NoError(t, err)

	last, err := stores.Metadata.GetTime(context.Background(), models.MetaLastOrphanScan)
	require.NoError(t, err)
	assert.False(t, last.IsZero())

	runs, err := stores.OrphanRuns.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.OrphanRunCompleted, runs[0].Status)
	assert.Equal(t, "schedule", runs[0].TriggeredBy)
	assert.Equal(t, 1, runs[0].FilesFound)
	assert.Equal(t, 1, runs[0].FilesRemoved)
	assert.Equal(t, int64(6), runs[0].BytesReclaimed)
	assert.False(t, runs[0].DryRun)
}

func TestRunIfDueRespectsInterval(t *testing.T) {
	scanDir := t.TempDir()
	cfg := orphanConfig(scanDir)
	svc, stores := testService(t, cfg)
	torrents := seedScanDir(t, scanDir)

	require.NoError(t, stores.Metadata.SetTime(context.Background(), models.MetaLastOrphanScan, time.Now().Add(-time.Hour)))

	files, dirs, bytes, err := svc.RunIfDue(context.Background(), torrents)
	require.NoError(t, err)
	assert.Zero(t, files)
	assert.Zero(t, dirs)
	assert.Zero(t, bytes)

	_, err = os.Stat(filepath.Join(scanDir, "orphan.mkv"))
	assert.NoError(t, err, "orphan must survive a skipped scan")

	runs, err := stores.OrphanRuns.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunIfDueAfterIntervalElapsed(t *testing.T) {
	scanDir := t.TempDir()
	cfg := orphanConfig(scanDir)
	svc, stores := testService(t, cfg)
	torrents := seedScanDir(t, scanDir)

	stale := time.Now().Add(-time.Duration(cfg.Orphans.IntervalHours+1) * time.Hour)
	require.NoError(t, stores.Metadata.SetTime(context.Background(), models.MetaLastOrphanScan, stale))

	files, _, _, err := svc.RunIfDue(context.Background(), torrents)
	require.NoError(t, err)
	assert.Equal(t, 1, files)
}

func TestRunNowBypassesInterval(t *testing.T) {
	scanDir := t.TempDir()
	cfg := orphanConfig(scanDir)
	svc, stores := testService(t, cfg)
	torrents := seedScanDir(t, scanDir)

	require.NoError(t, stores.Metadata.SetTime(context.Background(), models.MetaLastOrphanScan, time.Now()))

	files, _, _, err := svc.RunNow(context.Background(), torrents, false)
	require.NoError(t, err)
	assert.Equal(t, 1, files)

	runs, err := stores.OrphanRuns.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "manual", runs[0].TriggeredBy)
}

func TestRunNowDisabled(t *testing.T) {
	cfg := domain.Defaults()
	svc, _ := testService(t, &cfg)

	_, _, _, err := svc.RunNow(context.Background(), nil, false)
	assert.ErrorContains(t, err, "disabled")
}

func TestRunIfDueDisabledIsSilent(t *testing.T) {
	cfg := domain.Defaults()
	svc, stores := testService(t, &cfg)

	files, dirs, bytes, err := svc.RunIfDue(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, files+dirs)
	assert.Zero(t, bytes)

	runs, err := stores.OrphanRuns.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestDryRunTouchesNothing(t *testing.T) {
	scanDir := t.TempDir()
	cfg := orphanConfig(scanDir)
	cfg.Behavior.DryRun = true
	svc, stores := testService(t, cfg)
	torrents := seedScanDir(t, scanDir)

	files, _, bytes, err := svc.RunIfDue(context.Background(), torrents)
	require.NoError(t, err)
	assert.Equal(t, 1, files)
	assert.Equal(t, int64(6), bytes)

	_, err = os.Stat(filepath.Join(scanDir, "orphan.mkv"))
	assert.NoError(t, err, "dry run must not remove anything")

	runs, err := stores.OrphanRuns.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].DryRun)
	assert.Equal(t, 1, runs[0].FilesRemoved, "dry run reports what it would have removed")
}

func TestEmptyActiveSetSkipsScan(t *testing.T) {
	scanDir := t.TempDir()
	cfg := orphanConfig(scanDir)
	svc, stores := testService(t, cfg)

	writeFile(t, filepath.Join(scanDir, "orphan.mkv"), "orphan")
	backdate(t, filepath.Join(scanDir, "orphan.mkv"), 2*time.Hour)

	files, dirs, _, err := svc.RunIfDue(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, files+dirs)

	_, err = os.Stat(filepath.Join(scanDir, "orphan.mkv"))
	assert.NoError(t, err, "nothing may be deleted when the daemon reports no torrents")

	// The skip does not count as a scan, so the next cycle retries.
	last, err := stores.Metadata.GetTime(context.Background(), models.MetaLastOrphanScan)
	require.NoError(t, err)
	assert.True(t, last.IsZero())
}

func TestNamespaceMismatchRefusesToDelete(t *testing.T) {
	scanDir := t.TempDir()
	elsewhere := t.TempDir()
	cfg := orphanConfig(scanDir)
	svc, stores := testService(t, cfg)

	writeFile(t, filepath.Join(scanDir, "orphan.mkv"), "orphan")
	backdate(t, filepath.Join(scanDir, "orphan.mkv"), 2*time.Hour)

	// All torrents live outside every scan directory, so the scan would
	// classify the entire tree as orphaned.
	torrents := []qbt.Torrent{{
		Hash:        "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb02",
		Name:        "Elsewhere",
		SavePath:    elsewhere,
		ContentPath: filepath.Join(elsewhere, "Elsewhere"),
	}}

	_, _, _, err := svc.RunIfDue(context.Background(), torrents)
	assert.ErrorIs(t, err, ErrNamespaceMismatch)

	_, err = os.Stat(filepath.Join(scanDir, "orphan.mkv"))
	assert.NoError(t, err)

	runs, err := stores.OrphanRuns.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.OrphanRunFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].ErrorMessage)
}

func TestRecycleDirStagingAndAutoIgnore(t *testing.T) {
	scanDir := t.TempDir()
	cfg := orphanConfig(scanDir)
	cfg.Orphans.RecycleDir = filepath.Join(scanDir, ".recycle")
	svc, _ := testService(t, cfg)
	torrents := seedScanDir(t, scanDir)

	files, _, _, err := svc.RunNow(context.Background(), torrents, false)
	require.NoError(t, err)
	assert.Equal(t, 1, files)

	_, err = os.Stat(filepath.Join(scanDir, "orphan.mkv"))
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(cfg.Orphans.RecycleDir)
	require.NoError(t, err)
	// Payload plus sidecar.
	assert.Len(t, entries, 2)

	// A second scan must not reclaim the recycle directory contents even
	// though it sits inside a scan directory and holds stale files.
	files, dirs, _, err := svc.RunNow(context.Background(), torrents, false)
	require.NoError(t, err)
	assert.Zero(t, files+dirs)

	entries, err = os.ReadDir(cfg.Orphans.RecycleDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFileListerFailureKeepsContentProtection(t *testing.T) {
	scanDir := t.TempDir()
	cfg := orphanConfig(scanDir)
	svc, _ := testService(t, cfg)
	torrents := seedScanDir(t, scanDir)

	svc.SetFileLister(func(_ context.Context, _ string) ([]string, error) {
		return nil, errors.New("daemon timeout")
	})

	files, _, _, err := svc.RunNow(context.Background(), torrents, false)
	require.NoError(t, err)
	assert.Equal(t, 1, files)

	// The listing failure degrades to content-path protection, it does not
	// expose the torrent's data.
	_, err = os.Stat(filepath.Join(scanDir, "Film.2024", "film.mkv"))
	assert.NoError(t, err)
}

func TestMissingScanDirSkipped(t *testing.T) {
	scanDir := t.TempDir()
	cfg := orphanConfig(filepath.Join(scanDir, "does-not-exist"), scanDir)
	svc, _ := testService(t, cfg)
	torrents := seedScanDir(t, scanDir)

	files, _, _, err := svc.RunNow(context.Background(), torrents, false)
	require.NoError(t, err)
	assert.Equal(t, 1, files)
}

func TestOrphanedDirReclaimedAsUnit(t *testing.T) {
	scanDir := t.TempDir()
	cfg := orphanConfig(scanDir)
	svc, stores := testService(t, cfg)
	torrents := seedScanDir(t, scanDir)

	dead := filepath.Join(scanDir, "Dead.Release")
	writeFile(t, filepath.Join(dead, "part1.bin"), "aaaa")
	writeFile(t, filepath.Join(dead, "sub", "part2.bin"), "bb")
	backdate(t, dead, 3*time.Hour)

	files, dirs, bytes, err := svc.RunNow(context.Background(), torrents, false)
	require.NoError(t, err)
	assert.Equal(t, 1, files, "the stale orphan file")
	assert.Equal(t, 1, dirs, "the dead release directory as one unit")
	assert.Equal(t, int64(6+6), bytes)

	_, err = os.Stat(dead)
	assert.True(t, os.IsNotExist(err))

	runs, err := stores.OrphanRuns.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].DirsRemoved)
}

func TestConcurrentScanRefused(t *testing.T) {
	scanDir := t.TempDir()
	cfg := orphanConfig(scanDir)
	svc, _ := testService(t, cfg)

	svc.runMu.Lock()
	defer svc.runMu.Unlock()

	_, _, _, err := svc.RunNow(context.Background(), []qbt.Torrent{{Hash: "cc", SavePath: scanDir, ContentPath: filepath.Join(scanDir, "x")}}, false)
	assert.ErrorIs(t, err, ErrScanInProgress)
}
