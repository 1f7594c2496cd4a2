// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package orphan reconciles the filesystem against the daemon: anything under
// a scan directory that no active torrent accounts for is removed or staged
// into a recycle directory.
package orphan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/domain"
	"github.com/autobrr/sweeparr/internal/metrics"
	"github.com/autobrr/sweeparr/internal/models"
	"github.com/autobrr/sweeparr/internal/mover"
	"github.com/autobrr/sweeparr/internal/services/notifications"
)

const defaultIntervalHours = 168

var (
	// ErrScanInProgress is returned when a scan is requested while another
	// one is still walking the filesystem.
	ErrScanInProgress = errors.New("orphan scan already in progress")

	// ErrNamespaceMismatch is returned when no scan directory overlaps any
	// active torrent path. Deleting in that state would wipe the scan dirs
	// wholesale, so the run refuses instead.
	ErrNamespaceMismatch = errors.New("scan directories share no namespace with any active torrent path")
)

// FileLister resolves a torrent's file paths, relative to its save path.
type FileLister func(ctx context.Context, hash string) ([]string, error)

// Service owns orphan reconciliation. It is driven on the cleanup schedule
// through RunIfDue and on demand through RunNow.
type Service struct {
	configFn func() domain.Config
	stores   *models.Stores
	notifier notifications.Notifier
	cycle    *metrics.CycleMetrics
	mover    *mover.Mover

	mu      sync.Mutex
	filesFn FileLister

	runMu sync.Mutex
	now   func() time.Time
}

func NewService(configFn func() domain.Config, stores *models.Stores, notifier notifications.Notifier, cycle *metrics.CycleMetrics) *Service {
	return &Service{
		configFn: configFn,
		stores:   stores,
		notifier: notifier,
		cycle:    cycle,
		mover:    mover.New(),
		now:      time.Now,
	}
}

// SetFileLister wires the per-torrent file listing used to build the active
// path set. Without one, only content paths protect torrent data.
func (s *Service) SetFileLister(fn FileLister) {
	s.mu.Lock()
	s.filesFn = fn
	s.mu.Unlock()
}

// RunIfDue runs a scan when orphan cleanup is enabled and the configured
// interval has elapsed since the last one. Returns files removed, directories
// removed, and bytes reclaimed.
func (s *Service) RunIfDue(ctx context.Context, torrents []qbt.Torrent) (int, int, int64, error) {
	cfg := s.configFn()
	o := cfg.Orphans
	if !o.Enabled || len(o.ScanDirs) == 0 {
		return 0, 0, 0, nil
	}

	interval := o.IntervalHours
	if interval <= 0 {
		interval = defaultIntervalHours
	}

	last, err := s.stores.Metadata.GetTime(ctx, models.MetaLastOrphanScan)
	if err != nil {
		log.Warn().Err(err).Msg("orphan: could not read last scan time")
	}
	if !last.IsZero() && s.now().Sub(last) < time.Duration(interval)*time.Hour {
		log.Debug().
			Time("lastScan", last).
			Int("intervalHours", interval).
			Msg("orphan: scan not due yet")
		return 0, 0, 0, nil
	}

	return s.run(ctx, torrents, o, cfg.Behavior.DryRun, "schedule")
}

// RunNow runs a scan immediately, bypassing the interval gate.
func (s *Service) RunNow(ctx context.Context, torrents []qbt.Torrent, dryRun bool) (int, int, int64, error) {
	o := s.configFn().Orphans
	if !o.Enabled {
		return 0, 0, 0, errors.New("orphan scanning is disabled")
	}
	if len(o.ScanDirs) == 0 {
		return 0, 0, 0, errors.New("no orphan scan directories configured")
	}
	return s.run(ctx, torrents, o, dryRun, "manual")
}

func (s *Service) run(ctx context.Context, torrents []qbt.Torrent, o domain.OrphanConfig, dryRun bool, trigger string) (int, int, int64, error) {
	if !s.runMu.TryLock() {
		return 0, 0, 0, ErrScanInProgress
	}
	defer s.runMu.Unlock()

	started := s.now()
	manual := trigger == "manual"

	runID, err := s.stores.OrphanRuns.StartRun(ctx, trigger, o.ScanDirs, dryRun, started)
	if err != nil {
		log.Warn().Err(err).Msg("orphan: could not record scan start")
	}

	log.Info().
		Strs("scanDirs", o.ScanDirs).
		Int("torrents", len(torrents)).
		Bool("dryRun", dryRun).
		Str("trigger", trigger).
		Msg("orphan: starting scan")

	active := s.buildActiveSet(ctx, torrents)
	if active.Len() == 0 {
		log.Warn().Msg("orphan: no active torrent paths found, skipping scan")
		s.completeRun(ctx, runID, 0, 0, 0, 0)
		return 0, 0, 0, nil
	}

	ignore, err := NormalizeIgnorePaths(o.IgnorePaths)
	if err != nil {
		return s.fail(ctx, runID, manual, fmt.Errorf("ignore paths: %w", err))
	}

	var recycler *Recycler
	if o.RecycleDir != "" {
		recycler = NewRecycler(o.RecycleDir, o.RecycleRetentionDays, s.mover)
		recycler.now = s.now
		ignore = append(ignore, filepath.Clean(o.RecycleDir))
	}

	if !scanDirsOverlap(o.ScanDirs, active) {
		log.Error().
			Strs("scanDirs", o.ScanDirs).
			Int("activePaths", active.Len()).
			Msg("orphan: refusing to delete, scan directories do not overlap torrent paths")
		return s.fail(ctx, runID, manual, ErrNamespaceMismatch)
	}

	minAge := time.Duration(o.MinAgeHours * float64(time.Hour))
	var candidates []Candidate
	for _, dir := range o.ScanDirs {
		root := filepath.Clean(dir)

		info, err := os.Stat(root)
		if err != nil {
			log.Warn().Err(err).Str("dir", root).Msg("orphan: scan directory not accessible, skipping")
			continue
		}
		if !info.IsDir() {
			log.Warn().Str("dir", root).Msg("orphan: scan path is not a directory, skipping")
			continue
		}

		found, err := walkScanDir(ctx, root, active, ignore, minAge, s.now())
		if err != nil {
			if ctx.Err() != nil {
				return s.fail(ctx, runID, manual, ctx.Err())
			}
			log.Error().Err(err).Str("dir", root).Msg("orphan: error scanning directory")
			continue
		}
		candidates = append(candidates, found...)
	}

	files, dirs, total := summarize(candidates)
	log.Info().
		Int("orphanFiles", files).
		Int("orphanDirs", dirs).
		Str("totalSize", humanize.IBytes(uint64(total))).
		Msg("orphan: scan complete")

	if len(candidates) == 0 {
		s.completeRun(ctx, runID, 0, 0, 0, 0)
		s.recordScanTime(ctx, started)
		s.cycle.ObserveOrphanScan(0, 0, 0, false)
		return 0, 0, 0, nil
	}

	if dryRun {
		for _, c := range candidates {
			s.logCandidate(c, true)
		}
		s.completeRun(ctx, runID, len(candidates), files, dirs, total)
		s.recordScanTime(ctx, started)
		s.cycle.ObserveOrphanScan(files, dirs, total, false)
		if manual {
			s.notifyCompleted(runID, files, dirs, total, true)
		}
		return files, dirs, total, nil
	}

	removedFiles, removedDirs, reclaimed, failed := s.remove(candidates, recycler)
	if recycler != nil {
		recycler.Prune()
	}
	if failed > 0 {
		log.Warn().Int("failed", failed).Msg("orphan: some orphans could not be removed")
	}

	log.Info().
		Int("filesRemoved", removedFiles).
		Int("dirsRemoved", removedDirs).
		Str("reclaimed", humanize.IBytes(uint64(reclaimed))).
		Msg("orphan: removal complete")

	s.completeRun(ctx, runID, len(candidates), removedFiles, removedDirs, reclaimed)
	s.recordScanTime(ctx, started)
	s.cycle.ObserveOrphanScan(removedFiles, removedDirs, reclaimed, false)
	if manual {
		s.notifyCompleted(runID, removedFiles, removedDirs, reclaimed, false)
	}
	return removedFiles, removedDirs, reclaimed, nil
}

// buildActiveSet collects every path the daemon accounts for: each torrent's
// content path and its files, plus intermediate directories up to the save
// path. Per-torrent listing failures degrade to content-path protection only.
func (s *Service) buildActiveSet(ctx context.Context, torrents []qbt.Torrent) *PathSet {
	s.mu.Lock()
	filesFn := s.filesFn
	s.mu.Unlock()

	if filesFn == nil {
		log.Warn().Msg("orphan: no file lister wired, protecting content paths only")
	}

	set := NewPathSet()
	for i := range torrents {
		t := &torrents[i]
		savePath := normalizePath(t.SavePath)

		if t.ContentPath != "" {
			set.AddWithAncestors(t.ContentPath, savePath)
		}

		if filesFn == nil || t.Hash == "" {
			continue
		}
		rel, err := filesFn(ctx, t.Hash)
		if err != nil {
			log.Warn().Err(err).Str("hash", t.Hash).Str("name", t.Name).Msg("orphan: could not list torrent files")
			continue
		}
		for _, r := range rel {
			if r == "" {
				continue
			}
			set.AddWithAncestors(filepath.Join(savePath, r), savePath)
		}
	}
	return set
}

func (s *Service) remove(candidates []Candidate, recycler *Recycler) (files, dirs int, reclaimed int64, failed int) {
	for _, c := range candidates {
		if _, err := os.Lstat(c.Path); err != nil {
			if os.IsNotExist(err) {
				log.Debug().Str("path", c.Path).Msg("orphan: path already gone, skipping")
				continue
			}
		}

		s.logCandidate(c, false)

		switch {
		case recycler != nil:
			result := recycler.Stage(c)
			if !result.Success {
				failed++
				for _, fe := range result.Errors {
					log.Error().Str("file", fe.Path).Str("reason", fe.Reason).Msg("orphan: recycle failed")
				}
				continue
			}
		case c.Dir:
			if err := os.RemoveAll(c.Path); err != nil {
				log.Error().Err(err).Str("path", c.Path).Msg("orphan: could not remove directory")
				failed++
				continue
			}
		default:
			if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
				log.Error().Err(err).Str("path", c.Path).Msg("orphan: could not remove file")
				failed++
				continue
			}
		}

		if c.Dir {
			dirs++
		} else {
			files++
		}
		reclaimed += c.Size
	}
	return files, dirs, reclaimed, failed
}

// logCandidate records one orphan before it is touched. Stray .torrent files
// get their metadata name decoded so the audit trail says what they were.
func (s *Service) logCandidate(c Candidate, dryRun bool) {
	ev := log.Info().
		Str("path", c.Path).
		Str("size", humanize.IBytes(uint64(c.Size))).
		Bool("dir", c.Dir)
	if name, ok := torrentFileName(c.Path); ok {
		ev = ev.Str("torrentName", name)
	}
	if dryRun {
		ev.Msg("orphan: would remove")
		return
	}
	ev.Msg("orphan: removing")
}

func (s *Service) completeRun(ctx context.Context, runID int64, found, files, dirs int, bytes int64) {
	if runID == 0 {
		return
	}
	if err := s.stores.OrphanRuns.CompleteRun(ctx, runID, found, files, dirs, bytes, s.now()); err != nil {
		log.Warn().Err(err).Int64("runID", runID).Msg("orphan: could not record scan completion")
	}
}

func (s *Service) recordScanTime(ctx context.Context, started time.Time) {
	if err := s.stores.Metadata.SetTime(ctx, models.MetaLastOrphanScan, started); err != nil {
		log.Warn().Err(err).Msg("orphan: could not record scan time")
	}
}

func (s *Service) fail(ctx context.Context, runID int64, manual bool, err error) (int, int, int64, error) {
	log.Error().Err(err).Msg("orphan: scan failed")
	if runID != 0 {
		if ferr := s.stores.OrphanRuns.FailRun(ctx, runID, err.Error(), s.now()); ferr != nil {
			log.Warn().Err(ferr).Int64("runID", runID).Msg("orphan: could not record scan failure")
		}
	}
	s.cycle.ObserveOrphanScan(0, 0, 0, true)
	if manual && s.notifier != nil {
		s.notifier.Notify(notifications.Event{
			Type:         notifications.EventOrphanScanFailed,
			OrphanRunID:  runID,
			ErrorMessage: err.Error(),
		})
	}
	return 0, 0, 0, err
}

func (s *Service) notifyCompleted(runID int64, files, dirs int, bytes int64, dryRun bool) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(notifications.Event{
		Type:                 notifications.EventOrphanScanCompleted,
		OrphanRunID:          runID,
		OrphanFilesRemoved:   files,
		OrphanDirsRemoved:    dirs,
		OrphanReclaimedBytes: bytes,
		OrphanDryRun:         dryRun,
	})
}

// scanDirsOverlap reports whether at least one scan directory sits inside the
// namespace the daemon's torrents live in.
func scanDirsOverlap(scanDirs []string, active *PathSet) bool {
	for _, dir := range scanDirs {
		if active.Covers(dir) || active.IsActive(dir) {
			return true
		}
	}
	return false
}

func summarize(candidates []Candidate) (files, dirs int, bytes int64) {
	for _, c := range candidates {
		if c.Dir {
			dirs++
		} else {
			files++
		}
		bytes += c.Size
	}
	return files, dirs, bytes
}
