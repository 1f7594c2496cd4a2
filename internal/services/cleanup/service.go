// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cleanup runs the retention engine: it snapshots the qBittorrent
// daemon on a schedule, classifies every torrent against the configured
// limits and deletes the ones past them.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/domain"
	"github.com/autobrr/sweeparr/internal/fileflows"
	"github.com/autobrr/sweeparr/internal/metrics"
	"github.com/autobrr/sweeparr/internal/models"
	"github.com/autobrr/sweeparr/internal/qbittorrent"
	"github.com/autobrr/sweeparr/internal/services/notifications"
)

const (
	snapshotAttempts   = 3
	snapshotRetryDelay = 5 * time.Second

	// Names listed per candidate in dry-run mode before the log falls back
	// to a count.
	dryRunSampleSize = 5
)

// ErrCycleInProgress is returned when a cycle is requested while one is
// already running. Cycles never overlap.
var ErrCycleInProgress = errors.New("cleanup cycle already in progress")

// ErrOrphansNotConfigured is returned when an orphan scan is requested but no
// orphan service was wired in.
var ErrOrphansNotConfigured = errors.New("orphan scanning not configured")

// daemon is the slice of *qbittorrent.Client the engine uses. Narrowed to an
// interface so tests can classify and delete against a fake.
type daemon interface {
	HealthCheck(ctx context.Context) error
	ListTorrents(ctx context.Context) ([]qbt.Torrent, error)
	DeleteTorrents(ctx context.Context, hashes []string, deleteFiles bool) error
	IsPrivate(ctx context.Context, torrent qbt.Torrent) bool
	TrackerHealth(ctx context.Context, hash string) (qbittorrent.TrackerHealth, string, error)
	TorrentFilePaths(ctx context.Context, hash string) ([]string, error)
	ResolveLimits(ctx context.Context, cfg domain.LimitsConfig) qbittorrent.Limits
}

// OrphanRunner reconciles on-disk content against the snapshot when its own
// interval has elapsed. Implemented by the orphan service.
type OrphanRunner interface {
	RunIfDue(ctx context.Context, torrents []qbt.Torrent) (filesRemoved, dirsRemoved int, bytesReclaimed int64, err error)
	RunNow(ctx context.Context, torrents []qbt.Torrent, dryRun bool) (filesRemoved, dirsRemoved int, bytesReclaimed int64, err error)
}

// Service owns the cleanup scheduler. One classification cycle runs at a
// time; the wait between cycles is interruptible by Wake.
type Service struct {
	configFn  func() domain.Config
	stores    *models.Stores
	fileflows *fileflows.Client
	notifier  notifications.Notifier
	cycle     *metrics.CycleMetrics
	orphans   OrphanRunner

	// connectFn is swapped out in tests.
	connectFn func(ctx context.Context, cfg domain.QBittorrentConfig) (daemon, error)

	mu     sync.Mutex // guards daemon
	daemon daemon

	runMu  sync.Mutex // serializes cycles
	status statusTracker
	wake   chan struct{}
	now    func() time.Time

	snapshotDelay time.Duration
}

func NewService(configFn func() domain.Config, stores *models.Stores, ff *fileflows.Client, notifier notifications.Notifier, cycle *metrics.CycleMetrics, orphans OrphanRunner) *Service {
	return &Service{
		configFn:  configFn,
		stores:    stores,
		fileflows: ff,
		notifier:  notifier,
		cycle:     cycle,
		orphans:   orphans,
		connectFn: func(ctx context.Context, cfg domain.QBittorrentConfig) (daemon, error) {
			return qbittorrent.NewClient(ctx, cfg)
		},
		wake:          make(chan struct{}, 1),
		now:           time.Now,
		snapshotDelay: snapshotRetryDelay,
	}
}

// Start launches the background scheduler.
func (s *Service) Start(ctx context.Context) {
	if s == nil {
		return
	}
	go s.loop(ctx)
}

// Wake interrupts the scheduler's wait so the next cycle starts immediately.
// A wake during a running cycle queues exactly one follow-up cycle.
func (s *Service) Wake() {
	if s == nil {
		return
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Status returns the scheduler's current state.
func (s *Service) Status() Status {
	return s.status.Snapshot()
}

// DaemonHealthy reports whether the last connected daemon still answers.
func (s *Service) DaemonHealthy() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	d := s.daemon
	s.mu.Unlock()

	if d == nil {
		return false
	}
	client, ok := d.(*qbittorrent.Client)
	if !ok {
		return true
	}
	return client.IsHealthy()
}

func (s *Service) loop(ctx context.Context) {
	for {
		if err := s.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("cleanup: cycle failed")
		}

		interval := time.Duration(s.configFn().Schedule.IntervalHours) * time.Hour
		next := s.now().Add(interval)
		s.status.setNextRun(next)
		log.Info().Time("nextRun", next).Msg("cleanup: next cycle scheduled")

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-s.wake:
			timer.Stop()
			log.Info().Msg("cleanup: manual cycle requested")
		}
	}
}

// RunCycle executes one classification cycle. Connectivity failures abort
// the whole cycle; nothing is ever partially applied.
func (s *Service) RunCycle(ctx context.Context) error {
	if !s.runMu.TryLock() {
		return ErrCycleInProgress
	}
	defer s.runMu.Unlock()

	started := s.now()
	s.status.beginCycle(started)
	log.Info().Msg("cleanup: starting cycle")

	summary, checked, err := s.cycleOnce(ctx)

	duration := s.now().Sub(started)
	s.status.endCycle(s.now(), duration, err, summary)
	if s.cycle != nil {
		s.cycle.ObserveCycle(duration, checked, err != nil)
	}

	if err != nil {
		s.notify(notifications.Event{
			Type:         notifications.EventCleanupFailed,
			ErrorMessage: err.Error(),
		})
		return err
	}

	s.notify(notifications.Event{
		Type:    notifications.EventCleanupCompleted,
		Summary: summary,
	})
	log.Info().Dur("duration", duration).Int("checked", checked).Msg("cleanup: cycle complete")
	return nil
}

func (s *Service) cycleOnce(ctx context.Context) (*notifications.CleanupSummary, int, error) {
	cfg := s.configFn()

	rule, err := CompileProtectRule(cfg.Behavior.ProtectExpr)
	if err != nil {
		// A broken protect rule would silently expose everything it was
		// meant to keep.
		return nil, 0, err
	}

	client, err := s.ensureDaemon(ctx, cfg.QBittorrent)
	if err != nil {
		return nil, 0, err
	}

	s.probeFileFlows(ctx)

	torrents, err := s.snapshot(ctx, client)
	if err != nil {
		return nil, 0, err
	}
	if len(torrents) == 0 {
		log.Info().Msg("cleanup: no torrents found")
		return &notifications.CleanupSummary{DryRun: cfg.Behavior.DryRun}, 0, nil
	}

	items := s.buildItems(ctx, client, torrents, cfg.Behavior.DeleteUnregistered)

	privateCount := 0
	for _, item := range items {
		if item.Private {
			privateCount++
		}
	}
	log.Info().
		Int("total", len(items)).
		Int("private", privateCount).
		Int("public", len(items)-privateCount).
		Msg("cleanup: snapshot loaded")

	limits := client.ResolveLimits(ctx, cfg.Limits)
	log.Info().
		Float64("privateRatio", limits.PrivateRatio).
		Float64("privateDays", limits.PrivateDays).
		Float64("publicRatio", limits.PublicRatio).
		Float64("publicDays", limits.PublicDays).
		Msg("cleanup: effective limits")
	logActiveFeatures(cfg.Behavior)

	guard := NewGuard(rule, s.fileflows, client.TorrentFilePaths)
	classifier := NewClassifier(cfg.Behavior, s.stores, guard)
	classifier.now = s.now

	result, err := classifier.Classify(ctx, items, limits)
	if err != nil {
		return nil, len(items), err
	}

	deleted, err := s.deleteCandidates(ctx, client, result, cfg.Behavior)
	if err != nil {
		return nil, len(items), err
	}

	if err := s.stores.Metadata.SetTime(ctx, models.MetaLastCleanupRun, s.now()); err != nil {
		log.Warn().Err(err).Msg("cleanup: could not record run timestamp")
	}

	stats := result.Stats()
	summary := &notifications.CleanupSummary{
		TotalChecked:        len(items),
		TotalDeleted:        deleted,
		PrivateDeleted:      stats.Private,
		PublicDeleted:       stats.Public,
		StalledDeleted:      stats.Stalled,
		UnregisteredDeleted: stats.Unregistered,
		ProtectedCount:      len(result.Protected),
		DryRun:              cfg.Behavior.DryRun,
	}

	s.runOrphans(ctx, torrents, summary)

	return summary, len(items), nil
}

// ensureDaemon reuses the connected client when it still answers, otherwise
// reconnects.
func (s *Service) ensureDaemon(ctx context.Context, cfg domain.QBittorrentConfig) (daemon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.daemon != nil {
		if err := s.daemon.HealthCheck(ctx); err == nil {
			return s.daemon, nil
		}
		log.Warn().Msg("cleanup: qBittorrent connection lost, reconnecting")
		s.daemon = nil
	}

	client, err := s.connectFn(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.daemon = client
	return client, nil
}

func (s *Service) probeFileFlows(ctx context.Context) {
	if s.fileflows == nil || !s.fileflows.Enabled() {
		return
	}
	if err := s.fileflows.TestConnection(ctx); err != nil {
		log.Warn().Err(err).Msg("cleanup: FileFlows unreachable, continuing with last known protection set")
	}
}

// snapshot lists the daemon's torrents with bounded retries. Exhaustion
// aborts the cycle; a partial listing must never reach the classifier.
func (s *Service) snapshot(ctx context.Context, client daemon) ([]qbt.Torrent, error) {
	var torrents []qbt.Torrent
	err := retry.Do(
		func() error {
			var listErr error
			torrents, listErr = client.ListTorrents(ctx)
			return listErr
		},
		retry.Attempts(snapshotAttempts),
		retry.Delay(s.snapshotDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Msg("cleanup: torrent listing failed, retrying")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot torrents: %w", err)
	}
	return torrents, nil
}

// buildItems enriches the snapshot with privacy and, when unregistered
// cleanup is on, tracker health. Per-item enrichment failures degrade that
// item instead of failing the cycle.
func (s *Service) buildItems(ctx context.Context, client daemon, torrents []qbt.Torrent, checkTrackers bool) []Item {
	items := make([]Item, 0, len(torrents))
	for _, t := range torrents {
		item := Item{
			Hash:        t.Hash,
			Name:        t.Name,
			Category:    t.Category,
			Tags:        t.Tags,
			Tracker:     t.Tracker,
			State:       t.State,
			Ratio:       t.Ratio,
			SeedingTime: t.SeedingTime,
			ContentPath: t.ContentPath,
			SavePath:    t.SavePath,
			Private:     client.IsPrivate(ctx, t),
		}

		// Tracker listings are one request per torrent, so only torrents
		// past the download phase are checked.
		if checkTrackers && !qbittorrent.IsDownloadingState(t.State) {
			health, message, err := client.TrackerHealth(ctx, t.Hash)
			if err != nil {
				log.Debug().Err(err).Str("hash", t.Hash).Msg("cleanup: tracker health unavailable")
			} else {
				item.TrackerHealth = health
				item.TrackerMessage = message
			}
		}

		items = append(items, item)
	}
	return items
}

// deleteCandidates removes every candidate in one daemon call. The call is
// never retried: a timeout after partial server-side processing would risk
// double submission.
func (s *Service) deleteCandidates(ctx context.Context, client daemon, result *Result, behavior domain.BehaviorConfig) (int, error) {
	candidates := result.Candidates()
	if len(candidates) == 0 {
		log.Info().Msg("cleanup: no torrents need cleanup")
		return 0, nil
	}

	stats := result.Stats()
	log.Info().
		Int("total", stats.Total).
		Int("completed", stats.Completed).
		Int("stalled", stats.Stalled).
		Int("unregistered", stats.Unregistered).
		Msg("cleanup: deletion candidates")

	if behavior.DryRun {
		log.Info().Int("count", len(candidates)).Msg("cleanup: dry run, would delete")
		for i, c := range candidates {
			if i >= dryRunSampleSize {
				log.Info().Int("more", len(candidates)-dryRunSampleSize).Msg("cleanup: dry run, additional candidates not listed")
				break
			}
			log.Info().
				Str("name", truncateName(c.Item.Name)).
				Str("reason", string(c.Reason)).
				Str("status", c.FormatReason()).
				Msg("cleanup: dry run candidate")
		}
		return len(candidates), nil
	}

	hashes := make([]string, 0, len(candidates))
	for _, c := range candidates {
		hashes = append(hashes, c.Item.Hash)
	}

	if err := client.DeleteTorrents(ctx, hashes, behavior.DeleteFiles); err != nil {
		return 0, err
	}

	if behavior.DeleteFiles {
		log.Info().Int("count", len(hashes)).Msg("cleanup: deleted torrents with files")
	} else {
		log.Info().Int("count", len(hashes)).Msg("cleanup: removed torrents, files kept")
	}

	if s.cycle != nil {
		byReason := make(map[DeletionReason]int)
		for _, c := range candidates {
			byReason[c.Reason]++
		}
		for reason, n := range byReason {
			s.cycle.AddDeleted(string(reason), n)
		}
	}

	return len(hashes), nil
}

// RunOrphanScan triggers an orphan reconciliation outside the cleanup
// schedule, against a fresh daemon snapshot.
func (s *Service) RunOrphanScan(ctx context.Context, dryRun bool) (int, int, int64, error) {
	if s.orphans == nil {
		return 0, 0, 0, ErrOrphansNotConfigured
	}

	cfg := s.configFn()
	client, err := s.ensureDaemon(ctx, cfg.QBittorrent)
	if err != nil {
		return 0, 0, 0, err
	}
	torrents, err := s.snapshot(ctx, client)
	if err != nil {
		return 0, 0, 0, err
	}

	return s.orphans.RunNow(ctx, torrents, dryRun)
}

// Torrents returns a fresh snapshot of the daemon's torrent list, for the
// API's listing endpoint.
func (s *Service) Torrents(ctx context.Context) ([]qbt.Torrent, error) {
	client, err := s.ensureDaemon(ctx, s.configFn().QBittorrent)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, client)
}

// TorrentFiles lists a torrent's file paths, relative to its save path,
// through the connected daemon.
func (s *Service) TorrentFiles(ctx context.Context, hash string) ([]string, error) {
	s.mu.Lock()
	d := s.daemon
	s.mu.Unlock()

	if d == nil {
		var err error
		d, err = s.ensureDaemon(ctx, s.configFn().QBittorrent)
		if err != nil {
			return nil, err
		}
	}
	return d.TorrentFilePaths(ctx, hash)
}

func (s *Service) runOrphans(ctx context.Context, torrents []qbt.Torrent, summary *notifications.CleanupSummary) {
	if s.orphans == nil {
		return
	}

	files, dirs, bytes, err := s.orphans.RunIfDue(ctx, torrents)
	if err != nil {
		log.Error().Err(err).Msg("cleanup: orphan reconciliation failed")
		return
	}
	summary.OrphanFilesRemoved = files
	summary.OrphanDirsRemoved = dirs
	summary.ReclaimedBytes = bytes
}

func (s *Service) notify(event notifications.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(event)
}

func logActiveFeatures(b domain.BehaviorConfig) {
	if b.DryRun {
		log.Warn().Msg("cleanup: dry run enabled, nothing will be deleted")
	}
	if b.PausedOnlyFor(true) || b.PausedOnlyFor(false) {
		log.Info().
			Bool("private", b.PausedOnlyFor(true)).
			Bool("public", b.PausedOnlyFor(false)).
			Msg("cleanup: paused-only gating enabled")
	}
	if b.ForceDeleteHoursFor(true) > 0 || b.ForceDeleteHoursFor(false) > 0 {
		log.Info().
			Float64("privateHours", b.ForceDeleteHoursFor(true)).
			Float64("publicHours", b.ForceDeleteHoursFor(false)).
			Msg("cleanup: force delete enabled")
	}
	if b.CleanupStalled {
		log.Info().
			Float64("privateDays", b.MaxStalledDaysFor(true)).
			Float64("publicDays", b.MaxStalledDaysFor(false)).
			Msg("cleanup: stalled cleanup enabled")
	}
	if b.DeleteUnregistered {
		log.Info().
			Float64("maxHours", b.MaxUnregisteredHours).
			Msg("cleanup: unregistered cleanup enabled")
	}
}
