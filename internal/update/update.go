// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package update checks for and applies sweeparr releases.
package update

import (
	"context"
	"sync"
	"time"

	"github.com/autobrr/sweeparr/pkg/version"

	"github.com/rs/zerolog"
)

const (
	githubOwner = "autobrr"
	githubRepo  = "sweeparr"

	checkInterval = 2 * time.Hour
	initialDelay  = 30 * time.Second
)

// Service periodically checks GitHub for newer releases and caches the result
// for the API and CLI to report.
type Service struct {
	log            zerolog.Logger
	currentVersion string
	releaseChecker *version.Checker

	mu            sync.RWMutex
	isEnabled     bool
	latestRelease *version.Release
}

func NewService(log zerolog.Logger, enabled bool, currentVersion, userAgent string) *Service {
	return &Service{
		log:            log.With().Str("module", "update").Logger(),
		currentVersion: currentVersion,
		isEnabled:      enabled,
		releaseChecker: version.NewChecker(githubOwner, githubRepo, userAgent),
	}
}

// SetEnabled toggles periodic update checks at runtime.
func (s *Service) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isEnabled == enabled {
		return
	}

	s.isEnabled = enabled
	s.log.Debug().Bool("enabled", enabled).Msg("update checks toggled")
}

func (s *Service) enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isEnabled
}

// Start launches the periodic check loop and returns immediately. The loop
// stops when ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Service) run(ctx context.Context) {
	// First check runs shortly after startup so the API has data early.
	timer := time.NewTimer(initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.CheckUpdates(ctx)
			timer.Reset(checkInterval)
		}
	}
}

// CheckUpdates queries GitHub for a release newer than the running version and
// caches it. It is a no-op when update checks are disabled.
func (s *Service) CheckUpdates(ctx context.Context) {
	if !s.enabled() {
		return
	}

	newer, release, err := s.releaseChecker.CheckNewVersion(ctx, s.currentVersion)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to check for updates")
		return
	}

	if !newer {
		return
	}

	s.mu.Lock()
	s.latestRelease = release
	s.mu.Unlock()

	s.log.Info().Str("current", s.currentVersion).Str("latest", release.TagName).Msg("update available")
}

// GetLatestRelease returns the newest known release newer than the running
// version, or nil when none has been found yet.
func (s *Service) GetLatestRelease(_ context.Context) *version.Release {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestRelease
}

// CanSelfUpdate reports whether the running binary can replace itself in
// place. Container deployments update by pulling a new image instead.
func (s *Service) CanSelfUpdate() bool {
	if !isSelfUpdateSupportedPlatform() {
		return false
	}
	if isRunningInContainer() {
		return false
	}
	return true
}

// RunSelfUpdate downloads and installs the latest release over the current
// binary. The caller is responsible for restarting the process afterwards.
func (s *Service) RunSelfUpdate(ctx context.Context) error {
	if !s.CanSelfUpdate() {
		return ErrSelfUpdateUnsupported
	}

	updater := NewUpdater(Config{
		Repository: githubOwner + "/" + githubRepo,
		Version:    s.currentVersion,
	})

	updated, err := updater.Run(ctx)
	if err != nil {
		return err
	}

	if !updated {
		s.log.Info().Str("version", s.currentVersion).Msg("already running the latest version")
	}

	return nil
}
