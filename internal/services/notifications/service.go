// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package notifications sends cycle summaries and failures to shoutrrr URLs
// (discord://, telegram://, gotify://, ...). Events are queued and delivered
// by background workers so a slow notification service never stalls a cleanup
// cycle.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/rs/zerolog"
)

const (
	defaultQueueSize = 100
	defaultWorkers   = 2

	maxMessageLength = 420
	maxTitleLength   = 80
)

type Notifier interface {
	Notify(event Event)
}

type Service struct {
	urls      []string
	logger    zerolog.Logger
	queue     chan Event
	startOnce sync.Once
}

// NewService validates the configured URLs and returns the sender, or nil
// when nothing valid is configured. A nil Service is safe to use; every
// method no-ops.
func NewService(urls []string, logger zerolog.Logger) *Service {
	valid := make([]string, 0, len(urls))
	for _, url := range urls {
		if strings.TrimSpace(url) == "" {
			continue
		}
		if err := ValidateURL(url); err != nil {
			logger.Warn().Err(err).Msg("notifications: skipping invalid URL")
			continue
		}
		valid = append(valid, url)
	}

	if len(valid) == 0 {
		return nil
	}

	logger.Info().Int("targets", len(valid)).Msg("notifications: initialized")

	return &Service{
		urls:   valid,
		logger: logger,
		queue:  make(chan Event, defaultQueueSize),
	}
}

func ValidateURL(rawURL string) error {
	_, err := router.New(nil, rawURL)
	return err
}

func (s *Service) Start(ctx context.Context) {
	if s == nil {
		return
	}

	s.startOnce.Do(func() {
		for range defaultWorkers {
			go s.worker(ctx)
		}
	})
}

func (s *Service) Notify(event Event) {
	if s == nil {
		return
	}

	if s.queue == nil {
		go s.dispatch(event)
		return
	}

	select {
	case s.queue <- event:
	default:
		s.logger.Warn().Str("event", string(event.Type)).Msg("notifications: queue full, dropping event")
	}
}

// SendTest delivers a test message to every configured target immediately.
func (s *Service) SendTest(_ context.Context) error {
	if s == nil {
		return errors.New("no notification targets configured")
	}

	var errs []error
	for _, url := range s.urls {
		if err := s.send(url, "Test notification", "This is a test notification. If you see this, notifications are working correctly."); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.queue:
			s.dispatch(event)
		}
	}
}

func (s *Service) dispatch(event Event) {
	if s == nil {
		return
	}

	title, message := formatEvent(event)
	if strings.TrimSpace(message) == "" {
		return
	}

	for _, url := range s.urls {
		if err := s.send(url, title, message); err != nil {
			s.logger.Error().Err(err).Str("event", string(event.Type)).Msg("notifications: send failed")
		}
	}
}

func (s *Service) send(url, title, message string) error {
	sender, err := router.New(nil, url)
	if err != nil {
		return err
	}

	params := types.Params{}
	if trimmed := strings.TrimSpace(title); trimmed != "" {
		params.SetTitle(truncateMessage(trimmed, maxTitleLength))
	}

	trimmedMessage := truncateMessage(message, maxMessageLength)
	results := sender.Send(trimmedMessage, &params)
	var errs []error
	for _, sendErr := range results {
		if sendErr != nil {
			errs = append(errs, sendErr)
		}
	}
	if len(errs) == 0 {
		return nil
	}

	return errors.Join(errs...)
}

// formatEvent renders an event to a title and body. An empty body means the
// event is not worth a notification (clean orphan runs, malformed events).
func formatEvent(event Event) (string, string) {
	switch event.Type {
	case EventCleanupCompleted:
		if event.Summary == nil {
			return "", ""
		}
		return "Cleanup completed", formatCleanupSummary(*event.Summary)
	case EventCleanupFailed:
		return "Cleanup failed", fmt.Sprintf("Error: %s", formatErrorMessage(event.ErrorMessage))
	case EventOrphanScanCompleted:
		if event.OrphanFilesRemoved == 0 && event.OrphanDirsRemoved == 0 {
			return "", ""
		}
		prefix := "Removed"
		if event.OrphanDryRun {
			prefix = "[DRY RUN] Would remove"
		}
		lines := []string{
			fmt.Sprintf("%s %d file(s) and %d directory(ies)", prefix, event.OrphanFilesRemoved, event.OrphanDirsRemoved),
		}
		if event.OrphanReclaimedBytes > 0 {
			lines = append(lines, fmt.Sprintf("Reclaimed %s", formatBytes(event.OrphanReclaimedBytes)))
		}
		return "Orphan scan completed", strings.Join(lines, "\n")
	case EventOrphanScanFailed:
		return "Orphan scan failed", fmt.Sprintf("Run: %d\nError: %s", event.OrphanRunID, formatErrorMessage(event.ErrorMessage))
	default:
		return "", ""
	}
}

func formatCleanupSummary(s CleanupSummary) string {
	var parts []string

	if s.TotalDeleted > 0 {
		verb := "Deleted"
		if s.DryRun {
			verb = "[DRY RUN] Would delete"
		}
		parts = append(parts, fmt.Sprintf("%s %d torrent(s)", verb, s.TotalDeleted))

		var details []string
		if s.PrivateDeleted > 0 {
			details = append(details, fmt.Sprintf("%d private", s.PrivateDeleted))
		}
		if s.PublicDeleted > 0 {
			details = append(details, fmt.Sprintf("%d public", s.PublicDeleted))
		}
		if s.StalledDeleted > 0 {
			details = append(details, fmt.Sprintf("%d stalled", s.StalledDeleted))
		}
		if s.UnregisteredDeleted > 0 {
			details = append(details, fmt.Sprintf("%d unregistered", s.UnregisteredDeleted))
		}
		if len(details) > 0 {
			parts = append(parts, fmt.Sprintf("  (%s)", strings.Join(details, ", ")))
		}
	} else {
		parts = append(parts, "No torrents needed cleanup")
	}

	if s.ProtectedCount > 0 {
		parts = append(parts, fmt.Sprintf("Protected %d torrent(s)", s.ProtectedCount))
	}

	if s.OrphanFilesRemoved > 0 {
		parts = append(parts, fmt.Sprintf("Removed %d orphaned file(s), %d empty dir(s)", s.OrphanFilesRemoved, s.OrphanDirsRemoved))
	}
	if s.ReclaimedBytes > 0 {
		parts = append(parts, fmt.Sprintf("Reclaimed %s", formatBytes(s.ReclaimedBytes)))
	}

	return strings.Join(parts, "\n") + fmt.Sprintf("\n\nTotal checked: %d", s.TotalChecked)
}

func formatErrorMessage(message string) string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "Unknown error"
	}
	return trimmed
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func truncateMessage(value string, limit int) string {
	if limit <= 0 {
		return value
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if utf8.RuneCountInString(trimmed) <= limit {
		return trimmed
	}
	runes := []rune(trimmed)
	if limit <= 1 {
		return string(runes[:limit])
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
