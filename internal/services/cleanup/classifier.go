// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cleanup

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/domain"
	"github.com/autobrr/sweeparr/internal/models"
	"github.com/autobrr/sweeparr/internal/qbittorrent"
)

// Classifier applies the retention rules to one snapshot of torrents.
//
// Per torrent, in order: lifecycle state is recorded, blacklisted hashes are
// skipped, unregistered tracking is updated, stalled downloads past their
// limit are handled, in-progress downloads are skipped, and finally ratio and
// seeding-time limits are evaluated with paused-only gating and force-delete
// escalation. Each torrent lands in at most one bucket.
type Classifier struct {
	behavior domain.BehaviorConfig
	stores   *models.Stores
	guard    *Guard
	now      func() time.Time
}

func NewClassifier(behavior domain.BehaviorConfig, stores *models.Stores, guard *Guard) *Classifier {
	return &Classifier{
		behavior: behavior,
		stores:   stores,
		guard:    guard,
		now:      time.Now,
	}
}

// Classify buckets the snapshot against the effective limits. State-store
// garbage collection runs here because this is the only place a full
// snapshot is guaranteed; partial listings never reach Classify.
func (c *Classifier) Classify(ctx context.Context, items []Item, limits qbittorrent.Limits) (*Result, error) {
	c.guard.Refresh(ctx)

	now := c.now()

	hashes := make([]string, 0, len(items))
	for _, item := range items {
		hashes = append(hashes, item.Hash)
	}

	if removed, err := c.stores.TorrentState.GC(ctx, hashes, now); err != nil {
		log.Warn().Err(err).Msg("cleanup: state garbage collection failed")
	} else if removed > 0 {
		log.Debug().Int64("removed", removed).Msg("cleanup: dropped state for departed torrents")
	}
	if _, err := c.stores.Unregistered.GC(ctx, hashes); err != nil {
		log.Warn().Err(err).Msg("cleanup: unregistered garbage collection failed")
	}

	blacklist, err := c.stores.Blacklist.Hashes(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("cleanup: could not load blacklist, protection inactive this cycle")
		blacklist = nil
	}
	if len(blacklist) > 0 {
		log.Info().Int("count", len(blacklist)).Msg("cleanup: blacklist protection active")
	}

	result := &Result{}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := c.stores.TorrentState.Upsert(ctx, item.Hash, item.Name, string(item.State), item.Stalled(), now); err != nil {
			log.Warn().Err(err).Str("hash", item.Hash).Msg("cleanup: state update failed")
		}

		if _, blacklisted := blacklist[item.Hash]; blacklisted {
			log.Debug().Str("name", truncateName(item.Name)).Msg("cleanup: skipping blacklisted torrent")
			continue
		}

		if c.checkUnregistered(ctx, item, now, result) {
			continue
		}

		if c.checkStalled(ctx, item, now, result) {
			continue
		}

		// In-progress downloads are never deletion candidates. Stalled
		// ones fall through so the remaining rules still see them.
		if item.Downloading() && !item.Stalled() {
			continue
		}

		classLimits := ClassLimits{
			Ratio: limits.RatioFor(item.Private),
			Days:  limits.DaysFor(item.Private),
		}
		c.checkRetention(ctx, item, classLimits, result)
	}

	c.logSummary(result)

	return result, nil
}

// checkUnregistered maintains the unregistered tracking table and emits a
// candidate once a torrent has been continuously unregistered for longer
// than the configured grace period. Tracker outages neither mark nor clear.
// Returns true when the torrent is fully handled.
func (c *Classifier) checkUnregistered(ctx context.Context, item Item, now time.Time, result *Result) bool {
	if !c.behavior.DeleteUnregistered {
		return false
	}

	switch item.TrackerHealth {
	case qbittorrent.TrackerHealthy:
		if err := c.stores.Unregistered.Clear(ctx, item.Hash); err != nil {
			log.Warn().Err(err).Str("hash", item.Hash).Msg("cleanup: could not clear unregistered mark")
		}
		return false
	case qbittorrent.TrackerDown:
		return false
	}

	if err := c.stores.Unregistered.Mark(ctx, item.Hash, item.Name, item.TrackerMessage, now); err != nil {
		log.Warn().Err(err).Str("hash", item.Hash).Msg("cleanup: could not record unregistered mark")
		return false
	}

	hours, err := c.stores.Unregistered.Hours(ctx, item.Hash, now)
	if err != nil {
		log.Warn().Err(err).Str("hash", item.Hash).Msg("cleanup: could not read unregistered duration")
		return false
	}
	// Degraded store: duration unknown, the rule stays inactive.
	if hours == nil {
		return false
	}

	maxHours := c.behavior.MaxUnregisteredHours
	if maxHours <= 0 || *hours < maxHours {
		log.Debug().
			Str("name", truncateName(item.Name)).
			Float64("hours", *hours).
			Float64("maxHours", maxHours).
			Msg("cleanup: unregistered, waiting out grace period")
		return false
	}

	if c.guard.Protects(ctx, item) {
		log.Info().
			Str("name", truncateName(item.Name)).
			Float64("hours", *hours).
			Msg("cleanup: unregistered torrent protected, skipping")
		result.Protected = append(result.Protected, item)
		return true
	}

	result.ToDelete = append(result.ToDelete, Candidate{
		Item:           item,
		Reason:         ReasonUnregistered,
		TrackerMessage: item.TrackerMessage,
	})

	log.Info().
		Str("name", truncateName(item.Name)).
		Bool("private", item.Private).
		Float64("hours", *hours).
		Str("trackerMessage", item.TrackerMessage).
		Msg("cleanup: delete unregistered")

	return true
}

// checkStalled handles downloads stalled past their limit. Returns true when
// the torrent is fully handled; stalled downloads still inside their limit
// fall through to the remaining rules.
func (c *Classifier) checkStalled(ctx context.Context, item Item, now time.Time, result *Result) bool {
	if !c.behavior.CleanupStalled {
		return false
	}
	if !item.Stalled() {
		return false
	}

	stalledDays, err := c.stores.TorrentState.StalledDurationDays(ctx, item.Hash, now)
	if err != nil {
		log.Warn().Err(err).Str("hash", item.Hash).Msg("cleanup: could not read stall duration")
		return false
	}

	maxDays := c.behavior.MaxStalledDaysFor(item.Private)
	if maxDays <= 0 || stalledDays <= maxDays {
		return false
	}

	if c.guard.Protects(ctx, item) {
		log.Info().
			Str("name", truncateName(item.Name)).
			Bool("private", item.Private).
			Float64("stalledDays", stalledDays).
			Float64("maxDays", maxDays).
			Msg("cleanup: stalled torrent protected, skipping")
		result.Protected = append(result.Protected, item)
		return true
	}

	result.Stalled = append(result.Stalled, Candidate{
		Item:        item,
		Reason:      ReasonStalledTooLong,
		Limits:      ClassLimits{Days: maxDays},
		StalledDays: stalledDays,
	})

	log.Info().
		Str("name", truncateName(item.Name)).
		Bool("private", item.Private).
		Float64("stalledDays", stalledDays).
		Float64("maxDays", maxDays).
		Msg("cleanup: delete stalled")

	return true
}

// checkRetention evaluates ratio and seeding-time limits, honoring
// paused-only gating and its force-delete escape hatch.
func (c *Classifier) checkRetention(ctx context.Context, item Item, limits ClassLimits, result *Result) {
	meetsRatio := item.Ratio >= limits.Ratio
	meetsTime := float64(item.SeedingTime) >= limits.Seconds()
	meets := meetsRatio || meetsTime

	pausedOnly := c.behavior.PausedOnlyFor(item.Private)
	forceHours := c.behavior.ForceDeleteHoursFor(item.Private)

	if pausedOnly && !item.Paused() {
		if meets && forceHours > 0 {
			c.checkForceDelete(ctx, item, limits, forceHours, result)
		}
		return
	}

	if meets {
		if c.guard.Protects(ctx, item) {
			log.Info().
				Str("name", truncateName(item.Name)).
				Str("status", formatLimitsStatus(item, limits)).
				Msg("cleanup: torrent protected, skipping")
			result.Protected = append(result.Protected, item)
			return
		}

		var reason DeletionReason
		switch {
		case meetsRatio && meetsTime:
			reason = ReasonBothExceeded
		case meetsRatio:
			reason = ReasonRatioExceeded
		default:
			reason = ReasonTimeExceeded
		}

		result.ToDelete = append(result.ToDelete, Candidate{
			Item:   item,
			Reason: reason,
			Limits: limits,
		})

		log.Info().
			Str("name", truncateName(item.Name)).
			Bool("private", item.Private).
			Str("reason", string(reason)).
			Str("status", formatLimitsStatus(item, limits)).
			Msg("cleanup: delete")
		return
	}

	if item.Paused() {
		result.PausedNotReady = append(result.PausedNotReady, item)
	}
}

func (c *Classifier) checkForceDelete(ctx context.Context, item Item, limits ClassLimits, forceHours float64, result *Result) {
	excess := excessHours(item, limits)
	if excess < forceHours {
		return
	}

	if c.guard.Protects(ctx, item) {
		log.Info().
			Str("name", truncateName(item.Name)).
			Str("status", formatLimitsStatus(item, limits)).
			Float64("excessHours", excess).
			Msg("cleanup: force-delete candidate protected, skipping")
		result.Protected = append(result.Protected, item)
		return
	}

	result.ToDelete = append(result.ToDelete, Candidate{
		Item:        item,
		Reason:      ReasonForceDelete,
		Limits:      limits,
		ExcessHours: excess,
	})

	log.Info().
		Str("name", truncateName(item.Name)).
		Str("status", formatLimitsStatus(item, limits)).
		Float64("excessHours", excess).
		Float64("forceHours", forceHours).
		Msg("cleanup: force delete")
}

// excessHours estimates how long a torrent has been past its limits. Time
// overage is exact; ratio overage has no native time unit, so it is expressed
// as the equivalent fraction of the time budget. The larger estimate wins.
func excessHours(item Item, limits ClassLimits) float64 {
	var timeExcess, ratioExcess float64

	if float64(item.SeedingTime) >= limits.Seconds() {
		timeExcess = (float64(item.SeedingTime) - limits.Seconds()) / secondsPerHour
	}

	if item.Ratio >= limits.Ratio && limits.Ratio > 0 {
		overage := (item.Ratio - limits.Ratio) / limits.Ratio
		ratioExcess = overage * limits.Seconds() / secondsPerHour
	}

	return max(timeExcess, ratioExcess)
}

func formatLimitsStatus(item Item, limits ClassLimits) string {
	return Candidate{Item: item, Limits: limits}.FormatReason()
}

func (c *Classifier) logSummary(result *Result) {
	if len(result.Protected) > 0 {
		log.Info().Int("count", len(result.Protected)).Msg("cleanup: torrents protected from deletion")
	}
	if len(result.Stalled) > 0 {
		log.Info().Int("count", len(result.Stalled)).Msg("cleanup: stalled downloads selected for deletion")
	}
	if len(result.PausedNotReady) > 0 {
		log.Info().Int("count", len(result.PausedNotReady)).Msg("cleanup: paused torrents not yet at limits")
	}
}
