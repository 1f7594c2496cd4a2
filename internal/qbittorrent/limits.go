// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/domain"
)

// Limits holds the effective per-class retention thresholds for one cycle.
type Limits struct {
	PrivateRatio float64 `json:"privateRatio"`
	PrivateDays  float64 `json:"privateDays"`
	PublicRatio  float64 `json:"publicRatio"`
	PublicDays   float64 `json:"publicDays"`
}

// RatioFor returns the ratio threshold for the privacy class.
func (l Limits) RatioFor(private bool) float64 {
	if private {
		return l.PrivateRatio
	}
	return l.PublicRatio
}

// DaysFor returns the seeding-time threshold in days for the privacy class.
func (l Limits) DaysFor(private bool) float64 {
	if private {
		return l.PrivateDays
	}
	return l.PublicDays
}

// ResolveLimits derives the effective limits for a cycle. Precedence per
// class and dimension: an explicitly configured value wins, then the daemon's
// own share limit when enabled and not ignored, then the fallback.
func (c *Client) ResolveLimits(ctx context.Context, cfg domain.LimitsConfig) Limits {
	limits := Limits{
		PrivateRatio: cfg.RatioFor(true),
		PrivateDays:  cfg.DaysFor(true),
		PublicRatio:  cfg.RatioFor(false),
		PublicDays:   cfg.DaysFor(false),
	}

	prefs, err := c.AppPreferences(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("qbittorrent: could not read daemon preferences, using configured limits")
		return limits
	}

	if prefs.MaxRatioEnabled {
		globalRatio := prefs.MaxRatio
		if cfg.PrivateRatio < 0 && !cfg.IgnoreDaemonRatioPrivate {
			limits.PrivateRatio = globalRatio
		}
		if cfg.PublicRatio < 0 && !cfg.IgnoreDaemonRatioPublic {
			limits.PublicRatio = globalRatio
		}
		log.Info().
			Float64("private", limits.PrivateRatio).
			Float64("public", limits.PublicRatio).
			Msg("qbittorrent: using daemon ratio limits")
	}

	if prefs.MaxSeedingTimeEnabled {
		// The daemon stores seeding time limits in minutes.
		globalDays := float64(prefs.MaxSeedingTime) / 60.0 / 24.0
		if cfg.PrivateDays < 0 && !cfg.IgnoreDaemonTimePrivate {
			limits.PrivateDays = globalDays
		}
		if cfg.PublicDays < 0 && !cfg.IgnoreDaemonTimePublic {
			limits.PublicDays = globalDays
		}
		log.Info().
			Float64("privateDays", limits.PrivateDays).
			Float64("publicDays", limits.PublicDays).
			Msg("qbittorrent: using daemon seeding time limits")
	}

	return limits
}
