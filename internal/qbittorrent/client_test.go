// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"testing"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/sweeparr/internal/domain"
)

func newTestClient(prefs *qbt.AppPreferences) *Client {
	c := &Client{
		privacyCache: make(map[string]bool),
	}
	if prefs != nil {
		c.preferencesCache = cloneAppPreferences(prefs)
		c.preferencesFetchedAt = time.Now()
	}
	return c
}

func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"5.0.0", true},
		{"v5.1.2", true},
		{"5.0.0rc1", false},
		{"4.6.7", false},
		{"v4.3.9", false},
		{"", false},
		{"unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.want, versionAtLeast(tt.version, nativePrivateVersion))
		})
	}
}

func TestIsPausedState(t *testing.T) {
	paused := []qbt.TorrentState{
		qbt.TorrentStatePausedUp,
		qbt.TorrentStatePausedDl,
		qbt.TorrentStateStoppedUp,
		qbt.TorrentStateStoppedDl,
	}
	for _, state := range paused {
		assert.True(t, IsPausedState(state), "state %s", state)
	}

	notPaused := []qbt.TorrentState{
		qbt.TorrentStateUploading,
		qbt.TorrentStateStalledUp,
		qbt.TorrentStateStalledDl,
		qbt.TorrentStateDownloading,
		qbt.TorrentStateCheckingUp,
	}
	for _, state := range notPaused {
		assert.False(t, IsPausedState(state), "state %s", state)
	}
}

func TestIsDownloadingState(t *testing.T) {
	downloading := []qbt.TorrentState{
		qbt.TorrentStateDownloading,
		qbt.TorrentStateStalledDl,
		qbt.TorrentStateQueuedDl,
		qbt.TorrentStateAllocating,
		qbt.TorrentStateMetaDl,
	}
	for _, state := range downloading {
		assert.True(t, IsDownloadingState(state), "state %s", state)
	}

	notDownloading := []qbt.TorrentState{
		qbt.TorrentStateUploading,
		qbt.TorrentStateStalledUp,
		qbt.TorrentStatePausedUp,
		qbt.TorrentStateStoppedDl,
	}
	for _, state := range notDownloading {
		assert.False(t, IsDownloadingState(state), "state %s", state)
	}
}

func TestIsStalledDownloadState(t *testing.T) {
	assert.True(t, IsStalledDownloadState(qbt.TorrentStateStalledDl))
	assert.False(t, IsStalledDownloadState(qbt.TorrentStateStalledUp))
	assert.False(t, IsStalledDownloadState(qbt.TorrentStateDownloading))
}

func TestIsPrivateNativeField(t *testing.T) {
	client := newTestClient(nil)
	client.hasNativePrivate = true

	assert.True(t, client.IsPrivate(context.Background(), qbt.Torrent{Hash: "a", Private: true}))
	assert.False(t, client.IsPrivate(context.Background(), qbt.Torrent{Hash: "b", Private: false}))
}

func TestResolveLimitsExplicitConfigWins(t *testing.T) {
	client := newTestClient(&qbt.AppPreferences{
		MaxRatioEnabled:       true,
		MaxRatio:              9.0,
		MaxSeedingTimeEnabled: true,
		MaxSeedingTime:        999999,
	})

	cfg := domain.LimitsConfig{
		FallbackRatio: 1.0,
		FallbackDays:  7.0,
		PrivateRatio:  2.0,
		PrivateDays:   14.0,
		PublicRatio:   1.5,
		PublicDays:    3.0,
	}

	limits := client.ResolveLimits(context.Background(), cfg)

	assert.Equal(t, 2.0, limits.PrivateRatio)
	assert.Equal(t, 14.0, limits.PrivateDays)
	assert.Equal(t, 1.5, limits.PublicRatio)
	assert.Equal(t, 3.0, limits.PublicDays)
}

func TestResolveLimitsDaemonFillsUnset(t *testing.T) {
	client := newTestClient(&qbt.AppPreferences{
		MaxRatioEnabled:       true,
		MaxRatio:              2.5,
		MaxSeedingTimeEnabled: true,
		MaxSeedingTime:        20160, // minutes, 14 days
	})

	cfg := domain.LimitsConfig{
		FallbackRatio: 1.0,
		FallbackDays:  7.0,
		PrivateRatio:  -1,
		PrivateDays:   -1,
		PublicRatio:   -1,
		PublicDays:    -1,
	}

	limits := client.ResolveLimits(context.Background(), cfg)

	assert.Equal(t, 2.5, limits.PrivateRatio)
	assert.Equal(t, 2.5, limits.PublicRatio)
	assert.InDelta(t, 14.0, limits.PrivateDays, 0.001)
	assert.InDelta(t, 14.0, limits.PublicDays, 0.001)
}

func TestResolveLimitsIgnoreFlags(t *testing.T) {
	client := newTestClient(&qbt.AppPreferences{
		MaxRatioEnabled:       true,
		MaxRatio:              2.5,
		MaxSeedingTimeEnabled: true,
		MaxSeedingTime:        20160,
	})

	cfg := domain.LimitsConfig{
		FallbackRatio:            1.0,
		FallbackDays:             7.0,
		PrivateRatio:             -1,
		PrivateDays:              -1,
		PublicRatio:              -1,
		PublicDays:               -1,
		IgnoreDaemonRatioPrivate: true,
		IgnoreDaemonTimePublic:   true,
	}

	limits := client.ResolveLimits(context.Background(), cfg)

	// Ignored dimensions stay on the fallback.
	assert.Equal(t, 1.0, limits.PrivateRatio)
	assert.Equal(t, 2.5, limits.PublicRatio)
	assert.InDelta(t, 14.0, limits.PrivateDays, 0.001)
	assert.Equal(t, 7.0, limits.PublicDays)
}

func TestResolveLimitsDaemonDisabled(t *testing.T) {
	client := newTestClient(&qbt.AppPreferences{})

	cfg := domain.LimitsConfig{
		FallbackRatio: 1.0,
		FallbackDays:  7.0,
		PrivateRatio:  -1,
		PrivateDays:   -1,
		PublicRatio:   -1,
		PublicDays:    -1,
	}

	limits := client.ResolveLimits(context.Background(), cfg)

	assert.Equal(t, 1.0, limits.PrivateRatio)
	assert.Equal(t, 1.0, limits.PublicRatio)
	assert.Equal(t, 7.0, limits.PrivateDays)
	assert.Equal(t, 7.0, limits.PublicDays)
}

func TestAppPreferencesReturnsClone(t *testing.T) {
	client := newTestClient(&qbt.AppPreferences{MaxRatio: 2.0})

	first, err := client.AppPreferences(context.Background())
	require.NoError(t, err)

	// Mutating the returned copy must not leak into the cache.
	first.MaxRatio = 99.0

	second, err := client.AppPreferences(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, second.MaxRatio)
}

func TestLimitsFor(t *testing.T) {
	limits := Limits{
		PrivateRatio: 2.0,
		PrivateDays:  14.0,
		PublicRatio:  1.0,
		PublicDays:   3.0,
	}

	assert.Equal(t, 2.0, limits.RatioFor(true))
	assert.Equal(t, 1.0, limits.RatioFor(false))
	assert.Equal(t, 14.0, limits.DaysFor(true))
	assert.Equal(t, 3.0, limits.DaysFor(false))
}
