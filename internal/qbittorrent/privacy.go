// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"strings"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog/log"
)

const privacyProbeRetries = 3

// IsPrivate reports whether the torrent belongs to a private tracker.
//
// On qBittorrent 5.0.0+ the listing itself carries the flag. Older daemons
// need a tracker probe: they report private torrents through a disabled
// pseudo-tracker entry whose message mentions "private". Probe results are
// cached per hash for the lifetime of the connection.
func (c *Client) IsPrivate(ctx context.Context, torrent qbt.Torrent) bool {
	if c.hasNativePrivate {
		c.logPrivacyMethodOnce("native private field")
		return torrent.Private
	}

	c.logPrivacyMethodOnce("tracker message probe")

	c.privacyMu.Lock()
	if cached, ok := c.privacyCache[torrent.Hash]; ok {
		c.privacyMu.Unlock()
		return cached
	}
	c.privacyMu.Unlock()

	private := c.probePrivateViaTrackers(ctx, torrent.Hash)

	c.privacyMu.Lock()
	c.privacyCache[torrent.Hash] = private
	c.privacyMu.Unlock()

	return private
}

func (c *Client) probePrivateViaTrackers(ctx context.Context, hash string) bool {
	var lastErr error
	for attempt := 0; attempt < privacyProbeRetries; attempt++ {
		trackers, err := c.GetTorrentTrackersCtx(ctx, hash)
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return false
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		for _, tracker := range trackers {
			if tracker.Status == qbt.TrackerStatusDisabled && strings.Contains(strings.ToLower(tracker.Message), "private") {
				return true
			}
		}
		return false
	}

	log.Warn().Err(lastErr).Str("hash", hash).Msg("qbittorrent: could not probe torrent privacy, assuming public")
	return false
}

// logPrivacyMethodOnce announces the active detection method on first use so
// a run's log shows which path classified the snapshot.
func (c *Client) logPrivacyMethodOnce(method string) {
	c.mu.Lock()
	shown := c.privacyMethodShown
	c.privacyMethodShown = true
	c.mu.Unlock()

	if !shown {
		log.Info().Str("method", method).Msg("qbittorrent: privacy detection active")
	}
}
