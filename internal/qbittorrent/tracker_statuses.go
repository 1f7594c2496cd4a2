// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"fmt"
	"regexp"

	qbt "github.com/autobrr/go-qbittorrent"
)

// Tracker messages are matched against word-boundary patterns after URLs are
// removed, so a torrent titled "Showdown" or "Forbidden Planet" inside a
// tracker comment URL never trips the down detection.
var (
	trackerURLPattern = regexp.MustCompile(`(?i)https?://\S+`)

	trackerDownPattern = regexp.MustCompile(`(?i)\b(?:` +
		`down|unreachable|unavailable|forbidden|refused|` +
		`timed out|timeout|maintenance|overloaded|` +
		`bad gateway|gateway timeout|internal server error|service unavailable|` +
		`502|503|504` +
		`)\b`)

	trackerUnregisteredPattern = regexp.MustCompile(`(?i)\b(?:` +
		`unregistered|not registered|not authorized|not found|not exist|` +
		`deleted|nuked|dead|dupe|duplicate|trumped|retitled|` +
		`infohash not found|specifically banned` +
		`)\b`)
)

func stripTrackerURLs(message string) string {
	return trackerURLPattern.ReplaceAllString(message, " ")
}

// TrackerMessageMatchesDown reports whether the message describes a tracker
// outage rather than a torrent problem.
func TrackerMessageMatchesDown(message string) bool {
	if message == "" {
		return false
	}
	return trackerDownPattern.MatchString(stripTrackerURLs(message))
}

// TrackerMessageMatchesUnregistered reports whether the message says the
// tracker no longer knows this torrent.
func TrackerMessageMatchesUnregistered(message string) bool {
	if message == "" {
		return false
	}
	return trackerUnregisteredPattern.MatchString(stripTrackerURLs(message))
}

// TrackerHealth classifies a torrent's standing with its trackers.
type TrackerHealth int

const (
	// TrackerHealthy means at least one real tracker answers normally, or
	// nothing indicates a problem.
	TrackerHealthy TrackerHealth = iota
	// TrackerDown means no tracker answers and the failures look like
	// outages, not removal.
	TrackerDown
	// TrackerUnregistered means no tracker answers and at least one
	// explicitly disowns the torrent.
	TrackerUnregistered
)

// EvaluateTrackerHealth inspects a torrent's tracker list. A single healthy
// tracker keeps the torrent registered regardless of what the others say, and
// outage messages never escalate to unregistered.
func EvaluateTrackerHealth(trackers []qbt.TorrentTracker) (TrackerHealth, string) {
	var unregisteredMsg, downMsg string
	for _, tracker := range trackers {
		// DHT, PeX and LSD show up as disabled pseudo-entries.
		if tracker.Status == qbt.TrackerStatusDisabled || tracker.Url == "" {
			continue
		}

		switch {
		case tracker.Status == qbt.TrackerStatusOK:
			return TrackerHealthy, ""
		case TrackerMessageMatchesUnregistered(tracker.Message):
			if unregisteredMsg == "" {
				unregisteredMsg = tracker.Message
			}
		case TrackerMessageMatchesDown(tracker.Message):
			if downMsg == "" {
				downMsg = tracker.Message
			}
		}
	}

	if unregisteredMsg != "" {
		return TrackerUnregistered, unregisteredMsg
	}
	if downMsg != "" {
		return TrackerDown, downMsg
	}
	return TrackerHealthy, ""
}

// TrackerHealth fetches a torrent's tracker list and classifies its standing.
func (c *Client) TrackerHealth(ctx context.Context, hash string) (TrackerHealth, string, error) {
	trackers, err := c.GetTorrentTrackersCtx(ctx, hash)
	if err != nil {
		return TrackerHealthy, "", fmt.Errorf("get trackers for %s: %w", hash, err)
	}

	health, message := EvaluateTrackerHealth(trackers)
	return health, message, nil
}
