// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cleanup

import (
	"fmt"

	qbt "github.com/autobrr/go-qbittorrent"

	"github.com/autobrr/sweeparr/internal/qbittorrent"
)

const (
	secondsPerHour = 3600.0
	secondsPerDay  = 86400.0
)

// DeletionReason explains why a torrent was selected for removal.
type DeletionReason string

const (
	ReasonRatioExceeded  DeletionReason = "ratio_exceeded"
	ReasonTimeExceeded   DeletionReason = "time_exceeded"
	ReasonBothExceeded   DeletionReason = "both_limits_exceeded"
	ReasonForceDelete    DeletionReason = "force_delete"
	ReasonStalledTooLong DeletionReason = "stalled_too_long"
	ReasonUnregistered   DeletionReason = "unregistered"
)

// Item is one torrent from a daemon snapshot, enriched with everything the
// classifier needs so classification itself stays free of network calls.
type Item struct {
	Hash        string
	Name        string
	Category    string
	Tags        string
	Tracker     string
	State       qbt.TorrentState
	Ratio       float64
	SeedingTime int64 // seconds
	Private     bool
	ContentPath string
	SavePath    string

	// TrackerHealth is only populated when unregistered cleanup is enabled.
	TrackerHealth  qbittorrent.TrackerHealth
	TrackerMessage string
}

func (i Item) Paused() bool {
	return qbittorrent.IsPausedState(i.State)
}

func (i Item) Downloading() bool {
	return qbittorrent.IsDownloadingState(i.State)
}

func (i Item) Stalled() bool {
	return qbittorrent.IsStalledDownloadState(i.State)
}

// SeedingDays returns the seeding time in days.
func (i Item) SeedingDays() float64 {
	return float64(i.SeedingTime) / secondsPerDay
}

// ClassLimits are the thresholds applied to one privacy class.
type ClassLimits struct {
	Ratio float64
	Days  float64
}

// Seconds returns the seeding-time threshold in seconds.
func (l ClassLimits) Seconds() float64 {
	return l.Days * secondsPerDay
}

// Candidate is a torrent selected for deletion, with enough context to
// explain the decision in logs and notifications.
type Candidate struct {
	Item   Item
	Reason DeletionReason
	Limits ClassLimits

	// ExcessHours is set for force deletions, StalledDays for stalled ones.
	ExcessHours float64
	StalledDays float64

	// TrackerMessage is set for unregistered deletions.
	TrackerMessage string
}

// FormatReason renders the decision factors for human-readable logs.
func (c Candidate) FormatReason() string {
	switch c.Reason {
	case ReasonStalledTooLong:
		return fmt.Sprintf("state=%s, stalled=%.1f/%.1fd", c.Item.State, c.StalledDays, c.Limits.Days)
	case ReasonUnregistered:
		return fmt.Sprintf("state=%s, tracker=%q", c.Item.State, c.TrackerMessage)
	case ReasonForceDelete:
		return fmt.Sprintf("state=%s, ratio=%.2f/%.2f, time=%.1f/%.1fd, excess=%.1fh",
			c.Item.State, c.Item.Ratio, c.Limits.Ratio, c.Item.SeedingDays(), c.Limits.Days, c.ExcessHours)
	default:
		return fmt.Sprintf("state=%s, ratio=%.2f/%.2f, time=%.1f/%.1fd",
			c.Item.State, c.Item.Ratio, c.Limits.Ratio, c.Item.SeedingDays(), c.Limits.Days)
	}
}

// Result buckets one snapshot's torrents by classification outcome. The
// buckets are mutually exclusive: a hash appears in at most one.
type Result struct {
	// ToDelete holds torrents past their retention limits, force-delete
	// escalations and unregistered removals.
	ToDelete []Candidate
	// Stalled holds downloads stalled longer than their limit.
	Stalled []Candidate
	// PausedNotReady lists paused torrents still under their limits.
	PausedNotReady []Item
	// Protected lists torrents a guard kept out of the deletion buckets.
	Protected []Item
}

// Candidates returns every deletion candidate across both buckets.
func (r *Result) Candidates() []Candidate {
	out := make([]Candidate, 0, len(r.ToDelete)+len(r.Stalled))
	out = append(out, r.ToDelete...)
	out = append(out, r.Stalled...)
	return out
}

// TotalDeletions counts candidates across both deletion buckets.
func (r *Result) TotalDeletions() int {
	return len(r.ToDelete) + len(r.Stalled)
}

// Stats summarizes the deletion buckets for logging and notifications.
type Stats struct {
	Total        int
	Completed    int
	Stalled      int
	Unregistered int
	Private      int
	Public       int
}

func (r *Result) Stats() Stats {
	stats := Stats{
		Total:     r.TotalDeletions(),
		Completed: len(r.ToDelete),
		Stalled:   len(r.Stalled),
	}
	for _, c := range r.Candidates() {
		if c.Item.Private {
			stats.Private++
		} else {
			stats.Public++
		}
		if c.Reason == ReasonUnregistered {
			stats.Unregistered++
		}
	}
	return stats
}

// truncateName keeps log lines readable for torrents with very long names.
func truncateName(name string) string {
	const limit = 60
	runes := []rune(name)
	if len(runes) <= limit {
		return name
	}
	return string(runes[:limit-3]) + "..."
}
