// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cleanup

import (
	"sync"
	"time"

	"github.com/autobrr/sweeparr/internal/services/notifications"
)

// Status is a point-in-time view of the scheduler, safe to hand to the API.
type Status struct {
	Running         bool                          `json:"running"`
	CyclesRun       int                           `json:"cyclesRun"`
	LastStartedAt   *time.Time                    `json:"lastStartedAt,omitempty"`
	LastCompletedAt *time.Time                    `json:"lastCompletedAt,omitempty"`
	NextRunAt       *time.Time                    `json:"nextRunAt,omitempty"`
	LastDuration    float64                       `json:"lastDurationSeconds"`
	LastError       string                        `json:"lastError,omitempty"`
	LastSummary     *notifications.CleanupSummary `json:"lastSummary,omitempty"`
}

// statusTracker owns the scheduler's shared state. Everything outside the
// scheduler goroutine reads it through Snapshot only.
type statusTracker struct {
	mu  sync.RWMutex
	cur Status
}

func (t *statusTracker) beginCycle(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	started := now
	t.cur.Running = true
	t.cur.LastStartedAt = &started
	t.cur.LastError = ""
}

func (t *statusTracker) endCycle(now time.Time, duration time.Duration, err error, summary *notifications.CleanupSummary) {
	t.mu.Lock()
	defer t.mu.Unlock()

	completed := now
	t.cur.Running = false
	t.cur.CyclesRun++
	t.cur.LastCompletedAt = &completed
	t.cur.LastDuration = duration.Seconds()
	if err != nil {
		t.cur.LastError = err.Error()
		return
	}
	t.cur.LastSummary = summary
}

func (t *statusTracker) setNextRun(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := at
	t.cur.NextRunAt = &next
}

// Snapshot returns a copy; the summary pointer is duplicated so callers can
// never alias the tracker's view.
func (t *statusTracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := t.cur
	if t.cur.LastSummary != nil {
		summary := *t.cur.LastSummary
		out.LastSummary = &summary
	}
	return out
}
