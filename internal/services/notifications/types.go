// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package notifications

type EventType string

const (
	EventCleanupCompleted    EventType = "cleanup_completed"
	EventCleanupFailed       EventType = "cleanup_failed"
	EventOrphanScanCompleted EventType = "orphan_scan_completed"
	EventOrphanScanFailed    EventType = "orphan_scan_failed"
)

// CleanupSummary aggregates one cleanup cycle for notifications and the
// status API.
type CleanupSummary struct {
	TotalChecked        int   `json:"totalChecked"`
	TotalDeleted        int   `json:"totalDeleted"`
	PrivateDeleted      int   `json:"privateDeleted"`
	PublicDeleted       int   `json:"publicDeleted"`
	StalledDeleted      int   `json:"stalledDeleted"`
	UnregisteredDeleted int   `json:"unregisteredDeleted"`
	ProtectedCount      int   `json:"protectedCount"`
	OrphanFilesRemoved  int   `json:"orphanFilesRemoved"`
	OrphanDirsRemoved   int   `json:"orphanDirsRemoved"`
	ReclaimedBytes      int64 `json:"reclaimedBytes"`
	DryRun              bool  `json:"dryRun"`
}

// Event is one notifiable occurrence. Fields beyond Type are filled per
// event kind.
type Event struct {
	Type EventType

	// Cleanup events.
	Summary *CleanupSummary

	// Orphan scan events.
	OrphanRunID          int64
	OrphanFilesRemoved   int
	OrphanDirsRemoved    int
	OrphanReclaimedBytes int64
	OrphanDryRun         bool

	ErrorMessage string
}
