// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	qbt "github.com/autobrr/go-qbittorrent"
)

// IsPausedState reports whether the torrent is paused. qBittorrent 5 renamed
// the paused states to stopped, so both families count.
func IsPausedState(state qbt.TorrentState) bool {
	switch state {
	case qbt.TorrentStatePausedUp, qbt.TorrentStatePausedDl,
		qbt.TorrentStateStoppedUp, qbt.TorrentStateStoppedDl:
		return true
	default:
		return false
	}
}

// IsDownloadingState reports whether the torrent is still acquiring data,
// including queued, allocating and metadata phases.
func IsDownloadingState(state qbt.TorrentState) bool {
	switch state {
	case qbt.TorrentStateDownloading, qbt.TorrentStateStalledDl,
		qbt.TorrentStateQueuedDl, qbt.TorrentStateAllocating,
		qbt.TorrentStateMetaDl:
		return true
	default:
		return false
	}
}

// IsStalledDownloadState reports whether the download is stalled. Only the
// download-side stall counts; stalledUP is a healthy seeding state.
func IsStalledDownloadState(state qbt.TorrentState) bool {
	return state == qbt.TorrentStateStalledDl
}
