// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphan

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/bencode"
)

// maxTorrentFileSize caps how much of a stray .torrent file is read for the
// audit log. Real metadata files are a few hundred KB at most.
const maxTorrentFileSize = 10 << 20

// torrentFileName decodes a stray .torrent file and returns the release name
// embedded in it, for the audit log written before removal. Returns false for
// anything that does not parse as torrent metadata.
func torrentFileName(path string) (string, bool) {
	if !strings.EqualFold(filepath.Ext(path), ".torrent") {
		return "", false
	}

	info, err := os.Stat(path)
	if err != nil || info.Size() > maxTorrentFileSize {
		return "", false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}

	var meta struct {
		Info struct {
			Name string `bencode:"name"`
		} `bencode:"info"`
	}
	if err := bencode.DecodeBytes(data, &meta); err != nil || meta.Info.Name == "" {
		return "", false
	}
	return meta.Info.Name, true
}
