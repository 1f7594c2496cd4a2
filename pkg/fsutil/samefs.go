// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package fsutil provides filesystem utilities shared by the mover and the
// orphan recycle bin.
package fsutil

import (
	"errors"
	"fmt"
	"os"
)

// SameFilesystem reports whether two paths live on the same filesystem, which
// decides between an atomic rename and a file-by-file copy.
//
// Implementation is platform-specific:
//   - Unix: compares device IDs from stat(2)
//   - Windows: compares volume serial numbers
func SameFilesystem(path1, path2 string) (bool, error) {
	if path1 == "" || path2 == "" {
		return false, errors.New("path must not be empty")
	}

	fi1, err := os.Stat(path1)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path1, err)
	}
	fi2, err := os.Stat(path2)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path2, err)
	}

	return sameFilesystem(fi1, path1, fi2, path2)
}
