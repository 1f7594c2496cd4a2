// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build windows

package fsutil

import (
	"os"
	"syscall"
)

// fileReadAttributes is the Windows access right for reading file attributes.
// Required for GetFileInformationByHandle to reliably work on all filesystem types.
const fileReadAttributes = 0x0080

func sameFilesystem(_ os.FileInfo, path1 string, _ os.FileInfo, path2 string) (bool, error) {
	vol1, err := volumeSerialNumber(path1)
	if err != nil {
		return false, err
	}
	vol2, err := volumeSerialNumber(path2)
	if err != nil {
		return false, err
	}
	return vol1 == vol2, nil
}

func volumeSerialNumber(path string) (uint32, error) {
	pathp, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}

	// Full sharing mode so files open in another process do not fail the probe.
	shareMode := uint32(syscall.FILE_SHARE_READ | syscall.FILE_SHARE_WRITE | syscall.FILE_SHARE_DELETE)
	h, err := syscall.CreateFile(pathp, fileReadAttributes, shareMode, nil, syscall.OPEN_EXISTING, syscall.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return 0, err
	}
	defer syscall.CloseHandle(h)

	var info syscall.ByHandleFileInformation
	if err := syscall.GetFileInformationByHandle(h, &info); err != nil {
		return 0, err
	}

	return info.VolumeSerialNumber, nil
}
