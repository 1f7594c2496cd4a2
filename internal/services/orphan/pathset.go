// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphan

import (
	"path"
	"runtime"
	"strings"

	"github.com/autobrr/sweeparr/pkg/pathcmp"
)

// PathSet is the inventory of paths owned by tracked torrents. Members are
// the exact active locations plus every directory between them and their save
// root; a separate ancestor index answers "does anything active live under
// this path" in constant time.
type PathSet struct {
	active map[string]struct{}
	// ancestors holds every directory above an active path, all the way to
	// the filesystem root, so scan roots far above the save roots still
	// resolve as covering.
	ancestors map[string]struct{}
}

func NewPathSet() *PathSet {
	return &PathSet{
		active:    make(map[string]struct{}),
		ancestors: make(map[string]struct{}),
	}
}

// Add records one active path.
func (s *PathSet) Add(p string) {
	p = normalizePath(p)
	if p == "" || p == "." {
		return
	}
	s.active[p] = struct{}{}

	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		s.ancestors[dir] = struct{}{}
		// path.Dir yields the bare drive ("c:") for Windows drive children;
		// record the root spelling too so Covers("c:/") matches.
		if len(dir) == 2 && dir[1] == ':' {
			s.ancestors[dir+"/"] = struct{}{}
		}
		if dir == path.Dir(dir) {
			break
		}
	}
}

// AddWithAncestors records an active path and every directory strictly
// between it and stop. The stop path itself is not added.
func (s *PathSet) AddWithAncestors(p, stop string) {
	s.Add(p)

	stop = normalizePath(stop)
	for dir := path.Dir(normalizePath(p)); dir != stop; dir = path.Dir(dir) {
		if dir == path.Dir(dir) {
			break
		}
		s.active[dir] = struct{}{}
	}
}

// Len returns the number of active paths.
func (s *PathSet) Len() int {
	return len(s.active)
}

// Contains reports whether the exact path is active.
func (s *PathSet) Contains(p string) bool {
	_, ok := s.active[normalizePath(p)]
	return ok
}

// Covers reports whether any active path lives somewhere under path.
func (s *PathSet) Covers(p string) bool {
	_, ok := s.ancestors[normalizePath(p)]
	return ok
}

// IsActive reports whether the path is owned by a tracked torrent, in either
// containment direction: the path itself is active, something active lives
// under it, or it lives inside an active directory. The walk visits both a
// container and its contents independently, so both directions are required.
func (s *PathSet) IsActive(p string) bool {
	p = normalizePath(p)

	if _, ok := s.active[p]; ok {
		return true
	}
	if _, ok := s.ancestors[p]; ok {
		return true
	}

	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		if _, ok := s.active[dir]; ok {
			return true
		}
		if dir == path.Dir(dir) {
			return false
		}
	}
}

// normalizePath puts daemon-reported and locally-walked paths into one
// comparison space. The daemon reports forward-slashed paths even for Windows
// save locations, so separators are unified before comparing; Windows paths
// are also case-folded to match filesystem semantics.
func normalizePath(p string) string {
	p = pathcmp.NormalizePath(p)
	if runtime.GOOS == "windows" {
		p = strings.ToLower(p)
	}
	return p
}
