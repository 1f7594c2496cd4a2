// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package fileflows protects torrents whose files a FileFlows server is
// still working on. The cleanup cycle refreshes the protection set once per
// run and asks IsProtected before emitting any deletion candidate.
package fileflows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/domain"
	"github.com/autobrr/sweeparr/pkg/httphelpers"
	"github.com/autobrr/sweeparr/pkg/redact"
)

const (
	// statusProcessed and statusProcessing are FileFlows library file states.
	statusProcessed  = 1
	statusProcessing = 2

	// recentlyProcessedWindow keeps files protected shortly after FileFlows
	// finishes them, while the renamer or post-processing scripts may still
	// hold them open.
	recentlyProcessedWindow = 10 * time.Minute
)

// LibraryFile is the subset of the FileFlows library-file record we read.
type LibraryFile struct {
	Name            string `json:"Name"`
	RelativePath    string `json:"RelativePath"`
	Status          int    `json:"Status"`
	ProcessingEnded string `json:"ProcessingEnded"`
}

// Client queries a FileFlows server and keeps the last successfully built
// protection set. A failed refresh leaves the previous set in place so a
// FileFlows outage never exposes in-flight files to deletion.
type Client struct {
	enabled    bool
	baseURL    string
	httpClient *http.Client

	now func() time.Time

	mu          sync.RWMutex
	names       map[string]struct{}
	stems       map[string]struct{}
	lastRefresh time.Time
}

func NewClient(cfg domain.FileFlowsConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		enabled:    cfg.Enabled,
		baseURL:    fmt.Sprintf("http://%s:%d/api", cfg.Host, cfg.Port),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

func (c *Client) Enabled() bool {
	return c.enabled
}

// LastRefresh returns when the protection set was last rebuilt successfully.
func (c *Client) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

// ProtectedCount returns the number of distinct protected file names.
func (c *Client) ProtectedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// TestConnection probes the FileFlows status endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	if !c.enabled {
		return fmt.Errorf("fileflows integration is disabled")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return fmt.Errorf("create status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fileflows status: %w", redact.URLError(err))
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fileflows status returned %d", resp.StatusCode)
	}
	return nil
}

// Refresh rebuilds the protection set from the FileFlows library listing.
// On failure the previous set is kept and the error returned, so callers can
// log the staleness and carry on protected.
func (c *Client) Refresh(ctx context.Context) error {
	if !c.enabled {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/library-file", nil)
	if err != nil {
		return fmt.Errorf("create library-file request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fileflows library-file: %w", redact.URLError(err))
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fileflows library-file returned %d", resp.StatusCode)
	}

	var files []LibraryFile
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return fmt.Errorf("decode library-file response: %w", err)
	}

	now := c.now()
	names := make(map[string]struct{})
	stems := make(map[string]struct{})
	active := 0

	for _, f := range files {
		if !c.isActive(f, now) {
			continue
		}
		active++
		for _, p := range []string{f.RelativePath, f.Name} {
			if p == "" {
				continue
			}
			name := filepath.Base(filepath.ToSlash(p))
			names[name] = struct{}{}
			stems[strings.TrimSuffix(name, filepath.Ext(name))] = struct{}{}
		}
	}

	c.mu.Lock()
	c.names = names
	c.stems = stems
	c.lastRefresh = now
	c.mu.Unlock()

	if active > 0 {
		log.Info().Int("files", active).Int("names", len(names)).Msg("fileflows: protection set rebuilt")
	} else {
		log.Debug().Msg("fileflows: no files processing")
	}
	return nil
}

// isActive reports whether the file is processing now or finished recently
// enough to still be protected.
func (c *Client) isActive(f LibraryFile, now time.Time) bool {
	switch f.Status {
	case statusProcessing:
		return true
	case statusProcessed:
		if f.ProcessingEnded == "" {
			return false
		}
		ended, err := time.Parse(time.RFC3339, f.ProcessingEnded)
		if err != nil {
			return false
		}
		// FileFlows reports the epoch for files it never touched.
		if ended.Unix() <= 0 {
			return false
		}
		return now.Sub(ended) < recentlyProcessedWindow
	default:
		return false
	}
}

// IsProtected reports whether any of the torrent's files matches the
// protection set by base name or by stem. Stem matching covers FileFlows
// remuxes that change only the container extension.
func (c *Client) IsProtected(paths []string) bool {
	if !c.enabled || len(paths) == 0 {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.names) == 0 && len(c.stems) == 0 {
		return false
	}

	for _, p := range paths {
		name := filepath.Base(filepath.ToSlash(p))
		if _, ok := c.names[name]; ok {
			log.Info().Str("file", name).Msg("fileflows: file is processing, torrent protected")
			return true
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if _, ok := c.stems[stem]; ok {
			log.Info().Str("file", name).Msg("fileflows: file is processing, torrent protected")
			return true
		}
	}
	return false
}
