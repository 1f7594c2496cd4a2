// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/domain"
	"github.com/autobrr/sweeparr/pkg/redact"
)

const (
	connectAttempts   = 3
	connectRetryDelay = 5 * time.Second
	requestTimeout    = 30 * time.Second
)

// nativePrivateVersion is the first qBittorrent release whose torrent listing
// carries the per-torrent private flag.
var nativePrivateVersion = semver.MustParse("5.0.0")

// Client wraps the qBittorrent connection for a single daemon: connect with
// retries, health checks with re-login, and the privacy/limits helpers the
// classifier needs.
type Client struct {
	*qbt.Client

	appVersion         string
	webAPIVersion      string
	hasNativePrivate   bool
	privacyMethodShown bool

	lastHealthCheck time.Time
	isHealthy       bool
	mu              sync.RWMutex

	privacyMu    sync.Mutex
	privacyCache map[string]bool

	preferencesMu        sync.RWMutex
	preferencesCache     *qbt.AppPreferences
	preferencesFetchedAt time.Time
}

// filteredWriter wraps stderr to filter out HTTP "unsolicited response" errors.
//
// qBittorrent occasionally sends extra HTTP responses after the main request completes,
// which causes Go's HTTP client to log "Unsolicited response received on idle HTTP channel"
// errors to stderr. While these don't affect functionality, they create noise in the logs.
//
// Since the go-qbittorrent library doesn't expose HTTP client configuration, we filter
// these specific messages at the standard library log level to keep logs clean.
type filteredWriter struct {
	writer io.Writer
}

func (fw *filteredWriter) Write(p []byte) (n int, err error) {
	if strings.Contains(string(p), "Unsolicited response received on idle HTTP channel") {
		return len(p), nil
	}
	return fw.writer.Write(p)
}

func init() {
	stdlog.SetOutput(&filteredWriter{writer: os.Stderr})
}

// NewClient connects to the daemon, retrying a few times so a cleanup run
// survives qBittorrent restarting under it.
func NewClient(ctx context.Context, cfg domain.QBittorrentConfig) (*Client, error) {
	qbtCfg := qbt.Config{
		Host:          cfg.Host,
		Username:      cfg.Username,
		Password:      cfg.Password,
		Timeout:       30,
		TLSSkipVerify: cfg.TLSSkipVerify,
	}

	if cfg.BasicUser != "" {
		qbtCfg.BasicUser = cfg.BasicUser
		qbtCfg.BasicPass = cfg.BasicPass
	}

	qbtClient := qbt.NewClient(qbtCfg)

	err := retry.Do(
		func() error {
			loginCtx, cancel := context.WithTimeout(ctx, requestTimeout)
			defer cancel()
			return qbtClient.LoginCtx(loginCtx)
		},
		retry.Attempts(connectAttempts),
		retry.Delay(connectRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			// Auth-gateway tokens in the daemon URL stay out of the logs.
			log.Warn().Err(redact.URLError(err)).Uint("attempt", n+1).Msg("qbittorrent: connection attempt failed, retrying")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to qBittorrent at %s: %w", cfg.Host, redact.URLError(err))
	}

	infoCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	appVersion, err := qbtClient.GetAppVersionCtx(infoCtx)
	if err != nil {
		appVersion = ""
	}
	webAPIVersion, err := qbtClient.GetWebAPIVersionCtx(infoCtx)
	if err != nil {
		webAPIVersion = ""
	}

	client := &Client{
		Client:           qbtClient,
		appVersion:       strings.TrimSpace(appVersion),
		webAPIVersion:    strings.TrimSpace(webAPIVersion),
		hasNativePrivate: versionAtLeast(appVersion, nativePrivateVersion),
		lastHealthCheck:  time.Now(),
		isHealthy:        true,
		privacyCache:     make(map[string]bool),
	}

	log.Info().
		Str("host", cfg.Host).
		Str("version", client.appVersion).
		Str("webAPIVersion", client.webAPIVersion).
		Msg("qbittorrent: connected")

	return client, nil
}

// versionAtLeast reports whether the daemon version string (e.g. "v5.0.2")
// reaches min. Unparseable versions count as too old.
func versionAtLeast(version string, min *semver.Version) bool {
	v, err := semver.NewVersion(strings.TrimPrefix(strings.TrimSpace(version), "v"))
	if err != nil {
		return false
	}
	return !v.LessThan(min)
}

func (c *Client) AppVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.appVersion
}

func (c *Client) WebAPIVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.webAPIVersion
}

func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isHealthy
}

func (c *Client) LastHealthCheck() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastHealthCheck
}

// HealthCheck probes the API and re-logs-in once when the session expired.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.GetWebAPIVersionCtx(ctx)
	if err != nil {
		if loginErr := c.LoginCtx(ctx); loginErr != nil {
			c.setHealth(false)
			return fmt.Errorf("health check failed: login error: %w", redact.URLError(loginErr))
		}
		if _, err = c.GetWebAPIVersionCtx(ctx); err != nil {
			c.setHealth(false)
			return fmt.Errorf("health check failed: api error: %w", redact.URLError(err))
		}
	}

	c.setHealth(true)
	return nil
}

func (c *Client) setHealth(healthy bool) {
	c.mu.Lock()
	c.isHealthy = healthy
	c.lastHealthCheck = time.Now()
	c.mu.Unlock()
}

// ListTorrents returns a full snapshot of the daemon's torrents. Seeding time
// is clamped at zero here so later arithmetic never sees the daemon's -1
// "not started" marker.
func (c *Client) ListTorrents(ctx context.Context) ([]qbt.Torrent, error) {
	torrents, err := c.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{})
	if err != nil {
		return nil, fmt.Errorf("list torrents: %w", err)
	}

	for i := range torrents {
		if torrents[i].SeedingTime < 0 {
			torrents[i].SeedingTime = 0
		}
	}

	return torrents, nil
}

// DeleteTorrents removes the given torrents. Callers must not retry a failed
// delete within the same cycle; a partial failure here leaves the survivors
// for the next run.
func (c *Client) DeleteTorrents(ctx context.Context, hashes []string, deleteFiles bool) error {
	if len(hashes) == 0 {
		return nil
	}

	if err := c.DeleteTorrentsCtx(ctx, hashes, deleteFiles); err != nil {
		return fmt.Errorf("delete %d torrents: %w", len(hashes), err)
	}
	return nil
}

// TorrentFilePaths returns the relative paths of the torrent's files, used to
// build the FileFlows protection lookup and the orphan active set.
func (c *Client) TorrentFilePaths(ctx context.Context, hash string) ([]string, error) {
	files, err := c.GetFilesInformationCtx(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("get files for %s: %w", hash, err)
	}
	if files == nil {
		return nil, nil
	}

	paths := make([]string, 0, len(*files))
	for _, f := range *files {
		paths = append(paths, f.Name)
	}
	return paths, nil
}
