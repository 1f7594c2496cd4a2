// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Config represents the application configuration
type Config struct {
	Version       string
	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	BaseURL       string `toml:"baseUrl" mapstructure:"baseUrl"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`

	CheckForUpdates bool `toml:"checkForUpdates" mapstructure:"checkForUpdates"`
	MetricsEnabled  bool `toml:"metricsEnabled" mapstructure:"metricsEnabled"`

	// Pprof settings expose Go profiling on a separate listener. Never expose
	// that listener beyond localhost.
	PprofEnabled bool   `toml:"pprofEnabled" mapstructure:"pprofEnabled"`
	PprofHost    string `toml:"pprofHost" mapstructure:"pprofHost"`
	PprofPort    int    `toml:"pprofPort" mapstructure:"pprofPort"`

	// APIKeyHash is the argon2id digest of the API key. Generate with
	// `sweeparr apikey generate`. An empty value disables the HTTP API
	// except for the health endpoint.
	APIKeyHash  string   `toml:"apiKeyHash" mapstructure:"apiKeyHash"`
	CORSOrigins []string `toml:"corsOrigins" mapstructure:"corsOrigins"`

	// NotificationURLs are shoutrrr URLs (discord://, telegram://, ...).
	NotificationURLs []string `toml:"notificationUrls" mapstructure:"notificationUrls"`

	QBittorrent QBittorrentConfig `toml:"qbittorrent" mapstructure:"qbittorrent"`
	Limits      LimitsConfig      `toml:"limits" mapstructure:"limits"`
	Behavior    BehaviorConfig    `toml:"behavior" mapstructure:"behavior"`
	Schedule    ScheduleConfig    `toml:"schedule" mapstructure:"schedule"`
	FileFlows   FileFlowsConfig   `toml:"fileflows" mapstructure:"fileflows"`
	Orphans     OrphanConfig      `toml:"orphans" mapstructure:"orphans"`
}

// QBittorrentConfig holds daemon connection settings.
type QBittorrentConfig struct {
	Host          string `toml:"host" mapstructure:"host"`
	Username      string `toml:"username" mapstructure:"username"`
	Password      string `toml:"password" mapstructure:"password"`
	BasicUser     string `toml:"basicUser" mapstructure:"basicUser"`
	BasicPass     string `toml:"basicPass" mapstructure:"basicPass"`
	TLSSkipVerify bool   `toml:"tlsSkipVerify" mapstructure:"tlsSkipVerify"`
}

// LimitsConfig holds retention thresholds. Private/public values fall back to
// the fallback values when unset (<0 means unset so explicit 0 still works).
type LimitsConfig struct {
	FallbackRatio float64 `toml:"fallbackRatio" mapstructure:"fallbackRatio"`
	FallbackDays  float64 `toml:"fallbackDays" mapstructure:"fallbackDays"`

	PrivateRatio float64 `toml:"privateRatio" mapstructure:"privateRatio"`
	PrivateDays  float64 `toml:"privateDays" mapstructure:"privateDays"`
	PublicRatio  float64 `toml:"publicRatio" mapstructure:"publicRatio"`
	PublicDays   float64 `toml:"publicDays" mapstructure:"publicDays"`

	// Ignore the daemon's own share limits when deriving effective limits.
	IgnoreDaemonRatioPrivate bool `toml:"ignoreDaemonRatioPrivate" mapstructure:"ignoreDaemonRatioPrivate"`
	IgnoreDaemonRatioPublic  bool `toml:"ignoreDaemonRatioPublic" mapstructure:"ignoreDaemonRatioPublic"`
	IgnoreDaemonTimePrivate  bool `toml:"ignoreDaemonTimePrivate" mapstructure:"ignoreDaemonTimePrivate"`
	IgnoreDaemonTimePublic   bool `toml:"ignoreDaemonTimePublic" mapstructure:"ignoreDaemonTimePublic"`
}

// BehaviorConfig holds deletion behavior settings.
type BehaviorConfig struct {
	DeleteFiles bool `toml:"deleteFiles" mapstructure:"deleteFiles"`
	DryRun      bool `toml:"dryRun" mapstructure:"dryRun"`

	CheckPausedOnly        bool  `toml:"checkPausedOnly" mapstructure:"checkPausedOnly"`
	CheckPrivatePausedOnly *bool `toml:"checkPrivatePausedOnly" mapstructure:"checkPrivatePausedOnly"`
	CheckPublicPausedOnly  *bool `toml:"checkPublicPausedOnly" mapstructure:"checkPublicPausedOnly"`

	ForceDeleteHours        float64  `toml:"forceDeleteHours" mapstructure:"forceDeleteHours"`
	ForceDeletePrivateHours *float64 `toml:"forceDeletePrivateHours" mapstructure:"forceDeletePrivateHours"`
	ForceDeletePublicHours  *float64 `toml:"forceDeletePublicHours" mapstructure:"forceDeletePublicHours"`

	CleanupStalled        bool     `toml:"cleanupStalled" mapstructure:"cleanupStalled"`
	MaxStalledDays        float64  `toml:"maxStalledDays" mapstructure:"maxStalledDays"`
	MaxStalledPrivateDays *float64 `toml:"maxStalledPrivateDays" mapstructure:"maxStalledPrivateDays"`
	MaxStalledPublicDays  *float64 `toml:"maxStalledPublicDays" mapstructure:"maxStalledPublicDays"`
	DeleteUnregistered    bool     `toml:"deleteUnregistered" mapstructure:"deleteUnregistered"`
	MaxUnregisteredHours  float64  `toml:"maxUnregisteredHours" mapstructure:"maxUnregisteredHours"`

	// ProtectExpr is an optional expression evaluated per torrent; a truthy
	// result protects the torrent from every deletion rule. Fields: Name,
	// Category, Tags, Tracker, Ratio, SeedingTimeDays, IsPrivate, State.
	ProtectExpr string `toml:"protectExpr" mapstructure:"protectExpr"`
}

// ScheduleConfig holds scheduler settings.
type ScheduleConfig struct {
	IntervalHours int  `toml:"intervalHours" mapstructure:"intervalHours"`
	RunOnce       bool `toml:"runOnce" mapstructure:"runOnce"`
}

// FileFlowsConfig holds processing-guard settings.
type FileFlowsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Host    string `toml:"host" mapstructure:"host"`
	Port    int    `toml:"port" mapstructure:"port"`
	Timeout int    `toml:"timeout" mapstructure:"timeout"`
}

// OrphanConfig holds orphan reconciliation settings.
type OrphanConfig struct {
	Enabled       bool     `toml:"enabled" mapstructure:"enabled"`
	ScanDirs      []string `toml:"scanDirs" mapstructure:"scanDirs"`
	IgnorePaths   []string `toml:"ignorePaths" mapstructure:"ignorePaths"`
	MinAgeHours   float64  `toml:"minAgeHours" mapstructure:"minAgeHours"`
	IntervalHours int      `toml:"intervalHours" mapstructure:"intervalHours"`

	// RecycleDir, when set, receives orphans instead of deleting them.
	RecycleDir           string `toml:"recycleDir" mapstructure:"recycleDir"`
	RecycleRetentionDays int    `toml:"recycleRetentionDays" mapstructure:"recycleRetentionDays"`
}

// unsetLimit marks a per-class limit as "not configured" so the fallback or the
// daemon's own limit applies. Explicit zero remains a valid configured value.
const unsetLimit = -1

// Defaults returns a Config populated with the documented default values.
func Defaults() Config {
	return Config{
		Host:          "127.0.0.1",
		Port:          7879,
		LogLevel:      "INFO",
		LogMaxSize:    50,
		LogMaxBackups: 3,
		PprofHost:     "127.0.0.1",
		PprofPort:     6060,
		QBittorrent: QBittorrentConfig{
			Host:     "http://localhost:8080",
			Username: "admin",
		},
		Limits: LimitsConfig{
			FallbackRatio: 1.0,
			FallbackDays:  7.0,
			PrivateRatio:  unsetLimit,
			PrivateDays:   unsetLimit,
			PublicRatio:   unsetLimit,
			PublicDays:    unsetLimit,
		},
		Behavior: BehaviorConfig{
			DeleteFiles:          true,
			MaxStalledDays:       3.0,
			MaxUnregisteredHours: 24.0,
		},
		Schedule: ScheduleConfig{
			IntervalHours: 24,
		},
		FileFlows: FileFlowsConfig{
			Host:    "localhost",
			Port:    19200,
			Timeout: 10,
		},
		Orphans: OrphanConfig{
			MinAgeHours:          1.0,
			IntervalHours:        168,
			RecycleRetentionDays: 7,
		},
	}
}

// RatioFor returns the configured ratio limit for the privacy class, or the
// fallback when the class has no explicit value.
func (l LimitsConfig) RatioFor(private bool) float64 {
	v := l.PublicRatio
	if private {
		v = l.PrivateRatio
	}
	if v < 0 {
		return l.FallbackRatio
	}
	return v
}

// DaysFor returns the configured day limit for the privacy class, or the
// fallback when the class has no explicit value.
func (l LimitsConfig) DaysFor(private bool) float64 {
	v := l.PublicDays
	if private {
		v = l.PrivateDays
	}
	if v < 0 {
		return l.FallbackDays
	}
	return v
}

// PausedOnlyFor returns the paused-only gate for the privacy class.
func (b BehaviorConfig) PausedOnlyFor(private bool) bool {
	if private && b.CheckPrivatePausedOnly != nil {
		return *b.CheckPrivatePausedOnly
	}
	if !private && b.CheckPublicPausedOnly != nil {
		return *b.CheckPublicPausedOnly
	}
	return b.CheckPausedOnly
}

// ForceDeleteHoursFor returns the force-delete grace period for the privacy class.
func (b BehaviorConfig) ForceDeleteHoursFor(private bool) float64 {
	if private && b.ForceDeletePrivateHours != nil {
		return *b.ForceDeletePrivateHours
	}
	if !private && b.ForceDeletePublicHours != nil {
		return *b.ForceDeletePublicHours
	}
	return b.ForceDeleteHours
}

// MaxStalledDaysFor returns the stalled-day limit for the privacy class.
func (b BehaviorConfig) MaxStalledDaysFor(private bool) float64 {
	if private && b.MaxStalledPrivateDays != nil {
		return *b.MaxStalledPrivateDays
	}
	if !private && b.MaxStalledPublicDays != nil {
		return *b.MaxStalledPublicDays
	}
	return b.MaxStalledDays
}

// Validate checks settings that would otherwise fail deep into a cycle.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if strings.TrimSpace(c.QBittorrent.Host) == "" {
		return errors.New("qbittorrent.host is required")
	}
	if c.Schedule.IntervalHours < 1 {
		return errors.New("schedule.intervalHours must be >= 1")
	}
	for _, dir := range c.Orphans.ScanDirs {
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("orphans.scanDirs entry must be absolute: %s", dir)
		}
	}
	if c.Orphans.RecycleDir != "" && !filepath.IsAbs(c.Orphans.RecycleDir) {
		return fmt.Errorf("orphans.recycleDir must be absolute: %s", c.Orphans.RecycleDir)
	}
	return nil
}
