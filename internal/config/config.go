// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads the sweeparr configuration file, layers environment
// overrides on top and keeps the parsed snapshot fresh while the daemon runs.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/sweeparr/internal/domain"
	"github.com/autobrr/sweeparr/pkg/debounce"
)

const (
	// DefaultConfigName is the file sweeparr looks for inside a config directory.
	DefaultConfigName = "config.toml"

	envPrefix = "SWEEPARR__"

	reloadDebounce = 500 * time.Millisecond
)

// envBindings maps config keys to their environment override names. Every key
// stays overridable for container deployments where editing the config file is
// awkward. Overrides win over file values.
var envBindings = map[string]string{
	"host":             "HOST",
	"port":             "PORT",
	"baseUrl":          "BASE_URL",
	"logLevel":         "LOG_LEVEL",
	"logPath":          "LOG_PATH",
	"logMaxSize":       "LOG_MAX_SIZE",
	"logMaxBackups":    "LOG_MAX_BACKUPS",
	"dataDir":          "DATA_DIR",
	"checkForUpdates":  "CHECK_FOR_UPDATES",
	"metricsEnabled":   "METRICS_ENABLED",
	"pprofEnabled":     "PPROF_ENABLED",
	"pprofHost":        "PPROF_HOST",
	"pprofPort":        "PPROF_PORT",
	"apiKeyHash":       "API_KEY_HASH",
	"corsOrigins":      "CORS_ORIGINS",
	"notificationUrls": "NOTIFICATION_URLS",

	"qbittorrent.host":          "QBITTORRENT_HOST",
	"qbittorrent.username":      "QBITTORRENT_USERNAME",
	"qbittorrent.password":      "QBITTORRENT_PASSWORD",
	"qbittorrent.basicUser":     "QBITTORRENT_BASIC_USER",
	"qbittorrent.basicPass":     "QBITTORRENT_BASIC_PASS",
	"qbittorrent.tlsSkipVerify": "QBITTORRENT_TLS_SKIP_VERIFY",

	"limits.fallbackRatio":            "LIMITS_FALLBACK_RATIO",
	"limits.fallbackDays":             "LIMITS_FALLBACK_DAYS",
	"limits.privateRatio":             "LIMITS_PRIVATE_RATIO",
	"limits.privateDays":              "LIMITS_PRIVATE_DAYS",
	"limits.publicRatio":              "LIMITS_PUBLIC_RATIO",
	"limits.publicDays":               "LIMITS_PUBLIC_DAYS",
	"limits.ignoreDaemonRatioPrivate": "LIMITS_IGNORE_DAEMON_RATIO_PRIVATE",
	"limits.ignoreDaemonRatioPublic":  "LIMITS_IGNORE_DAEMON_RATIO_PUBLIC",
	"limits.ignoreDaemonTimePrivate":  "LIMITS_IGNORE_DAEMON_TIME_PRIVATE",
	"limits.ignoreDaemonTimePublic":   "LIMITS_IGNORE_DAEMON_TIME_PUBLIC",

	"behavior.deleteFiles":             "BEHAVIOR_DELETE_FILES",
	"behavior.dryRun":                  "BEHAVIOR_DRY_RUN",
	"behavior.checkPausedOnly":         "BEHAVIOR_CHECK_PAUSED_ONLY",
	"behavior.checkPrivatePausedOnly":  "BEHAVIOR_CHECK_PRIVATE_PAUSED_ONLY",
	"behavior.checkPublicPausedOnly":   "BEHAVIOR_CHECK_PUBLIC_PAUSED_ONLY",
	"behavior.forceDeleteHours":        "BEHAVIOR_FORCE_DELETE_HOURS",
	"behavior.forceDeletePrivateHours": "BEHAVIOR_FORCE_DELETE_PRIVATE_HOURS",
	"behavior.forceDeletePublicHours":  "BEHAVIOR_FORCE_DELETE_PUBLIC_HOURS",
	"behavior.cleanupStalled":          "BEHAVIOR_CLEANUP_STALLED",
	"behavior.maxStalledDays":          "BEHAVIOR_MAX_STALLED_DAYS",
	"behavior.maxStalledPrivateDays":   "BEHAVIOR_MAX_STALLED_PRIVATE_DAYS",
	"behavior.maxStalledPublicDays":    "BEHAVIOR_MAX_STALLED_PUBLIC_DAYS",
	"behavior.deleteUnregistered":      "BEHAVIOR_DELETE_UNREGISTERED",
	"behavior.maxUnregisteredHours":    "BEHAVIOR_MAX_UNREGISTERED_HOURS",
	"behavior.protectExpr":             "BEHAVIOR_PROTECT_EXPR",

	"schedule.intervalHours": "SCHEDULE_INTERVAL_HOURS",
	"schedule.runOnce":       "SCHEDULE_RUN_ONCE",

	"fileflows.enabled": "FILEFLOWS_ENABLED",
	"fileflows.host":    "FILEFLOWS_HOST",
	"fileflows.port":    "FILEFLOWS_PORT",
	"fileflows.timeout": "FILEFLOWS_TIMEOUT",

	"orphans.enabled":              "ORPHANS_ENABLED",
	"orphans.scanDirs":             "ORPHANS_SCAN_DIRS",
	"orphans.ignorePaths":          "ORPHANS_IGNORE_PATHS",
	"orphans.minAgeHours":          "ORPHANS_MIN_AGE_HOURS",
	"orphans.intervalHours":        "ORPHANS_INTERVAL_HOURS",
	"orphans.recycleDir":           "ORPHANS_RECYCLE_DIR",
	"orphans.recycleRetentionDays": "ORPHANS_RECYCLE_RETENTION_DAYS",
}

// AppConfig owns the configuration lifecycle: defaults, file, environment
// overrides, dynamic reload and persistence of runtime changes.
type AppConfig struct {
	viper      *viper.Viper
	configPath string

	mu       sync.RWMutex
	config   *domain.Config
	onReload func(domain.Config)
}

// New loads the configuration from configPath, which may name a file or a
// directory. An empty path falls back to the OS config dir (or /config in
// containers). A missing config file is created with documented defaults.
func New(configPath string) (*AppConfig, error) {
	c := &AppConfig{viper: viper.New()}
	if err := c.load(configPath); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *AppConfig) load(configPath string) error {
	c.resolveConfigPath(configPath)

	if err := c.writeDefaultConfigFile(); err != nil {
		return err
	}

	c.viper.SetConfigType("toml")
	c.viper.SetConfigFile(c.configPath)
	for key, env := range envBindings {
		_ = c.viper.BindEnv(key, envPrefix+env)
	}

	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	cfg, err := c.unmarshal()
	if err != nil {
		return err
	}

	c.config = cfg
	return nil
}

func (c *AppConfig) resolveConfigPath(configPath string) {
	if configPath == "" {
		c.configPath = filepath.Join(getDefaultConfigDir(), DefaultConfigName)
		return
	}
	if fi, err := os.Stat(configPath); err == nil && fi.IsDir() {
		c.configPath = filepath.Join(configPath, DefaultConfigName)
		return
	}
	c.configPath = configPath
}

// unmarshal decodes the merged settings onto the documented defaults, so keys
// absent from both file and environment keep their default values.
func (c *AppConfig) unmarshal() (*domain.Config, error) {
	cfg := domain.Defaults()
	if err := c.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) writeDefaultConfigFile() error {
	if _, err := os.Stat(c.configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(c.configPath, []byte(defaultConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	log.Info().Str("path", c.configPath).Msg("created default config file")
	return nil
}

func getDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		// Container images set XDG_CONFIG_HOME=/config and mount the config
		// volume there directly, without an app subdirectory.
		if xdg == "/config" {
			return xdg
		}
		return filepath.Join(xdg, "sweeparr")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "sweeparr")
	}
	return "."
}

// Snapshot returns a copy of the current configuration.
func (c *AppConfig) Snapshot() domain.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.config
}

// ConfigPath returns the resolved location of the loaded config file.
func (c *AppConfig) ConfigPath() string {
	return c.configPath
}

// GetDatabasePath returns the SQLite database location: inside dataDir when
// configured, otherwise next to the config file.
func (c *AppConfig) GetDatabasePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.config.DataDir != "" {
		return filepath.Join(c.config.DataDir, "sweeparr.db")
	}
	return filepath.Join(filepath.Dir(c.configPath), "sweeparr.db")
}

// SetOnReload registers a callback invoked after every successful dynamic
// reload, outside the config lock.
func (c *AppConfig) SetOnReload(fn func(domain.Config)) {
	c.mu.Lock()
	c.onReload = fn
	c.mu.Unlock()
}

// Watch re-reads the config file whenever it changes on disk. Limit, behavior,
// schedule and orphan changes apply from the next cycle; host, port and log
// path changes still need a restart. Invalid edits are rejected and the
// previous config stays active.
func (c *AppConfig) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}

	// Watch the directory rather than the file: editors and atomic writers
	// replace the file, which silently drops a direct file watch.
	if err := watcher.Add(filepath.Dir(c.configPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	go c.watchLoop(ctx, watcher)
	return nil
}

func (c *AppConfig) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	// Editors fire bursts of events per save; collapse them into one reload.
	reloads := debounce.New(reloadDebounce)
	defer reloads.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != c.configPath {
				continue
			}
			if !event.Op.Has(fsnotify.Write | fsnotify.Create | fsnotify.Rename) {
				continue
			}
			reloads.Do(c.reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (c *AppConfig) reload() {
	if err := c.viper.ReadInConfig(); err != nil {
		log.Error().Err(err).Msg("config reload failed, keeping previous config")
		return
	}

	cfg, err := c.unmarshal()
	if err != nil {
		log.Error().Err(err).Msg("config reload rejected, keeping previous config")
		return
	}

	c.mu.Lock()
	prev := c.config
	c.config = cfg
	onReload := c.onReload
	c.mu.Unlock()

	if prev.Host != cfg.Host || prev.Port != cfg.Port || prev.BaseURL != cfg.BaseURL || prev.LogPath != cfg.LogPath {
		log.Warn().Msg("host, port, baseUrl and logPath changes take effect after restart")
	}

	log.Info().Msg("config reloaded")

	if onReload != nil {
		onReload(*cfg)
	}
}
