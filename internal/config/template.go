// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

// defaultConfigTemplate is written on first run. Commented keys document the
// default values; every key can also be set through SWEEPARR__* environment
// variables.
const defaultConfigTemplate = `# config.toml - Auto-generated on first run

# Hostname / IP for the HTTP API
# Default: "127.0.0.1"
host = "127.0.0.1"

# HTTP API port
# Default: 7879
port = 7879

# Base URL when serving behind a reverse proxy subfolder
# Optional
#baseUrl = "/sweeparr/"

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "INFO"

# Log file path
# If not defined, logs to stdout
# Optional
#logPath = "log/sweeparr.log"

# Maximum log file size in megabytes before rotation
# Default: 50
#logMaxSize = 50

# Number of rotated log files to retain (0 keeps all)
# Default: 3
#logMaxBackups = 3

# Directory for the sweeparr database
# If not defined, the database is created next to this file
# Optional
#dataDir = "/var/lib/sweeparr"

# Check for new releases on startup and daily
# Default: false
#checkForUpdates = true

# Expose Prometheus metrics on /metrics
# Default: false
#metricsEnabled = true

# Expose Go profiling on a separate listener
# Default: false
#pprofEnabled = true
#pprofHost = "127.0.0.1"
#pprofPort = 6060

# Argon2id digest guarding the HTTP API
# Generate with: sweeparr apikey generate
# Optional
#apiKeyHash = ""

# Allowed CORS origins for browser clients
# Optional
#corsOrigins = ["https://dashboard.example.com"]

# Notification URLs (shoutrrr format)
# Optional
#notificationUrls = ["discord://token@id"]

# qBittorrent connection
[qbittorrent]
# Default: "http://localhost:8080"
host = "http://localhost:8080"
username = "admin"
password = ""
# HTTP basic auth in front of the WebUI
# Optional
#basicUser = ""
#basicPass = ""
# Skip TLS certificate verification
# Default: false
#tlsSkipVerify = true

# Retention thresholds. Private and public classes fall back to the fallback
# values when unset. A negative value means "not configured".
[limits]
# Default: 1.0
fallbackRatio = 1.0
# Default: 7.0
fallbackDays = 7.0
# Per-class overrides
# Optional
#privateRatio = 2.0
#privateDays = 14.0
#publicRatio = 1.0
#publicDays = 3.0
# Ignore the ratio or seeding-time limits configured in qBittorrent itself
# Default: false
#ignoreDaemonRatioPrivate = true
#ignoreDaemonRatioPublic = true
#ignoreDaemonTimePrivate = true
#ignoreDaemonTimePublic = true

# Deletion behavior
[behavior]
# Delete payload data along with the torrent
# Default: true
deleteFiles = true
# Classify and report without deleting anything
# Default: false
dryRun = false
# Only delete torrents that are already paused or stopped
# Default: false
checkPausedOnly = false
# Per-class overrides for checkPausedOnly
# Optional
#checkPrivatePausedOnly = true
#checkPublicPausedOnly = false
# Delete regardless of limits after this many hours of seeding (0 disables)
# Default: 0
#forceDeleteHours = 0
# Per-class overrides for forceDeleteHours
# Optional
#forceDeletePrivateHours = 336
#forceDeletePublicHours = 72
# Delete stalled downloads with no progress
# Default: false
cleanupStalled = false
# Default: 3.0
maxStalledDays = 3.0
# Per-class overrides for maxStalledDays
# Optional
#maxStalledPrivateDays = 5.0
#maxStalledPublicDays = 2.0
# Delete torrents rejected by their tracker as unregistered
# Default: false
deleteUnregistered = false
# Default: 24.0
maxUnregisteredHours = 24.0
# Expression protecting matching torrents from every deletion rule
# Fields: Name, Category, Tags, Tracker, Ratio, SeedingTimeDays, IsPrivate, State
# Optional
#protectExpr = 'Category == "keep" or "archive" in Tags'

# Cleanup schedule
[schedule]
# Hours between cleanup cycles
# Default: 24
intervalHours = 24
# Run a single cycle and exit
# Default: false
runOnce = false

# FileFlows processing guard: torrents with files queued or processing in
# FileFlows are never deleted.
[fileflows]
# Default: false
enabled = false
host = "localhost"
port = 19200
timeout = 10

# Orphan reconciliation: files on disk that no torrent accounts for.
[orphans]
# Default: false
enabled = false
# Directories to scan, absolute paths
#scanDirs = ["/data/torrents"]
# Paths inside the scan dirs that are never touched
#ignorePaths = ["/data/torrents/manual"]
# Minimum age before an orphan is eligible for removal
# Default: 1.0
minAgeHours = 1.0
# Hours between orphan scans
# Default: 168
intervalHours = 168
# Move orphans here instead of deleting them
# Optional
#recycleDir = "/data/torrents/.recycle"
# Days recycled orphans are kept before pruning (0 keeps forever)
# Default: 7
recycleRetentionDays = 7
`
