// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/config"
	"github.com/autobrr/sweeparr/internal/domain"
)

// maskedSecret replaces stored credentials in API responses. Updates carrying
// the literal mask keep the stored value, so a GET response can be edited and
// PUT back without wiping secrets.
const maskedSecret = "********"

// ConfigHandler exposes the runtime configuration over the API. Updates are
// written back into config.toml through the config layer, so comments and
// layout survive and the file watcher picks the change up like a manual edit.
type ConfigHandler struct {
	config *config.AppConfig
}

func NewConfigHandler(cfg *config.AppConfig) *ConfigHandler {
	return &ConfigHandler{config: cfg}
}

// RegisterRoutes configures config routes under /config.
func (h *ConfigHandler) RegisterRoutes(r chi.Router) {
	r.Route("/config", func(r chi.Router) {
		r.Get("/", h.getConfig)
		r.Put("/", h.updateConfig)
	})
}

// ConfigResponse is the sanitized wire shape of the configuration. The API
// key hash is never included and passwords are masked.
type ConfigResponse struct {
	Host             string   `json:"host"`
	Port             int      `json:"port"`
	BaseURL          string   `json:"baseUrl,omitempty"`
	LogLevel         string   `json:"logLevel"`
	LogPath          string   `json:"logPath,omitempty"`
	LogMaxSize       int      `json:"logMaxSize"`
	LogMaxBackups    int      `json:"logMaxBackups"`
	DataDir          string   `json:"dataDir,omitempty"`
	CheckForUpdates  bool     `json:"checkForUpdates"`
	MetricsEnabled   bool     `json:"metricsEnabled"`
	CORSOrigins      []string `json:"corsOrigins,omitempty"`
	NotificationURLs []string `json:"notificationUrls,omitempty"`

	QBittorrent QBittorrentSection `json:"qbittorrent"`
	Limits      LimitsSection      `json:"limits"`
	Behavior    BehaviorSection    `json:"behavior"`
	Schedule    ScheduleSection    `json:"schedule"`
	FileFlows   FileFlowsSection   `json:"fileflows"`
	Orphans     OrphansSection     `json:"orphans"`
}

type QBittorrentSection struct {
	Host          string `json:"host"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	BasicUser     string `json:"basicUser,omitempty"`
	BasicPass     string `json:"basicPass,omitempty"`
	TLSSkipVerify bool   `json:"tlsSkipVerify"`
}

type LimitsSection struct {
	FallbackRatio            float64 `json:"fallbackRatio"`
	FallbackDays             float64 `json:"fallbackDays"`
	PrivateRatio             float64 `json:"privateRatio"`
	PrivateDays              float64 `json:"privateDays"`
	PublicRatio              float64 `json:"publicRatio"`
	PublicDays               float64 `json:"publicDays"`
	IgnoreDaemonRatioPrivate bool    `json:"ignoreDaemonRatioPrivate"`
	IgnoreDaemonRatioPublic  bool    `json:"ignoreDaemonRatioPublic"`
	IgnoreDaemonTimePrivate  bool    `json:"ignoreDaemonTimePrivate"`
	IgnoreDaemonTimePublic   bool    `json:"ignoreDaemonTimePublic"`
}

type BehaviorSection struct {
	DeleteFiles             bool     `json:"deleteFiles"`
	DryRun                  bool     `json:"dryRun"`
	CheckPausedOnly         bool     `json:"checkPausedOnly"`
	CheckPrivatePausedOnly  *bool    `json:"checkPrivatePausedOnly,omitempty"`
	CheckPublicPausedOnly   *bool    `json:"checkPublicPausedOnly,omitempty"`
	ForceDeleteHours        float64  `json:"forceDeleteHours"`
	ForceDeletePrivateHours *float64 `json:"forceDeletePrivateHours,omitempty"`
	ForceDeletePublicHours  *float64 `json:"forceDeletePublicHours,omitempty"`
	CleanupStalled          bool     `json:"cleanupStalled"`
	MaxStalledDays          float64  `json:"maxStalledDays"`
	MaxStalledPrivateDays   *float64 `json:"maxStalledPrivateDays,omitempty"`
	MaxStalledPublicDays    *float64 `json:"maxStalledPublicDays,omitempty"`
	DeleteUnregistered      bool     `json:"deleteUnregistered"`
	MaxUnregisteredHours    float64  `json:"maxUnregisteredHours"`
	ProtectExpr             string   `json:"protectExpr,omitempty"`
}

type ScheduleSection struct {
	IntervalHours int  `json:"intervalHours"`
	RunOnce       bool `json:"runOnce"`
}

type FileFlowsSection struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Timeout int    `json:"timeout"`
}

type OrphansSection struct {
	Enabled              bool     `json:"enabled"`
	ScanDirs             []string `json:"scanDirs,omitempty"`
	IgnorePaths          []string `json:"ignorePaths,omitempty"`
	MinAgeHours          float64  `json:"minAgeHours"`
	IntervalHours        int      `json:"intervalHours"`
	RecycleDir           string   `json:"recycleDir,omitempty"`
	RecycleRetentionDays int      `json:"recycleRetentionDays"`
}

func (h *ConfigHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, sanitizedConfig(h.config.Snapshot()))
}

func sanitizedConfig(cfg domain.Config) ConfigResponse {
	resp := ConfigResponse{
		Host:             cfg.Host,
		Port:             cfg.Port,
		BaseURL:          cfg.BaseURL,
		LogLevel:         cfg.LogLevel,
		LogPath:          cfg.LogPath,
		LogMaxSize:       cfg.LogMaxSize,
		LogMaxBackups:    cfg.LogMaxBackups,
		DataDir:          cfg.DataDir,
		CheckForUpdates:  cfg.CheckForUpdates,
		MetricsEnabled:   cfg.MetricsEnabled,
		CORSOrigins:      cfg.CORSOrigins,
		NotificationURLs: maskAll(cfg.NotificationURLs),
		QBittorrent: QBittorrentSection{
			Host:          cfg.QBittorrent.Host,
			Username:      cfg.QBittorrent.Username,
			Password:      mask(cfg.QBittorrent.Password),
			BasicUser:     cfg.QBittorrent.BasicUser,
			BasicPass:     mask(cfg.QBittorrent.BasicPass),
			TLSSkipVerify: cfg.QBittorrent.TLSSkipVerify,
		},
		Limits: LimitsSection{
			FallbackRatio:            cfg.Limits.FallbackRatio,
			FallbackDays:             cfg.Limits.FallbackDays,
			PrivateRatio:             cfg.Limits.PrivateRatio,
			PrivateDays:              cfg.Limits.PrivateDays,
			PublicRatio:              cfg.Limits.PublicRatio,
			PublicDays:               cfg.Limits.PublicDays,
			IgnoreDaemonRatioPrivate: cfg.Limits.IgnoreDaemonRatioPrivate,
			IgnoreDaemonRatioPublic:  cfg.Limits.IgnoreDaemonRatioPublic,
			IgnoreDaemonTimePrivate:  cfg.Limits.IgnoreDaemonTimePrivate,
			IgnoreDaemonTimePublic:   cfg.Limits.IgnoreDaemonTimePublic,
		},
		Behavior: BehaviorSection{
			DeleteFiles:             cfg.Behavior.DeleteFiles,
			DryRun:                  cfg.Behavior.DryRun,
			CheckPausedOnly:         cfg.Behavior.CheckPausedOnly,
			CheckPrivatePausedOnly:  cfg.Behavior.CheckPrivatePausedOnly,
			CheckPublicPausedOnly:   cfg.Behavior.CheckPublicPausedOnly,
			ForceDeleteHours:        cfg.Behavior.ForceDeleteHours,
			ForceDeletePrivateHours: cfg.Behavior.ForceDeletePrivateHours,
			ForceDeletePublicHours:  cfg.Behavior.ForceDeletePublicHours,
			CleanupStalled:          cfg.Behavior.CleanupStalled,
			MaxStalledDays:          cfg.Behavior.MaxStalledDays,
			MaxStalledPrivateDays:   cfg.Behavior.MaxStalledPrivateDays,
			MaxStalledPublicDays:    cfg.Behavior.MaxStalledPublicDays,
			DeleteUnregistered:      cfg.Behavior.DeleteUnregistered,
			MaxUnregisteredHours:    cfg.Behavior.MaxUnregisteredHours,
			ProtectExpr:             cfg.Behavior.ProtectExpr,
		},
		Schedule: ScheduleSection{
			IntervalHours: cfg.Schedule.IntervalHours,
			RunOnce:       cfg.Schedule.RunOnce,
		},
		FileFlows: FileFlowsSection{
			Enabled: cfg.FileFlows.Enabled,
			Host:    cfg.FileFlows.Host,
			Port:    cfg.FileFlows.Port,
			Timeout: cfg.FileFlows.Timeout,
		},
		Orphans: OrphansSection{
			Enabled:              cfg.Orphans.Enabled,
			ScanDirs:             cfg.Orphans.ScanDirs,
			IgnorePaths:          cfg.Orphans.IgnorePaths,
			MinAgeHours:          cfg.Orphans.MinAgeHours,
			IntervalHours:        cfg.Orphans.IntervalHours,
			RecycleDir:           cfg.Orphans.RecycleDir,
			RecycleRetentionDays: cfg.Orphans.RecycleRetentionDays,
		},
	}
	return resp
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return maskedSecret
}

func maskAll(secrets []string) []string {
	if len(secrets) == 0 {
		return nil
	}
	out := make([]string, len(secrets))
	for i := range secrets {
		out[i] = maskedSecret
	}
	return out
}

// ConfigUpdateRequest is a partial configuration update. Only the fields the
// request carries are applied; everything else keeps its current value.
// Server binding (host, port, baseUrl), log sinks and dataDir are restart
// scoped and can only be changed by editing config.toml directly.
type ConfigUpdateRequest struct {
	LogLevel         *string   `json:"logLevel"`
	CheckForUpdates  *bool     `json:"checkForUpdates"`
	MetricsEnabled   *bool     `json:"metricsEnabled"`
	CORSOrigins      *[]string `json:"corsOrigins"`
	NotificationURLs *[]string `json:"notificationUrls"`

	QBittorrent *QBittorrentUpdate `json:"qbittorrent"`
	Limits      *LimitsUpdate      `json:"limits"`
	Behavior    *BehaviorUpdate    `json:"behavior"`
	Schedule    *ScheduleUpdate    `json:"schedule"`
	FileFlows   *FileFlowsUpdate   `json:"fileflows"`
	Orphans     *OrphansUpdate     `json:"orphans"`
}

type QBittorrentUpdate struct {
	Host          *string `json:"host"`
	Username      *string `json:"username"`
	Password      *string `json:"password"`
	BasicUser     *string `json:"basicUser"`
	BasicPass     *string `json:"basicPass"`
	TLSSkipVerify *bool   `json:"tlsSkipVerify"`
}

type LimitsUpdate struct {
	FallbackRatio            *float64 `json:"fallbackRatio"`
	FallbackDays             *float64 `json:"fallbackDays"`
	PrivateRatio             *float64 `json:"privateRatio"`
	PrivateDays              *float64 `json:"privateDays"`
	PublicRatio              *float64 `json:"publicRatio"`
	PublicDays               *float64 `json:"publicDays"`
	IgnoreDaemonRatioPrivate *bool    `json:"ignoreDaemonRatioPrivate"`
	IgnoreDaemonRatioPublic  *bool    `json:"ignoreDaemonRatioPublic"`
	IgnoreDaemonTimePrivate  *bool    `json:"ignoreDaemonTimePrivate"`
	IgnoreDaemonTimePublic   *bool    `json:"ignoreDaemonTimePublic"`
}

type BehaviorUpdate struct {
	DeleteFiles             *bool    `json:"deleteFiles"`
	DryRun                  *bool    `json:"dryRun"`
	CheckPausedOnly         *bool    `json:"checkPausedOnly"`
	CheckPrivatePausedOnly  *bool    `json:"checkPrivatePausedOnly"`
	CheckPublicPausedOnly   *bool    `json:"checkPublicPausedOnly"`
	ForceDeleteHours        *float64 `json:"forceDeleteHours"`
	ForceDeletePrivateHours *float64 `json:"forceDeletePrivateHours"`
	ForceDeletePublicHours  *float64 `json:"forceDeletePublicHours"`
	CleanupStalled          *bool    `json:"cleanupStalled"`
	MaxStalledDays          *float64 `json:"maxStalledDays"`
	MaxStalledPrivateDays   *float64 `json:"maxStalledPrivateDays"`
	MaxStalledPublicDays    *float64 `json:"maxStalledPublicDays"`
	DeleteUnregistered      *bool    `json:"deleteUnregistered"`
	MaxUnregisteredHours    *float64 `json:"maxUnregisteredHours"`
	ProtectExpr             *string  `json:"protectExpr"`
}

type ScheduleUpdate struct {
	IntervalHours *int  `json:"intervalHours"`
	RunOnce       *bool `json:"runOnce"`
}

type FileFlowsUpdate struct {
	Enabled *bool   `json:"enabled"`
	Host    *string `json:"host"`
	Port    *int    `json:"port"`
	Timeout *int    `json:"timeout"`
}

type OrphansUpdate struct {
	Enabled              *bool     `json:"enabled"`
	ScanDirs             *[]string `json:"scanDirs"`
	IgnorePaths          *[]string `json:"ignorePaths"`
	MinAgeHours          *float64  `json:"minAgeHours"`
	IntervalHours        *int      `json:"intervalHours"`
	RecycleDir           *string   `json:"recycleDir"`
	RecycleRetentionDays *int      `json:"recycleRetentionDays"`
}

func (h *ConfigHandler) updateConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigUpdateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	// Validate against a copy first so a bad request never touches the file.
	preview := h.config.Snapshot()
	applyConfigUpdate(&preview, &req)
	if err := preview.Validate(); err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.config.PersistOverrides(func(c *domain.Config) {
		applyConfigUpdate(c, &req)
	}); err != nil {
		log.Error().Err(err).Msg("Failed to persist configuration")
		RespondError(w, http.StatusInternalServerError, "Failed to persist configuration")
		return
	}

	log.Info().Msg("Configuration updated via API")
	RespondJSON(w, http.StatusOK, sanitizedConfig(h.config.Snapshot()))
}

func applyConfigUpdate(cfg *domain.Config, req *ConfigUpdateRequest) {
	setString(&cfg.LogLevel, req.LogLevel)
	setBool(&cfg.CheckForUpdates, req.CheckForUpdates)
	setBool(&cfg.MetricsEnabled, req.MetricsEnabled)
	setSlice(&cfg.CORSOrigins, req.CORSOrigins)
	if req.NotificationURLs != nil && !isMaskedSlice(*req.NotificationURLs) {
		cfg.NotificationURLs = *req.NotificationURLs
	}

	if q := req.QBittorrent; q != nil {
		setString(&cfg.QBittorrent.Host, q.Host)
		setString(&cfg.QBittorrent.Username, q.Username)
		setSecret(&cfg.QBittorrent.Password, q.Password)
		setString(&cfg.QBittorrent.BasicUser, q.BasicUser)
		setSecret(&cfg.QBittorrent.BasicPass, q.BasicPass)
		setBool(&cfg.QBittorrent.TLSSkipVerify, q.TLSSkipVerify)
	}

	if l := req.Limits; l != nil {
		setFloat(&cfg.Limits.FallbackRatio, l.FallbackRatio)
		setFloat(&cfg.Limits.FallbackDays, l.FallbackDays)
		setFloat(&cfg.Limits.PrivateRatio, l.PrivateRatio)
		setFloat(&cfg.Limits.PrivateDays, l.PrivateDays)
		setFloat(&cfg.Limits.PublicRatio, l.PublicRatio)
		setFloat(&cfg.Limits.PublicDays, l.PublicDays)
		setBool(&cfg.Limits.IgnoreDaemonRatioPrivate, l.IgnoreDaemonRatioPrivate)
		setBool(&cfg.Limits.IgnoreDaemonRatioPublic, l.IgnoreDaemonRatioPublic)
		setBool(&cfg.Limits.IgnoreDaemonTimePrivate, l.IgnoreDaemonTimePrivate)
		setBool(&cfg.Limits.IgnoreDaemonTimePublic, l.IgnoreDaemonTimePublic)
	}

	if b := req.Behavior; b != nil {
		setBool(&cfg.Behavior.DeleteFiles, b.DeleteFiles)
		setBool(&cfg.Behavior.DryRun, b.DryRun)
		setBool(&cfg.Behavior.CheckPausedOnly, b.CheckPausedOnly)
		setBoolPtr(&cfg.Behavior.CheckPrivatePausedOnly, b.CheckPrivatePausedOnly)
		setBoolPtr(&cfg.Behavior.CheckPublicPausedOnly, b.CheckPublicPausedOnly)
		setFloat(&cfg.Behavior.ForceDeleteHours, b.ForceDeleteHours)
		setFloatPtr(&cfg.Behavior.ForceDeletePrivateHours, b.ForceDeletePrivateHours)
		setFloatPtr(&cfg.Behavior.ForceDeletePublicHours, b.ForceDeletePublicHours)
		setBool(&cfg.Behavior.CleanupStalled, b.CleanupStalled)
		setFloat(&cfg.Behavior.MaxStalledDays, b.MaxStalledDays)
		setFloatPtr(&cfg.Behavior.MaxStalledPrivateDays, b.MaxStalledPrivateDays)
		setFloatPtr(&cfg.Behavior.MaxStalledPublicDays, b.MaxStalledPublicDays)
		setBool(&cfg.Behavior.DeleteUnregistered, b.DeleteUnregistered)
		setFloat(&cfg.Behavior.MaxUnregisteredHours, b.MaxUnregisteredHours)
		setString(&cfg.Behavior.ProtectExpr, b.ProtectExpr)
	}

	if s := req.Schedule; s != nil {
		setInt(&cfg.Schedule.IntervalHours, s.IntervalHours)
		setBool(&cfg.Schedule.RunOnce, s.RunOnce)
	}

	if f := req.FileFlows; f != nil {
		setBool(&cfg.FileFlows.Enabled, f.Enabled)
		setString(&cfg.FileFlows.Host, f.Host)
		setInt(&cfg.FileFlows.Port, f.Port)
		setInt(&cfg.FileFlows.Timeout, f.Timeout)
	}

	if o := req.Orphans; o != nil {
		setBool(&cfg.Orphans.Enabled, o.Enabled)
		setSlice(&cfg.Orphans.ScanDirs, o.ScanDirs)
		setSlice(&cfg.Orphans.IgnorePaths, o.IgnorePaths)
		setFloat(&cfg.Orphans.MinAgeHours, o.MinAgeHours)
		setInt(&cfg.Orphans.IntervalHours, o.IntervalHours)
		setString(&cfg.Orphans.RecycleDir, o.RecycleDir)
		setInt(&cfg.Orphans.RecycleRetentionDays, o.RecycleRetentionDays)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// setSecret keeps the stored value when the request carries the display mask.
func setSecret(dst *string, v *string) {
	if v != nil && *v != maskedSecret {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBoolPtr(dst **bool, v *bool) {
	if v != nil {
		val := *v
		*dst = &val
	}
}

func setFloatPtr(dst **float64, v *float64) {
	if v != nil {
		val := *v
		*dst = &val
	}
}

func setSlice(dst *[]string, v *[]string) {
	if v != nil {
		*dst = *v
	}
}

func isMaskedSlice(values []string) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if v != maskedSecret {
			return false
		}
	}
	return true
}
