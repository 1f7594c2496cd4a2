// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/config"
	"github.com/autobrr/sweeparr/internal/database"
	"github.com/autobrr/sweeparr/internal/domain"
	"github.com/autobrr/sweeparr/internal/fileflows"
	"github.com/autobrr/sweeparr/internal/metrics"
	"github.com/autobrr/sweeparr/internal/models"
	"github.com/autobrr/sweeparr/internal/services/cleanup"
	"github.com/autobrr/sweeparr/internal/services/notifications"
	"github.com/autobrr/sweeparr/internal/services/orphan"
)

// engine bundles everything a cleanup run needs: persistence, notifier,
// metrics and the cleanup and orphan services wired together.
type engine struct {
	db       *database.DB
	stores   *models.Stores
	notifier *notifications.Service
	metrics  *metrics.Manager
	cleanup  *cleanup.Service
	orphans  *orphan.Service
}

// buildEngine assembles the services around configFn. An unwritable state
// directory degrades persistence instead of failing: cleanup still runs on
// live daemon data, it just cannot remember grace periods between restarts.
func buildEngine(ctx context.Context, cfg *config.AppConfig, configFn func() domain.Config) (*engine, error) {
	eng := &engine{}
	settings := configFn()

	dbPath := cfg.GetDatabasePath()
	db, err := database.New(dbPath)
	switch {
	case err == nil:
		eng.db = db
		eng.stores = models.NewStores(db)
		if n, err := db.ImportLegacyState(ctx, dbPath); err != nil {
			log.Warn().Err(err).Msg("legacy state import failed, continuing without it")
		} else if n > 0 {
			log.Info().Int("torrents", n).Msg("imported legacy state file")
		}
	case errors.Is(err, database.ErrDirUnwritable):
		log.Warn().Err(err).Str("path", dbPath).Msg("state directory unusable, continuing without persistence")
		eng.stores = models.NewDegradedStores()
	default:
		return nil, err
	}

	eng.notifier = notifications.NewService(settings.NotificationURLs, log.Logger)

	var cycleMetrics *metrics.CycleMetrics
	if settings.MetricsEnabled {
		eng.metrics = metrics.NewManager()
		cycleMetrics = eng.metrics.Cycle()
		if eng.db != nil {
			eng.metrics.MustRegister(database.NewMetricsCollector(eng.db))
		}
	}

	ff := fileflows.NewClient(settings.FileFlows)

	eng.orphans = orphan.NewService(configFn, eng.stores, eng.notifier, cycleMetrics)
	eng.cleanup = cleanup.NewService(configFn, eng.stores, ff, eng.notifier, cycleMetrics, eng.orphans)
	eng.orphans.SetFileLister(eng.cleanup.TorrentFiles)

	if eng.metrics != nil {
		eng.metrics.MustRegister(metrics.NewEngineCollector(eng.stores, eng.cleanup.DaemonHealthy))
	}

	return eng, nil
}

func (e *engine) close() {
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			log.Warn().Err(err).Msg("database close failed")
		}
	}
}
