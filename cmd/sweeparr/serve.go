// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/sweeparr/internal/api"
	"github.com/autobrr/sweeparr/internal/auth"
	"github.com/autobrr/sweeparr/internal/buildinfo"
	"github.com/autobrr/sweeparr/internal/config"
	"github.com/autobrr/sweeparr/internal/domain"
	"github.com/autobrr/sweeparr/internal/logger"
	"github.com/autobrr/sweeparr/internal/update"
)

func RunServeCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cleanup daemon and its HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configDir)
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory containing config.toml (default: OS config dir)")
	return cmd
}

func runServe(ctx context.Context, configDir string) error {
	cfg, err := config.New(configDir)
	if err != nil {
		return err
	}

	settings := cfg.Snapshot()
	logger.Setup(&settings)

	log.Info().
		Str("version", buildinfo.Version).
		Str("config", cfg.ConfigPath()).
		Msg("starting sweeparr")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx, cfg, cfg.Snapshot)
	if err != nil {
		return err
	}
	defer eng.close()

	eng.notifier.Start(ctx)

	// runOnce mirrors the one-shot container use case: one cycle, then exit
	// with its outcome.
	if settings.Schedule.RunOnce {
		log.Info().Msg("runOnce enabled, executing a single cycle")
		return eng.cleanup.RunCycle(ctx)
	}

	updateSvc := update.NewService(log.Logger, settings.CheckForUpdates, buildinfo.Version, buildinfo.UserAgent)

	verifier := auth.NewVerifier(settings.APIKeyHash)
	if !verifier.Enabled() {
		log.Warn().Msg("no API key configured, API requests will be rejected (run: sweeparr apikey generate)")
	}

	cfg.SetOnReload(func(next domain.Config) {
		logger.Setup(&next)
		updateSvc.SetEnabled(next.CheckForUpdates)
	})
	if err := cfg.Watch(ctx); err != nil {
		log.Warn().Err(err).Msg("config watching unavailable, edits need a restart")
	}

	eng.cleanup.Start(ctx)
	updateSvc.Start(ctx)

	srv := api.NewServer(api.Dependencies{
		Config:   cfg,
		Verifier: verifier,
		Cleanup:  eng.cleanup,
		Stores:   eng.stores,
		Metrics:  eng.metrics,
		Update:   updateSvc,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	g.Go(func() error { return api.ServePprof(gctx, settings) })

	return g.Wait()
}
