// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/autobrr/sweeparr/internal/config"
	"github.com/autobrr/sweeparr/internal/domain"
	"github.com/autobrr/sweeparr/internal/logger"
)

func RunOnceCommand() *cobra.Command {
	var (
		configDir string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a single cleanup cycle and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New(configDir)
			if err != nil {
				return err
			}

			settings := cfg.Snapshot()
			logger.Setup(&settings)

			// The flag wins over the config so an operator can always
			// preview without editing anything.
			configFn := cfg.Snapshot
			if dryRun {
				configFn = func() domain.Config {
					c := cfg.Snapshot()
					c.Behavior.DryRun = true
					return c
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			eng, err := buildEngine(ctx, cfg, configFn)
			if err != nil {
				return err
			}
			defer eng.close()

			eng.notifier.Start(ctx)
			return eng.cleanup.RunCycle(ctx)
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory containing config.toml (default: OS config dir)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Classify and report without deleting anything")
	return cmd
}
