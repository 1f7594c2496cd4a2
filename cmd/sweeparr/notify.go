// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/sweeparr/internal/config"
	"github.com/autobrr/sweeparr/internal/logger"
	"github.com/autobrr/sweeparr/internal/services/notifications"
)

func RunNotifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification target management",
	}

	cmd.AddCommand(runNotifyTestCommand())
	return cmd
}

func runNotifyTestCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send a test message to every configured notification target",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New(configDir)
			if err != nil {
				return err
			}

			settings := cfg.Snapshot()
			logger.Setup(&settings)

			svc := notifications.NewService(settings.NotificationURLs, log.Logger)
			if err := svc.SendTest(cmd.Context()); err != nil {
				return err
			}

			cmd.Printf("Test notification sent to %d target(s)\n", len(settings.NotificationURLs))
			return nil
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory containing config.toml (default: OS config dir)")
	return cmd
}
