// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/spf13/cobra"

	"github.com/autobrr/sweeparr/internal/auth"
	"github.com/autobrr/sweeparr/internal/config"
	"github.com/autobrr/sweeparr/internal/domain"
)

func RunAPIKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "API key management",
	}

	cmd.AddCommand(runAPIKeyGenerateCommand())
	return cmd
}

func runAPIKeyGenerateCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an API key and store its digest in the config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New(configDir)
			if err != nil {
				return err
			}

			raw, digest, err := auth.GenerateKey()
			if err != nil {
				return err
			}

			if err := cfg.PersistOverrides(func(c *domain.Config) {
				c.APIKeyHash = digest
			}); err != nil {
				return err
			}

			// Only the digest is persisted; the raw key cannot be shown
			// again.
			cmd.Println("API key generated, store it now:")
			cmd.Printf("  %s\n", raw)
			cmd.Println()
			cmd.Printf("Digest written to %s\n", cfg.ConfigPath())
			return nil
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory containing config.toml (default: OS config dir)")
	return cmd
}
