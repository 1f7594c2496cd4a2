// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/autobrr/sweeparr/internal/backups"
	"github.com/autobrr/sweeparr/internal/config"
	"github.com/autobrr/sweeparr/internal/database"
)

func RunDBCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database operations",
	}

	cmd.AddCommand(runDBBackupCommand())
	cmd.AddCommand(runDBImportCommand())
	return cmd
}

func runDBBackupCommand() *cobra.Command {
	var (
		configDir string
		output    string
		keep      int
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the database and config into a tar.zst snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New(configDir)
			if err != nil {
				return err
			}

			db, err := database.New(cfg.GetDatabasePath())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			svc := backups.NewService(db, cfg.GetDatabasePath(), backups.Config{
				Dir:   output,
				Keep:  keep,
				Extra: []string{cfg.ConfigPath()},
			})

			path, err := svc.Run(cmd.Context())
			if err != nil {
				return err
			}

			cmd.Printf("Backup written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory containing config.toml (default: OS config dir)")
	cmd.Flags().StringVar(&output, "output", "", "Directory for the archive (default: backups/ next to the database)")
	cmd.Flags().IntVar(&keep, "keep", 0, "How many archives to retain (default 5)")
	return cmd
}

func runDBImportCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import tracking state from a legacy JSON state file",
		Long:  "Looks for the flat JSON state file a previous release wrote next to the database, folds it into the torrents table and archives the original.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New(configDir)
			if err != nil {
				return err
			}

			dbPath := cfg.GetDatabasePath()
			legacyPath := database.LegacyStatePath(dbPath)
			if _, err := os.Stat(legacyPath); os.IsNotExist(err) {
				cmd.Printf("No legacy state file at %s\n", legacyPath)
				return nil
			}

			db, err := database.New(dbPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			imported, err := db.ImportLegacyState(cmd.Context(), dbPath)
			if err != nil {
				return err
			}

			cmd.Printf("Imported %d torrent(s) from %s\n", imported, legacyPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory containing config.toml (default: OS config dir)")
	return cmd
}
