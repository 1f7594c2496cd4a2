// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autobrr/sweeparr/internal/config"
	"github.com/autobrr/sweeparr/internal/database"
	"github.com/autobrr/sweeparr/internal/models"
)

func RunBlacklistCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage the torrent protect list",
		Long:  "Blacklisted torrents are never deleted, regardless of retention rules.",
	}

	cmd.AddCommand(runBlacklistAddCommand())
	cmd.AddCommand(runBlacklistRemoveCommand())
	cmd.AddCommand(runBlacklistListCommand())
	cmd.AddCommand(runBlacklistClearCommand())
	return cmd
}

// withBlacklistStore opens the database named by the config and hands the
// store to fn. CLI invocations fail loudly when the database is unavailable
// instead of degrading the way the daemon does.
func withBlacklistStore(configDir string, fn func(*models.BlacklistStore) error) error {
	cfg, err := config.New(configDir)
	if err != nil {
		return err
	}

	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return fn(models.NewBlacklistStore(db))
}

func runBlacklistAddCommand() *cobra.Command {
	var (
		configDir string
		reason    string
	)

	cmd := &cobra.Command{
		Use:   "add <hash>...",
		Short: "Protect one or more torrents by info-hash",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBlacklistStore(configDir, func(store *models.BlacklistStore) error {
				entries := make([]*models.BlacklistEntry, 0, len(args))
				for _, hash := range args {
					entries = append(entries, &models.BlacklistEntry{Hash: hash, Reason: reason})
				}

				added, err := store.AddMany(cmd.Context(), entries)
				if err != nil {
					return err
				}

				cmd.Printf("Protected %d torrent(s)\n", added)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory containing config.toml (default: OS config dir)")
	cmd.Flags().StringVar(&reason, "reason", "", "Why these torrents are protected")
	return cmd
}

func runBlacklistRemoveCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "remove <hash>",
		Short: "Remove a torrent from the protect list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBlacklistStore(configDir, func(store *models.BlacklistStore) error {
				if err := store.Remove(cmd.Context(), args[0]); err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						return fmt.Errorf("hash %q is not on the protect list", args[0])
					}
					return err
				}

				cmd.Printf("Removed %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory containing config.toml (default: OS config dir)")
	return cmd
}

func runBlacklistListCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show all protected torrents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBlacklistStore(configDir, func(store *models.BlacklistStore) error {
				entries, err := store.List(cmd.Context())
				if err != nil {
					return err
				}

				if len(entries) == 0 {
					cmd.Println("Protect list is empty")
					return nil
				}

				for _, entry := range entries {
					line := entry.Hash
					if entry.Name != "" {
						line += "  " + entry.Name
					}
					if entry.Reason != "" {
						line += "  (" + entry.Reason + ")"
					}
					cmd.Printf("%s  added %s\n", line, entry.CreatedAt.Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory containing config.toml (default: OS config dir)")
	return cmd
}

func runBlacklistClearCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry from the protect list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBlacklistStore(configDir, func(store *models.BlacklistStore) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}

				cmd.Printf("Cleared %d entries\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory containing config.toml (default: OS config dir)")
	return cmd
}
