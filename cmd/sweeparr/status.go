// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/autobrr/sweeparr/internal/config"
	"github.com/autobrr/sweeparr/internal/database"
	"github.com/autobrr/sweeparr/internal/models"
)

// RunStatusCommand reports scheduler bookkeeping straight from the database,
// without needing a running daemon.
func RunStatusCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tracked state and recent run history",
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

			ctx := cmd.Context()
			stores := models.NewStores(db)

			tracked, err := stores.TorrentState.Count(ctx)
			if err != nil {
				return err
			}
			unregistered, err := stores.Unregistered.Count(ctx)
			if err != nil {
				return err
			}
			protected, err := stores.Blacklist.Count(ctx)
			if err != nil {
				return err
			}

			lastCleanup, err := stores.Metadata.GetTime(ctx, models.MetaLastCleanupRun)
			if err != nil {
				return err
			}
			lastScan, err := stores.Metadata.GetTime(ctx, models.MetaLastOrphanScan)
			if err != nil {
				return err
			}

			cmd.Printf("Tracked torrents:     %d\n", tracked)
			cmd.Printf("Flagged unregistered: %d\n", unregistered)
			cmd.Printf("Protected:            %d\n", protected)
			cmd.Printf("Last cleanup run:     %s\n", formatRunTime(lastCleanup))
			cmd.Printf("Last orphan scan:     %s\n", formatRunTime(lastScan))

			runs, err := stores.OrphanRuns.ListRuns(ctx, 1)
			if err != nil {
				return err
			}
			if len(runs) > 0 {
				run := runs[0]
				line := fmt.Sprintf("%s, %d file(s) and %d dir(s) removed, %s reclaimed",
					run.Status, run.FilesRemoved, run.DirsRemoved, humanize.IBytes(uint64(run.BytesReclaimed)))
				if run.DryRun {
					line += " (dry run)"
				}
				cmd.Printf("Last scan result:     %s\n", line)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory containing config.toml (default: OS config dir)")
	return cmd
}

func formatRunTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.DateTime)
}
