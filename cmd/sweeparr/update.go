// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/sweeparr/internal/buildinfo"
	"github.com/autobrr/sweeparr/internal/update"
)

func RunUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Replace the running binary with the latest release",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := update.NewService(log.Logger, true, buildinfo.Version, buildinfo.UserAgent)
			if err := svc.RunSelfUpdate(cmd.Context()); err != nil {
				return err
			}

			cmd.Println("Update complete. Restart sweeparr to run the new version.")
			return nil
		},
	}

	return cmd
}
