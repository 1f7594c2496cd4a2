// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "sweeparr",
		Short:         "Retention cleanup and orphan reconciliation for qBittorrent",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		RunServeCommand(),
		RunOnceCommand(),
		RunAPIKeyCommand(),
		RunBlacklistCommand(),
		RunStatusCommand(),
		RunNotifyCommand(),
		RunDBCommand(),
		RunUpdateCommand(),
		RunVersionCommand(),
		RunHealthcheckCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
