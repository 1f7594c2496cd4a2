// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/autobrr/sweeparr/internal/config"
	"github.com/autobrr/sweeparr/pkg/httphelpers"
)

// RunHealthcheckCommand probes the local API health endpoint. Container
// images wire it as the HEALTHCHECK command.
func RunHealthcheckCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check that the local daemon is up and connected",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New(configDir)
			if err != nil {
				return err
			}

			settings := cfg.Snapshot()

			host := settings.Host
			switch host {
			case "", "0.0.0.0", "::":
				// Wildcard binds are not dialable, probe loopback instead.
				host = "127.0.0.1"
			}

			base := httphelpers.NormalizeBasePath(settings.BaseURL)
			url := fmt.Sprintf("http://%s%s",
				net.JoinHostPort(host, fmt.Sprintf("%d", settings.Port)),
				httphelpers.JoinBasePath(base, "/api/health"))

			client := &http.Client{Timeout: 5 * time.Second}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return err
			}

			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("daemon unreachable: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("health endpoint returned %s", resp.Status)
			}

			cmd.Println("OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory containing config.toml (default: OS config dir)")
	return cmd
}
