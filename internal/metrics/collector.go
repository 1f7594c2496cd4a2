// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/models"
)

// EngineCollector reads store sizes and connection state at scrape time.
type EngineCollector struct {
	stores        *models.Stores
	daemonHealthy func() bool

	stateEntriesDesc    *prometheus.Desc
	blacklistSizeDesc   *prometheus.Desc
	unregisteredDesc    *prometheus.Desc
	degradedDesc        *prometheus.Desc
	daemonConnectedDesc *prometheus.Desc
}

// NewEngineCollector builds the scrape-time collector. daemonHealthy may be
// nil when no daemon connection exists (ctl commands).
func NewEngineCollector(stores *models.Stores, daemonHealthy func() bool) *EngineCollector {
	return &EngineCollector{
		stores:        stores,
		daemonHealthy: daemonHealthy,

		stateEntriesDesc: prometheus.NewDesc(
			"sweeparr_state_entries",
			"Tracked torrent lifecycle rows in the state store",
			nil, nil,
		),
		blacklistSizeDesc: prometheus.NewDesc(
			"sweeparr_blacklist_entries",
			"Hashes on the protect list",
			nil, nil,
		),
		unregisteredDesc: prometheus.NewDesc(
			"sweeparr_unregistered_entries",
			"Torrents currently tracked as unregistered",
			nil, nil,
		),
		degradedDesc: prometheus.NewDesc(
			"sweeparr_degraded_mode",
			"1 when the state store is unavailable and the engine runs stateless",
			nil, nil,
		),
		daemonConnectedDesc: prometheus.NewDesc(
			"sweeparr_qbittorrent_connected",
			"Connection status of the qBittorrent daemon (1=connected, 0=disconnected)",
			nil, nil,
		),
	}
}

func (c *EngineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.stateEntriesDesc
	ch <- c.blacklistSizeDesc
	ch <- c.unregisteredDesc
	ch <- c.degradedDesc
	ch <- c.daemonConnectedDesc
}

func (c *EngineCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if c.daemonHealthy != nil {
		connected := 0.0
		if c.daemonHealthy() {
			connected = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.daemonConnectedDesc, prometheus.GaugeValue, connected)
	}

	if c.stores == nil {
		return
	}

	degraded := 0.0
	if c.stores.Degraded() {
		degraded = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.degradedDesc, prometheus.GaugeValue, degraded)

	if stateRows, err := c.stores.TorrentState.Count(ctx); err == nil {
		ch <- prometheus.MustNewConstMetric(c.stateEntriesDesc, prometheus.GaugeValue, float64(stateRows))
	} else {
		log.Warn().Err(err).Msg("metrics: failed to count state entries")
	}

	if blacklisted, err := c.stores.Blacklist.Count(ctx); err == nil {
		ch <- prometheus.MustNewConstMetric(c.blacklistSizeDesc, prometheus.GaugeValue, float64(blacklisted))
	} else {
		log.Warn().Err(err).Msg("metrics: failed to count blacklist entries")
	}

	if unregistered, err := c.stores.Unregistered.Count(ctx); err == nil {
		ch <- prometheus.MustNewConstMetric(c.unregisteredDesc, prometheus.GaugeValue, float64(unregistered))
	} else {
		log.Warn().Err(err).Msg("metrics: failed to count unregistered entries")
	}
}
