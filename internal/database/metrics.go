// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exposes internal database health as Prometheus metrics.
type MetricsCollector struct {
	db *DB

	maintenanceRunsDesc *prometheus.Desc
	writeQueueDepthDesc *prometheus.Desc
}

func NewMetricsCollector(db *DB) *MetricsCollector {
	return &MetricsCollector{
		db: db,
		maintenanceRunsDesc: prometheus.NewDesc(
			"sweeparr_db_maintenance_runs_total",
			"Number of completed database maintenance passes (WAL checkpoint + optimize)",
			nil,
			nil,
		),
		writeQueueDepthDesc: prometheus.NewDesc(
			"sweeparr_db_write_queue_depth",
			"Write requests currently queued for the single writer goroutine",
			nil,
			nil,
		),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.maintenanceRunsDesc
	ch <- c.writeQueueDepthDesc
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(
		c.maintenanceRunsDesc,
		prometheus.CounterValue,
		float64(c.db.maintenanceRuns.Load()),
	)
	ch <- prometheus.MustNewConstMetric(
		c.writeQueueDepthDesc,
		prometheus.GaugeValue,
		float64(len(c.db.writeCh)),
	)
}
