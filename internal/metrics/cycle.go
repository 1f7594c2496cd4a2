// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CycleMetrics is updated by the scheduler after each cleanup cycle and each
// orphan scan.
type CycleMetrics struct {
	cyclesTotal    prometheus.Counter
	cyclesFailed   prometheus.Counter
	lastCycleTime  prometheus.Gauge
	lastCycleSecs  prometheus.Gauge
	checkedLast    prometheus.Gauge
	deletedByCause *prometheus.CounterVec

	orphanFiles     prometheus.Counter
	orphanDirs      prometheus.Counter
	reclaimedBytes  prometheus.Counter
	orphanScansRun  prometheus.Counter
	orphanScansFail prometheus.Counter
}

func newCycleMetrics() *CycleMetrics {
	return &CycleMetrics{
		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweeparr_cleanup_cycles_total",
			Help: "Completed cleanup cycles, including failed ones",
		}),
		cyclesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweeparr_cleanup_cycles_failed_total",
			Help: "Cleanup cycles that aborted on an error",
		}),
		lastCycleTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sweeparr_last_cycle_timestamp_seconds",
			Help: "Unix time of the last completed cleanup cycle",
		}),
		lastCycleSecs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sweeparr_last_cycle_duration_seconds",
			Help: "Duration of the last cleanup cycle",
		}),
		checkedLast: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sweeparr_torrents_checked",
			Help: "Torrents evaluated in the last cleanup cycle",
		}),
		deletedByCause: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sweeparr_torrents_deleted_total",
			Help: "Torrents deleted, partitioned by deletion reason",
		}, []string{"reason"}),
		orphanFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweeparr_orphan_files_removed_total",
			Help: "Orphaned files removed or recycled",
		}),
		orphanDirs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweeparr_orphan_dirs_removed_total",
			Help: "Empty directories removed by orphan scans",
		}),
		reclaimedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweeparr_orphan_reclaimed_bytes_total",
			Help: "Bytes reclaimed by orphan scans",
		}),
		orphanScansRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweeparr_orphan_scans_total",
			Help: "Completed orphan scans",
		}),
		orphanScansFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sweeparr_orphan_scans_failed_total",
			Help: "Orphan scans that aborted on an error",
		}),
	}
}

func (c *CycleMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.cyclesTotal,
		c.cyclesFailed,
		c.lastCycleTime,
		c.lastCycleSecs,
		c.checkedLast,
		c.deletedByCause,
		c.orphanFiles,
		c.orphanDirs,
		c.reclaimedBytes,
		c.orphanScansRun,
		c.orphanScansFail,
	}
}

// ObserveCycle records one finished cleanup cycle.
func (c *CycleMetrics) ObserveCycle(duration time.Duration, checked int, failed bool) {
	c.cyclesTotal.Inc()
	if failed {
		c.cyclesFailed.Inc()
		return
	}
	c.lastCycleTime.SetToCurrentTime()
	c.lastCycleSecs.Set(duration.Seconds())
	c.checkedLast.Set(float64(checked))
}

// AddDeleted counts deletions under their classification reason.
func (c *CycleMetrics) AddDeleted(reason string, n int) {
	if n <= 0 {
		return
	}
	c.deletedByCause.WithLabelValues(reason).Add(float64(n))
}

// ObserveOrphanScan records one finished orphan scan.
func (c *CycleMetrics) ObserveOrphanScan(files, dirs int, bytes int64, failed bool) {
	c.orphanScansRun.Inc()
	if failed {
		c.orphanScansFail.Inc()
		return
	}
	c.orphanFiles.Add(float64(files))
	c.orphanDirs.Add(float64(dirs))
	c.reclaimedBytes.Add(float64(bytes))
}
