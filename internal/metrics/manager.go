// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metrics exposes the engine's prometheus surface: cycle counters
// updated by the scheduler and a collector that reads store sizes at scrape
// time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

type Manager struct {
	registry *prometheus.Registry
	cycle    *CycleMetrics
}

func NewManager() *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cycle := newCycleMetrics()
	registry.MustRegister(cycle.collectors()...)

	log.Debug().Msg("metrics: registry initialized")

	return &Manager{
		registry: registry,
		cycle:    cycle,
	}
}

func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) Cycle() *CycleMetrics {
	return m.cycle
}

// MustRegister adds extra collectors (store sizes, database internals).
func (m *Manager) MustRegister(cs ...prometheus.Collector) {
	m.registry.MustRegister(cs...)
}
