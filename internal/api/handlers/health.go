// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// healthService reports whether the qBittorrent connection is usable.
type healthService interface {
	DaemonHealthy() bool
}

// HealthHandler serves the unauthenticated health probes.
type HealthHandler struct {
	service healthService
}

func NewHealthHandler(service healthService) *HealthHandler {
	return &HealthHandler{service: service}
}

// Routes registers the probe endpoints on r.
func (h *HealthHandler) Routes(r chi.Router) {
	r.Get("/", h.HandleHealth)
	r.Get("/readiness", h.HandleReady)
	r.Get("/liveness", h.HandleLiveness)
}

// HandleHealth reports that the process is up and serving requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady reports whether the daemon connection is usable. Orchestrators
// can gate traffic on the 503 while the connection is retried.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.service == nil || !h.service.DaemonHealthy() {
		RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleLiveness reports that the process event loop is alive.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
