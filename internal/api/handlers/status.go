// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/autobrr/sweeparr/internal/services/cleanup"
)

// statusService exposes the scheduler state the API reports.
type statusService interface {
	Status() cleanup.Status
	DaemonHealthy() bool
}

// StatusHandler reports the scheduler's current state.
type StatusHandler struct {
	service statusService
}

func NewStatusHandler(service statusService) *StatusHandler {
	return &StatusHandler{service: service}
}

// RegisterRoutes configures the status route.
func (h *StatusHandler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.getStatus)
}

// StatusResponse wraps the scheduler snapshot with connection state.
type StatusResponse struct {
	cleanup.Status
	DaemonConnected bool `json:"daemonConnected"`
}

func (h *StatusHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, StatusResponse{
		Status:          h.service.Status(),
		DaemonConnected: h.service.DaemonHealthy(),
	})
}
