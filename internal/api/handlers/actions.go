// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/services/cleanup"
	"github.com/autobrr/sweeparr/internal/services/orphan"
)

// actionService triggers cleanup work outside the schedule.
type actionService interface {
	Wake()
	RunOrphanScan(ctx context.Context, dryRun bool) (int, int, int64, error)
}

// ActionsHandler exposes manual triggers for cycles and orphan scans.
type ActionsHandler struct {
	service actionService
}

func NewActionsHandler(service actionService) *ActionsHandler {
	return &ActionsHandler{service: service}
}

// RegisterRoutes configures action routes under /actions.
func (h *ActionsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/actions", func(r chi.Router) {
		r.Post("/cleanup", h.triggerCleanup)
		r.Post("/orphan-scan", h.triggerOrphanScan)
	})
}

// triggerCleanup wakes the scheduler. The cycle runs in the background, so
// the response only acknowledges the request.
func (h *ActionsHandler) triggerCleanup(w http.ResponseWriter, r *http.Request) {
	h.service.Wake()
	RespondJSON(w, http.StatusAccepted, map[string]string{"message": "Cleanup cycle triggered"})
}

// OrphanScanRequest optionally forces dry-run for one scan.
type OrphanScanRequest struct {
	DryRun bool `json:"dryRun"`
}

// OrphanScanResponse summarizes one completed scan.
type OrphanScanResponse struct {
	FilesRemoved   int   `json:"filesRemoved"`
	DirsRemoved    int   `json:"dirsRemoved"`
	BytesReclaimed int64 `json:"bytesReclaimed"`
	DryRun         bool  `json:"dryRun"`
}

// triggerOrphanScan runs a scan synchronously and reports its results.
func (h *ActionsHandler) triggerOrphanScan(w http.ResponseWriter, r *http.Request) {
	var req OrphanScanRequest
	if !DecodeJSONOptional(w, r, &req) {
		return
	}

	files, dirs, bytes, err := h.service.RunOrphanScan(r.Context(), req.DryRun)
	if err != nil {
		switch {
		case errors.Is(err, orphan.ErrScanInProgress), errors.Is(err, cleanup.ErrCycleInProgress):
			RespondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, cleanup.ErrOrphansNotConfigured):
			RespondError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("Orphan scan failed")
			RespondError(w, http.StatusInternalServerError, "Orphan scan failed")
		}
		return
	}

	RespondJSON(w, http.StatusOK, OrphanScanResponse{
		FilesRemoved:   files,
		DirsRemoved:    dirs,
		BytesReclaimed: bytes,
		DryRun:         req.DryRun,
	})
}
