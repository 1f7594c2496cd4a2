// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/models"
)

// OrphansHandler serves orphan scan history.
type OrphansHandler struct {
	store *models.OrphanRunStore
}

func NewOrphansHandler(store *models.OrphanRunStore) *OrphansHandler {
	return &OrphansHandler{store: store}
}

// RegisterRoutes configures orphan routes under /orphans.
func (h *OrphansHandler) RegisterRoutes(r chi.Router) {
	r.Route("/orphans", func(r chi.Router) {
		r.Get("/runs", h.listRuns)
		r.Get("/runs/{runID}", h.getRun)
	})
}

// OrphanRunListResponse lists recent orphan scans, newest first.
type OrphanRunListResponse struct {
	Runs  []*models.OrphanRun `json:"runs"`
	Count int                 `json:"count"`
}

func (h *OrphansHandler) listRuns(w http.ResponseWriter, r *http.Request) {
	page := ParsePagination(r, 20, 100)

	runs, err := h.store.ListRuns(r.Context(), page.Limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list orphan runs")
		RespondError(w, http.StatusInternalServerError, "Failed to list orphan runs")
		return
	}

	if runs == nil {
		runs = []*models.OrphanRun{}
	}

	RespondJSON(w, http.StatusOK, OrphanRunListResponse{
		Runs:  runs,
		Count: len(runs),
	})
}

func (h *OrphansHandler) getRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := ParseRunID(w, r)
	if !ok {
		return
	}

	run, err := h.store.GetRun(r.Context(), runID)
	if err != nil {
		log.Error().Err(err).Int64("runID", runID).Msg("Failed to load orphan run")
		RespondError(w, http.StatusInternalServerError, "Failed to load orphan run")
		return
	}
	if run == nil {
		RespondError(w, http.StatusNotFound, "Orphan run not found")
		return
	}

	RespondJSON(w, http.StatusOK, run)
}
