// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/models"
)

// UnregisteredHandler reports torrents whose trackers say they are gone.
type UnregisteredHandler struct {
	store *models.UnregisteredStore
}

func NewUnregisteredHandler(store *models.UnregisteredStore) *UnregisteredHandler {
	return &UnregisteredHandler{store: store}
}

// RegisterRoutes configures the unregistered listing route.
func (h *UnregisteredHandler) RegisterRoutes(r chi.Router) {
	r.Get("/unregistered", h.listUnregistered)
}

// UnregisteredListResponse lists torrents currently tracked as unregistered.
type UnregisteredListResponse struct {
	Torrents []*models.UnregisteredTorrent `json:"torrents"`
	Count    int                           `json:"count"`
}

func (h *UnregisteredHandler) listUnregistered(w http.ResponseWriter, r *http.Request) {
	torrents, err := h.store.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list unregistered torrents")
		RespondError(w, http.StatusInternalServerError, "Failed to list unregistered torrents")
		return
	}

	if torrents == nil {
		torrents = []*models.UnregisteredTorrent{}
	}

	RespondJSON(w, http.StatusOK, UnregisteredListResponse{
		Torrents: torrents,
		Count:    len(torrents),
	})
}
