// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/models"
)

// BlacklistHandler manages the protect list.
type BlacklistHandler struct {
	store *models.BlacklistStore
}

func NewBlacklistHandler(store *models.BlacklistStore) *BlacklistHandler {
	return &BlacklistHandler{store: store}
}

// RegisterRoutes configures blacklist routes under /blacklist.
func (h *BlacklistHandler) RegisterRoutes(r chi.Router) {
	r.Route("/blacklist", func(r chi.Router) {
		r.Get("/", h.listEntries)
		r.Post("/", h.addEntries)
		r.Delete("/", h.clearEntries)
		r.Delete("/{hash}", h.removeEntry)
	})
}

// BlacklistListResponse lists every protected torrent.
type BlacklistListResponse struct {
	Entries []*models.BlacklistEntry `json:"entries"`
	Count   int                      `json:"count"`
}

func (h *BlacklistHandler) listEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list blacklist entries")
		RespondError(w, http.StatusInternalServerError, "Failed to list blacklist entries")
		return
	}

	if entries == nil {
		entries = []*models.BlacklistEntry{}
	}

	RespondJSON(w, http.StatusOK, BlacklistListResponse{
		Entries: entries,
		Count:   len(entries),
	})
}

// BlacklistAddRequest protects one or more torrents. A reason on the request
// applies to every entry that does not carry its own.
type BlacklistAddRequest struct {
	Entries []BlacklistAddEntry `json:"entries"`
	Reason  string              `json:"reason,omitempty"`
}

// BlacklistAddEntry is one hash to protect.
type BlacklistAddEntry struct {
	Hash   string `json:"hash"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (h *BlacklistHandler) addEntries(w http.ResponseWriter, r *http.Request) {
	var req BlacklistAddRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if len(req.Entries) == 0 {
		RespondError(w, http.StatusBadRequest, "At least one entry is required")
		return
	}

	entries := make([]*models.BlacklistEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		if strings.TrimSpace(e.Hash) == "" {
			RespondError(w, http.StatusBadRequest, "Entry hash is required")
			return
		}

		reason := e.Reason
		if reason == "" {
			reason = req.Reason
		}

		entries = append(entries, &models.BlacklistEntry{
			Hash:   e.Hash,
			Name:   e.Name,
			Reason: reason,
		})
	}

	added, err := h.store.AddMany(r.Context(), entries)
	if err != nil {
		log.Error().Err(err).Msg("Failed to add blacklist entries")
		RespondError(w, http.StatusInternalServerError, "Failed to add blacklist entries")
		return
	}

	RespondJSON(w, http.StatusCreated, map[string]int64{"added": added})
}

func (h *BlacklistHandler) removeEntry(w http.ResponseWriter, r *http.Request) {
	hash, ok := ParseTorrentHash(w, r)
	if !ok {
		return
	}

	if err := h.store.Remove(r.Context(), hash); err != nil {
		if RespondNotFoundIfNoRows(w, err, "Hash is not blacklisted") {
			return
		}
		log.Error().Err(err).Str("hash", hash).Msg("Failed to remove blacklist entry")
		RespondError(w, http.StatusInternalServerError, "Failed to remove blacklist entry")
		return
	}

	RespondJSON(w, http.StatusNoContent, nil)
}

func (h *BlacklistHandler) clearEntries(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.Clear(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to clear blacklist")
		RespondError(w, http.StatusInternalServerError, "Failed to clear blacklist")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}
