// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/go-chi/chi/v5"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/pkg/stringutils"
)

// torrentService provides daemon snapshots for the read-only torrent routes.
type torrentService interface {
	Torrents(ctx context.Context) ([]qbt.Torrent, error)
	TorrentFiles(ctx context.Context, hash string) ([]string, error)
}

// TorrentsHandler serves read-only torrent listings from the daemon.
type TorrentsHandler struct {
	service torrentService
}

func NewTorrentsHandler(service torrentService) *TorrentsHandler {
	return &TorrentsHandler{service: service}
}

// RegisterRoutes configures torrent routes under /torrents.
func (h *TorrentsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/torrents", func(r chi.Router) {
		r.Get("/", h.listTorrents)
		r.Get("/{hash}/files", h.getTorrentFiles)
	})
}

// TorrentResponse is the wire shape for one torrent in a listing.
type TorrentResponse struct {
	Hash        string  `json:"hash"`
	Name        string  `json:"name"`
	State       string  `json:"state"`
	Category    string  `json:"category,omitempty"`
	Tags        string  `json:"tags,omitempty"`
	Ratio       float64 `json:"ratio"`
	Progress    float64 `json:"progress"`
	Size        int64   `json:"size"`
	SeedingTime int64   `json:"seedingTimeSeconds"`
	AddedOn     int64   `json:"addedOn"`
}

// TorrentListResponse is a paginated torrent listing.
type TorrentListResponse struct {
	Torrents []TorrentResponse `json:"torrents"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

func (h *TorrentsHandler) listTorrents(w http.ResponseWriter, r *http.Request) {
	torrents, err := h.service.Torrents(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list torrents")
		RespondError(w, http.StatusBadGateway, "Failed to fetch torrents from qBittorrent")
		return
	}

	if search := strings.TrimSpace(r.URL.Query().Get("search")); search != "" {
		torrents = filterTorrents(torrents, search)
	}

	page := ParsePagination(r, 100, 500)
	total := len(torrents)

	start := page.Offset
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}

	out := make([]TorrentResponse, 0, end-start)
	for _, t := range torrents[start:end] {
		out = append(out, TorrentResponse{
			Hash:        t.Hash,
			Name:        t.Name,
			State:       string(t.State),
			Category:    t.Category,
			Tags:        t.Tags,
			Ratio:       t.Ratio,
			Progress:    t.Progress,
			Size:        t.Size,
			SeedingTime: t.SeedingTime,
			AddedOn:     t.AddedOn,
		})
	}

	RespondJSON(w, http.StatusOK, TorrentListResponse{
		Torrents: out,
		Total:    total,
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
}

// TorrentFilesResponse lists the file paths a torrent claims on disk.
type TorrentFilesResponse struct {
	Hash  string   `json:"hash"`
	Files []string `json:"files"`
}

func (h *TorrentsHandler) getTorrentFiles(w http.ResponseWriter, r *http.Request) {
	hash, ok := ParseTorrentHash(w, r)
	if !ok {
		return
	}

	files, err := h.service.TorrentFiles(r.Context(), hash)
	if err != nil {
		log.Error().Err(err).Str("hash", hash).Msg("Failed to fetch torrent files")
		RespondError(w, http.StatusBadGateway, "Failed to fetch torrent files from qBittorrent")
		return
	}

	RespondJSON(w, http.StatusOK, TorrentFilesResponse{Hash: hash, Files: files})
}

// filterTorrents ranks scene-normalized names against the query so dotted
// release names match natural-language searches. Lower ranks sort first.
func filterTorrents(torrents []qbt.Torrent, query string) []qbt.Torrent {
	normalizedQuery := stringutils.NormalizeForSearch(query)
	if normalizedQuery == "" {
		return torrents
	}

	type ranked struct {
		torrent qbt.Torrent
		rank    int
	}

	matches := make([]ranked, 0, len(torrents))
	for _, t := range torrents {
		rank := fuzzy.RankMatch(normalizedQuery, stringutils.NormalizeForSearch(t.Name))
		if rank < 0 {
			continue
		}
		matches = append(matches, ranked{torrent: t, rank: rank})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].rank < matches[j].rank
	})

	out := make([]qbt.Torrent, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.torrent)
	}
	return out
}
