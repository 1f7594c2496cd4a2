// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/buildinfo"
	"github.com/autobrr/sweeparr/internal/update"
)

// VersionHandler reports build information and drives self-update.
type VersionHandler struct {
	updateService *update.Service
}

func NewVersionHandler(updateService *update.Service) *VersionHandler {
	return &VersionHandler{
		updateService: updateService,
	}
}

// RegisterRoutes configures version routes under /version.
func (h *VersionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/version", func(r chi.Router) {
		r.Get("/", h.GetVersion)
		r.Get("/latest", h.GetLatestVersion)
		r.Post("/update", h.TriggerSelfUpdate)
	})
}

// VersionResponse carries the running build's metadata.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
}

// GetVersion reports the running build.
func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, VersionResponse{
		Version: buildinfo.Version,
		Commit:  buildinfo.Commit,
		Date:    buildinfo.Date,
	})
}

// LatestVersionResponse describes the newest published release.
type LatestVersionResponse struct {
	TagName             string `json:"tag_name"`
	Name                string `json:"name,omitempty"`
	Body                string `json:"body,omitempty"`
	HTMLURL             string `json:"html_url"`
	PublishedAt         string `json:"published_at"`
	SelfUpdateSupported bool   `json:"self_update_supported"`
}

// GetLatestVersion reports the newest release when one is newer than the
// running build, or 204 when up to date.
func (h *VersionHandler) GetLatestVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	release := h.updateService.GetLatestRelease(ctx)
	if release == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	response := LatestVersionResponse{
		TagName:             release.TagName,
		HTMLURL:             release.HTMLURL,
		PublishedAt:         release.PublishedAt.Format("2006-01-02T15:04:05Z"),
		SelfUpdateSupported: h.updateService.CanSelfUpdate(),
	}

	if release.Name != nil {
		response.Name = *release.Name
	}

	if release.Body != nil {
		response.Body = *release.Body
	}

	RespondJSON(w, http.StatusOK, response)
}

// TriggerSelfUpdate downloads the latest release and schedules a restart when supported.
func (h *VersionHandler) TriggerSelfUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())

	if !h.updateService.CanSelfUpdate() {
		RespondError(w, http.StatusBadRequest, update.ErrSelfUpdateUnsupported.Error())
		return
	}

	if err := h.updateService.RunSelfUpdate(ctx); err != nil {
		if errors.Is(err, update.ErrSelfUpdateUnsupported) {
			RespondError(w, http.StatusBadRequest, err.Error())
			return
		}

		log.Error().Err(err).Msg("failed to run self-update")
		RespondError(w, http.StatusInternalServerError, "failed to run self-update")
		return
	}

	RespondJSON(w, http.StatusAccepted, map[string]string{
		"message": "Update installed. sweeparr will restart shortly.",
	})

	go func() {
		time.Sleep(2 * time.Second)
		log.Info().Msg("restarting process after self-update")

		execPath, err := os.Executable()
		if err != nil {
			log.Error().Err(err).Msg("failed to get executable path for restart")
			os.Exit(1)
			return
		}

		// Resolve any symlinks so the fresh binary is the one re-executed.
		execPath, err = exec.LookPath(execPath)
		if err != nil {
			log.Error().Err(err).Msg("failed to resolve executable path")
			os.Exit(1)
			return
		}

		// Restart the process with the same arguments
		err = syscall.Exec(execPath, os.Args, os.Environ())
		if err != nil {
			log.Error().Err(err).Msg("failed to restart process after update")
			os.Exit(1)
		}
	}()
}
