// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api assembles the HTTP surface: routing, auth, CORS,
// compression and the lifecycle of the listener itself.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sweeparr/internal/api/handlers"
	"github.com/autobrr/sweeparr/internal/api/middleware"
	"github.com/autobrr/sweeparr/internal/auth"
	"github.com/autobrr/sweeparr/internal/config"
	"github.com/autobrr/sweeparr/internal/metrics"
	"github.com/autobrr/sweeparr/internal/models"
	"github.com/autobrr/sweeparr/internal/services/cleanup"
	"github.com/autobrr/sweeparr/internal/update"
	"github.com/autobrr/sweeparr/internal/web/swagger"
	"github.com/autobrr/sweeparr/pkg/httphelpers"
)

// Dependencies carries everything the HTTP layer needs. Optional
// members (Metrics, Update) may be nil and their routes are skipped.
type Dependencies struct {
	Config   *config.AppConfig
	Verifier *auth.Verifier
	Cleanup  *cleanup.Service
	Stores   *models.Stores
	Metrics  *metrics.Manager
	Update   *update.Service
}

type Server struct {
	deps Dependencies
}

func NewServer(deps Dependencies) *Server {
	return &Server{deps: deps}
}

// Handler builds the full routing tree. The router is wrapped in CORS
// handling so preflight requests succeed without an API key.
func (s *Server) Handler() (http.Handler, error) {
	r, err := s.buildRouter()
	if err != nil {
		return nil, err
	}

	corsHandler := cors.New(corsOptions(s.deps.Config.Snapshot().CORSOrigins))
	return corsHandler.Handler(r), nil
}

func (s *Server) buildRouter() (*chi.Mux, error) {
	if s.deps.Config == nil {
		return nil, errors.New("api: missing config dependency")
	}
	if s.deps.Verifier == nil {
		return nil, errors.New("api: missing auth verifier dependency")
	}

	cfg := s.deps.Config.Snapshot()

	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Compress(0))

	registerRoutes := func(r chi.Router) {
		r.Route("/api", func(r chi.Router) {
			r.Route("/health", handlers.NewHealthHandler(s.deps.Cleanup).Routes)

			// The spec is public so UIs and tooling can discover the API
			// before they hold a key.
			r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/yaml")
				w.Write(swagger.GetOpenAPISpec())
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAPIKey(s.deps.Verifier))

				handlers.NewStatusHandler(s.deps.Cleanup).RegisterRoutes(r)
				handlers.NewTorrentsHandler(s.deps.Cleanup).RegisterRoutes(r)
				handlers.NewActionsHandler(s.deps.Cleanup).RegisterRoutes(r)
				handlers.NewConfigHandler(s.deps.Config).RegisterRoutes(r)

				if s.deps.Stores != nil {
					handlers.NewBlacklistHandler(s.deps.Stores.Blacklist).RegisterRoutes(r)
					handlers.NewUnregisteredHandler(s.deps.Stores.Unregistered).RegisterRoutes(r)
					handlers.NewOrphansHandler(s.deps.Stores.OrphanRuns).RegisterRoutes(r)
				}

				if s.deps.Update != nil {
					handlers.NewVersionHandler(s.deps.Update).RegisterRoutes(r)
				}
			})
		})

		if cfg.MetricsEnabled && s.deps.Metrics != nil {
			r.Group(func(r chi.Router) {
				// Prometheus cannot send custom headers, so the key may
				// arrive as ?apikey= and is promoted before verification.
				r.Use(middleware.APIKeyFromQuery("apikey"))
				r.Use(middleware.RequireAPIKey(s.deps.Verifier))
				r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.Metrics.Registry(), promhttp.HandlerOpts{}))
			})
		}
	}

	if base := httphelpers.NormalizeBasePath(cfg.BaseURL); base != "" {
		r.Route(base, registerRoutes)
	} else {
		registerRoutes(r)
	}

	return r, nil
}

// corsOptions echoes the request origin when no explicit origins are
// configured. AllowedOrigins: ["*"] would respond with a literal "*",
// which browsers reject for credentialed requests.
func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	if len(origins) > 0 {
		opts.AllowedOrigins = origins
	} else {
		opts.AllowOriginFunc = func(string) bool { return true }
	}

	return opts
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then
// drains in-flight requests before returning.
func (s *Server) ListenAndServe(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	cfg := s.deps.Config.Snapshot()
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("Shutting down API server")
	return srv.Shutdown(shutdownCtx)
}

// requestLogger traces each request with its status, size and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			log.Trace().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("API request")
		}()

		next.ServeHTTP(ww, r)
	})
}
