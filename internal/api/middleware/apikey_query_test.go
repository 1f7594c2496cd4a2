// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/sweeparr/internal/auth"
)

func TestAPIKeyFromQuery(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		header     string
		wantHeader string
	}{
		{
			name:       "promotes query param to header",
			target:     "/metrics?apikey=secret-from-query",
			wantHeader: "secret-from-query",
		},
		{
			name:       "existing header wins over query param",
			target:     "/metrics?apikey=secret-from-query",
			header:     "secret-from-header",
			wantHeader: "secret-from-header",
		},
		{
			name:       "absent param leaves header untouched",
			target:     "/metrics",
			wantHeader: "",
		},
		{
			name:       "empty param value is ignored",
			target:     "/metrics?apikey=",
			wantHeader: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			inner := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = r.Header.Get("X-API-Key")
			})

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()

			APIKeyFromQuery("apikey")(inner).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantHeader, seen)
		})
	}
}

func TestAPIKeyFromQuery_ChainsWithRequireAPIKey(t *testing.T) {
	// The combination is what the metrics endpoint mounts: scrapers that
	// cannot set headers authenticate with ?apikey= alone.
	rawKey, digest, err := auth.GenerateKey()
	require.NoError(t, err)

	handler := APIKeyFromQuery("apikey")(RequireAPIKey(auth.NewVerifier(digest))(okHandler()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics?apikey="+rawKey, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
