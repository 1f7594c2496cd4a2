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

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAPIKey(t *testing.T) {
	rawKey, digest, err := auth.GenerateKey()
	require.NoError(t, err)

	handler := RequireAPIKey(auth.NewVerifier(digest))(okHandler())

	tests := []struct {
		name       string
		key        string
		wantStatus int
	}{
		{
			name:       "missing key",
			key:        "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong key",
			key:        "0000000000000000000000000000000000000000000000000000000000000000",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "valid key",
			key:        rawKey,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRequireAPIKey_NoDigestConfigured(t *testing.T) {
	// With no digest there is no key that could ever match; every request
	// is rejected rather than letting the API run open.
	handler := RequireAPIKey(auth.NewVerifier(""))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "anything")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")
}

func TestRequireAPIKey_RepeatVerificationUsesCache(t *testing.T) {
	rawKey, digest, err := auth.GenerateKey()
	require.NoError(t, err)

	handler := RequireAPIKey(auth.NewVerifier(digest))(okHandler())

	// The second request hits the verifier's SHA-256 fast path. Both must
	// succeed and return the same result.
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-API-Key", rawKey)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}
