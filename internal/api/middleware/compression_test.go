// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
}

func TestCompress_EncodesLargeResponse(t *testing.T) {
	body := `{"payload":"` + strings.Repeat("a", 4<<10) + `"}`

	tests := []struct {
		name           string
		acceptEncoding string
		wantEncoding   string
		decode         func(t *testing.T, r io.Reader) []byte
	}{
		{
			name:           "gzip",
			acceptEncoding: "gzip",
			wantEncoding:   "gzip",
			decode: func(t *testing.T, r io.Reader) []byte {
				gz, err := gzip.NewReader(r)
				require.NoError(t, err)
				defer gz.Close()
				out, err := io.ReadAll(gz)
				require.NoError(t, err)
				return out
			},
		},
		{
			name:           "zstd preferred over gzip",
			acceptEncoding: "gzip, zstd",
			wantEncoding:   "zstd",
			decode: func(t *testing.T, r io.Reader) []byte {
				dec, err := zstd.NewReader(r)
				require.NoError(t, err)
				defer dec.Close()
				out, err := io.ReadAll(dec)
				require.NoError(t, err)
				return out
			},
		},
		{
			name:           "brotli preferred over gzip",
			acceptEncoding: "gzip, br",
			wantEncoding:   "br",
			decode: func(t *testing.T, r io.Reader) []byte {
				out, err := io.ReadAll(brotli.NewReader(r))
				require.NoError(t, err)
				return out
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			rec := httptest.NewRecorder()

			Compress(0)(jsonHandler(body)).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantEncoding, rec.Header().Get("Content-Encoding"))
			assert.Equal(t, "Accept-Encoding", rec.Header().Get("Vary"))
			assert.Empty(t, rec.Header().Get("Content-Length"))
			assert.Equal(t, body, string(tt.decode(t, rec.Body)))
		})
	}
}

func TestCompress_SmallResponseStaysIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	Compress(0)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", "15")
		w.Write([]byte(`{"status":"ok"}`))
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "15", rec.Header().Get("Content-Length"))
	assert.Equal(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCompress_CustomThreshold(t *testing.T) {
	body := `{"k":"` + strings.Repeat("a", 26) + `"}`

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	Compress(16)(jsonHandler(body)).ServeHTTP(rec, req)

	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	defer gz.Close()
	out, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, body, string(out))
}

func TestCompress_SkipsNonCompressibleContentType(t *testing.T) {
	body := strings.Repeat("b", 4<<10)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "zstd")
	rec := httptest.NewRecorder()

	Compress(0)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte(body))
	})).ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, body, rec.Body.String())
}

func TestCompress_PreservesStatusCode(t *testing.T) {
	body := `{"items":"` + strings.Repeat("c", 2<<10) + `"}`

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	Compress(0)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(body))
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}

func TestCompress_FlushBeforeThresholdStaysIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	Compress(0)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: one\n\n"))
		w.(http.Flusher).Flush()
		w.Write([]byte("data: two\n\n"))
	})).ServeHTTP(rec, req)

	assert.True(t, rec.Flushed)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "data: one\n\ndata: two\n\n", rec.Body.String())
}

func TestCompress_NoAcceptEncodingPassesThrough(t *testing.T) {
	body := `{"payload":"` + strings.Repeat("d", 4<<10) + `"}`

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	Compress(0)(jsonHandler(body)).ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Empty(t, rec.Header().Get("Vary"))
	assert.Equal(t, body, rec.Body.String())
}

func TestNegotiateEncoding(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"no header", "", ""},
		{"gzip only", "gzip", "gzip"},
		{"prefers zstd", "gzip, br, zstd", "zstd"},
		{"quality zero excludes", "gzip;q=0, br", "br"},
		{"all rejected", "gzip;q=0, zstd;q=0, br;q=0", ""},
		{"wildcard enables all", "*", "zstd"},
		{"wildcard respects explicit zero", "*;q=1, zstd;q=0", "br"},
		{"unknown encoding ignored", "compress", ""},
		{"spacing and case in qualities", "gzip ; q=0.5, zstd;q=0.9", "zstd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, negotiateEncoding(tt.header))
		})
	}
}
