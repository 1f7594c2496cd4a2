// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

const defaultCompressMinSize = 1 << 10

// Compress negotiates a Content-Encoding with the client and compresses
// responses larger than minSize. Preference order is zstd, brotli, gzip.
// Responses below the threshold are sent as-is with their Content-Length
// intact.
func Compress(minSize int) func(http.Handler) http.Handler {
	if minSize <= 0 {
		minSize = defaultCompressMinSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
			if encoding == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Accept-Encoding")

			cw := &compressWriter{
				ResponseWriter: w,
				encoding:       encoding,
				minSize:        minSize,
			}
			defer cw.Close()

			next.ServeHTTP(cw, r)
		})
	}
}

// compressWriter buffers the response head until the size threshold is
// crossed, then either starts an encoder or falls back to identity. The
// status line is held back until that decision so Content-Encoding can still
// be set.
type compressWriter struct {
	http.ResponseWriter

	encoding string
	minSize  int

	status     int
	headerSent bool
	identity   bool
	buf        []byte
	enc        io.WriteCloser
}

func (w *compressWriter) WriteHeader(code int) {
	if !w.headerSent && w.status == 0 {
		w.status = code
	}
}

func (w *compressWriter) Write(p []byte) (int, error) {
	if w.enc != nil {
		return w.enc.Write(p)
	}
	if w.identity {
		return w.ResponseWriter.Write(p)
	}

	w.buf = append(w.buf, p...)
	if len(w.buf) < w.minSize {
		return len(p), nil
	}

	if compressibleContentType(w.Header().Get("Content-Type")) {
		w.startEncoder()
	} else {
		w.startIdentity()
	}

	return len(p), nil
}

// Flush commits to identity encoding when called before the threshold is
// reached, since streaming callers cannot wait for the buffer to fill.
func (w *compressWriter) Flush() {
	if w.enc == nil && !w.identity {
		w.startIdentity()
	}

	if f, ok := w.enc.(interface{ Flush() error }); ok {
		f.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Close finishes the encoder, or flushes a short response untouched.
func (w *compressWriter) Close() error {
	if w.enc != nil {
		return w.enc.Close()
	}

	w.startIdentity()
	return nil
}

func (w *compressWriter) startEncoder() {
	enc, err := newEncoder(w.encoding, w.ResponseWriter)
	if err != nil {
		w.startIdentity()
		return
	}

	w.Header().Del("Content-Length")
	w.Header().Set("Content-Encoding", w.encoding)
	w.sendHeader()

	w.enc = enc
	if len(w.buf) > 0 {
		w.enc.Write(w.buf)
		w.buf = nil
	}
}

func (w *compressWriter) startIdentity() {
	w.identity = true
	w.sendHeader()

	if len(w.buf) > 0 {
		w.ResponseWriter.Write(w.buf)
		w.buf = nil
	}
}

func (w *compressWriter) sendHeader() {
	if w.headerSent {
		return
	}
	w.headerSent = true

	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.ResponseWriter.WriteHeader(w.status)
}

func newEncoder(encoding string, w io.Writer) (io.WriteCloser, error) {
	switch encoding {
	case "zstd":
		return zstd.NewWriter(w)
	case "br":
		return brotli.NewWriter(w), nil
	default:
		return gzip.NewWriter(w), nil
	}
}

func compressibleContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") ||
		strings.Contains(contentType, "application/json") ||
		strings.Contains(contentType, "application/xml") ||
		strings.Contains(contentType, "application/javascript") ||
		strings.Contains(contentType, "application/yaml")
}

// negotiateEncoding picks the best supported encoding the client accepts, or
// "" when the response should be sent unencoded.
func negotiateEncoding(acceptEncoding string) string {
	q := acceptQualities(acceptEncoding)

	for _, encoding := range []string{"zstd", "br", "gzip"} {
		if q[encoding] > 0 {
			return encoding
		}
	}

	return ""
}

// acceptQualities parses an Accept-Encoding header into quality values. A
// wildcard entry applies its quality to every supported encoding not listed
// explicitly.
func acceptQualities(header string) map[string]float64 {
	qualities := make(map[string]float64)
	if header == "" {
		return qualities
	}

	wildcard := -1.0
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		encoding := part
		quality := 1.0
		if idx := strings.Index(part, ";"); idx != -1 {
			encoding = strings.TrimSpace(part[:idx])
			params := strings.TrimSpace(part[idx+1:])
			if strings.HasPrefix(params, "q=") {
				if q, err := strconv.ParseFloat(params[2:], 64); err == nil {
					quality = q
				}
			}
		}

		if encoding == "*" {
			wildcard = quality
			continue
		}
		qualities[encoding] = quality
	}

	if wildcard >= 0 {
		for _, encoding := range []string{"zstd", "br", "gzip"} {
			if _, ok := qualities[encoding]; !ok {
				qualities[encoding] = wildcard
			}
		}
	}

	return qualities
}
