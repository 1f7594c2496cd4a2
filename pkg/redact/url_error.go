// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package redact scrubs credentials from errors before they reach logs.
package redact

import (
	"errors"
	"net/url"
)

// sensitiveParams are query parameters whose values never belong in logs.
var sensitiveParams = []string{"apikey", "api_key", "passkey", "token", "password"}

// URLError redacts sensitive query parameter values from any *url.Error in
// err's chain. Errors without a url.Error pass through unchanged.
func URLError(err error) error {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}

	redacted := redactURL(urlErr.URL)
	if redacted == urlErr.URL {
		return err
	}

	return &url.Error{
		Op:  urlErr.Op,
		URL: redacted,
		Err: urlErr.Err,
	}
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	q := u.Query()
	changed := false
	for _, param := range sensitiveParams {
		if q.Has(param) {
			q.Set(param, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return raw
	}

	u.RawQuery = q.Encode()
	return u.String()
}
