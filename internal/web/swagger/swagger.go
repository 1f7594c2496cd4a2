// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package swagger embeds the OpenAPI description of the HTTP API.
package swagger

import _ "embed"

//go:embed openapi.yaml
var openapiYAML []byte

// GetOpenAPISpec returns the raw embedded OpenAPI document.
func GetOpenAPISpec() []byte {
	return openapiYAML
}
