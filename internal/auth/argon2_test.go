// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultArgon2Params(t *testing.T) {
	t.Parallel()

	params := DefaultArgon2Params()

	assert.Equal(t, uint32(64*1024), params.Memory, "memory should be 64MB")
	assert.Equal(t, uint32(3), params.Iterations)
	assert.Equal(t, uint8(2), params.Parallelism)
	assert.Equal(t, uint32(16), params.SaltLength)
	assert.Equal(t, uint32(32), params.KeyLength)
}

func TestHashKeyFormat(t *testing.T) {
	t.Parallel()

	for _, key := range []string{
		"0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0",
		"",
		strings.Repeat("k", 512),
	} {
		digest, err := HashKey(key)
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(digest, "$argon2id$v="))
		assert.Len(t, strings.Split(digest, "$"), 6)
	}
}

func TestHashKeySaltsEveryDigest(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 5 {
		digest, err := HashKey("same-key")
		require.NoError(t, err)
		assert.False(t, seen[digest], "same digest produced twice (salt reuse)")
		seen[digest] = true
	}
}

func TestVerifyKey(t *testing.T) {
	t.Parallel()

	digest, err := HashKey("correct-key")
	require.NoError(t, err)

	ok, err := VerifyKey("correct-key", digest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyKey("wrong-key", digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyKeyMalformedDigest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		digest  string
		wantErr string
	}{
		{
			name:    "empty",
			digest:  "",
			wantErr: "invalid hash format",
		},
		{
			name:    "too few parts",
			digest:  "$argon2id$v=19$salt$hash",
			wantErr: "invalid hash format",
		},
		{
			name:    "wrong algorithm",
			digest:  "$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
			wantErr: "incompatible hash algorithm",
		},
		{
			name:    "missing version prefix",
			digest:  "$argon2id$19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
			wantErr: "failed to parse version",
		},
		{
			name:    "unsupported version",
			digest:  "$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$aGFzaA",
			wantErr: "incompatible argon2 version",
		},
		{
			name:    "garbled parameters",
			digest:  "$argon2id$v=19$invalid$c2FsdA$aGFzaA",
			wantErr: "failed to parse parameters",
		},
		{
			name:    "bad salt encoding",
			digest:  "$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA",
			wantErr: "failed to decode salt",
		},
		{
			name:    "bad digest encoding",
			digest:  "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$!!!",
			wantErr: "failed to decode hash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := VerifyKey("anything", tt.digest)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeHashRoundTrip(t *testing.T) {
	t.Parallel()

	digest, err := HashKey("round-trip")
	require.NoError(t, err)

	params, salt, raw, err := decodeHash(digest)
	require.NoError(t, err)

	defaults := DefaultArgon2Params()
	assert.Equal(t, defaults.Memory, params.Memory)
	assert.Equal(t, defaults.Iterations, params.Iterations)
	assert.Equal(t, defaults.Parallelism, params.Parallelism)
	assert.Len(t, salt, int(defaults.SaltLength))
	assert.Len(t, raw, int(defaults.KeyLength))
}
