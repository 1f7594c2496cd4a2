// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

const rawKeyBytes = 32

// GenerateKey returns a fresh random API key and its argon2id digest. The raw
// key is shown to the operator once; only the digest is persisted.
func GenerateKey() (raw, digest string, err error) {
	buf := make([]byte, rawKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate key: %w", err)
	}
	raw = hex.EncodeToString(buf)

	digest, err = HashKey(raw)
	if err != nil {
		return "", "", err
	}
	return raw, digest, nil
}

// Verifier checks presented API keys against the configured digest. The first
// successful argon2 verification caches the key's SHA-256 so later requests
// skip the expensive derivation.
type Verifier struct {
	digest string

	mu     sync.Mutex
	cached [sha256.Size]byte
	warm   bool
}

func NewVerifier(digest string) *Verifier {
	return &Verifier{digest: digest}
}

// Enabled reports whether an API key digest is configured at all.
func (v *Verifier) Enabled() bool {
	return v != nil && v.digest != ""
}

// Verify reports whether key matches the configured digest. With no digest
// configured every key is rejected; route gating is the caller's decision.
func (v *Verifier) Verify(key string) bool {
	if !v.Enabled() || key == "" {
		return false
	}

	sum := sha256.Sum256([]byte(key))

	v.mu.Lock()
	if v.warm && subtle.ConstantTimeCompare(v.cached[:], sum[:]) == 1 {
		v.mu.Unlock()
		return true
	}
	v.mu.Unlock()

	ok, err := VerifyKey(key, v.digest)
	if err != nil {
		log.Warn().Err(err).Msg("auth: configured API key digest is malformed, rejecting")
		return false
	}
	if !ok {
		return false
	}

	v.mu.Lock()
	v.cached = sum
	v.warm = true
	v.mu.Unlock()
	return true
}
