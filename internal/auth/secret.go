// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// SecretTokenBytes is the entropy of a secret token (256 bits).
const SecretTokenBytes = 32

// Default lifetimes of the single-use secrets.
const (
	DefaultResetTTL  = 10 * time.Minute
	DefaultVerifyTTL = 24 * time.Hour
)

// SecretToken is a freshly issued single-use secret. Plaintext is handed to
// the account holder exactly once; only Digest and ExpiresAt are stored.
type SecretToken struct {
	Plaintext string
	Digest    string
	ExpiresAt time.Time
}

// IssueSecret generates a random secret that expires ttl after now.
func IssueSecret(ttl time.Duration, now time.Time) (SecretToken, error) {
	if ttl <= 0 {
		return SecretToken{}, oops.Code("SECRET_INVALID_TTL").With("ttl", ttl.String()).Errorf("ttl must be positive")
	}

	buf := make([]byte, SecretTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return SecretToken{}, oops.Code("SECRET_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SecretTokenBytes).
			Wrap(err)
	}

	plaintext := hex.EncodeToString(buf)
	return SecretToken{
		Plaintext: plaintext,
		Digest:    DigestSecret(plaintext),
		ExpiresAt: now.Add(ttl),
	}, nil
}

// DigestSecret computes the hex-encoded SHA-256 digest stored for a secret.
func DigestSecret(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}

// MatchSecret reports whether candidate matches digest and now is strictly
// before expiresAt. The digest comparison is constant time.
func MatchSecret(candidate, digest string, expiresAt, now time.Time) bool {
	if candidate == "" || digest == "" {
		return false
	}
	computed := DigestSecret(candidate)
	matches := subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
	return matches && now.Before(expiresAt)
}
