// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2Params controls the cost of argon2id hashing.
type Argon2Params struct {
	Time      uint32 `koanf:"time" json:"time" jsonschema:"minimum=1"`
	MemoryKiB uint32 `koanf:"memory_kib" json:"memory_kib" jsonschema:"minimum=8192"`
	Threads   uint8  `koanf:"threads" json:"threads" jsonschema:"minimum=1"`
	SaltLen   uint32 `koanf:"salt_len" json:"salt_len" jsonschema:"minimum=16"`
	KeyLen    uint32 `koanf:"key_len" json:"key_len" jsonschema:"minimum=16"`
}

// DefaultArgon2Params returns the OWASP-recommended argon2id parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:      1,
		MemoryKiB: 64 * 1024,
		Threads:   4,
		SaltLen:   16,
		KeyLen:    32,
	}
}

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code(CodeValidationFailed).Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a self-describing digest of the password.
	Hash(password string) (string, error)

	// Verify reports whether the password matches the digest.
	// A malformed digest never matches.
	Verify(password, digest string) bool

	// NeedsUpgrade reports whether the digest was produced by a legacy
	// algorithm or weaker parameters and should be rehashed.
	NeedsUpgrade(digest string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id. Legacy bcrypt
// digests are accepted by Verify and reported by NeedsUpgrade.
type Argon2idHasher struct {
	params Argon2Params
}

var _ PasswordHasher = (*Argon2idHasher)(nil)

// NewArgon2idHasher creates an Argon2idHasher with default parameters.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultArgon2Params()}
}

// NewArgon2idHasherWithParams creates an Argon2idHasher with explicit parameters.
func NewArgon2idHasherWithParams(params Argon2Params) (*Argon2idHasher, error) {
	if params.Time == 0 || params.MemoryKiB == 0 || params.Threads == 0 {
		return nil, oops.Code("HASHER_INVALID_PARAMS").
			With("time", params.Time).
			With("memory_kib", params.MemoryKiB).
			With("threads", params.Threads).
			Errorf("argon2 time, memory and threads must be positive")
	}
	if params.SaltLen < 8 || params.KeyLen < 16 {
		return nil, oops.Code("HASHER_INVALID_PARAMS").
			With("salt_len", params.SaltLen).
			With("key_len", params.KeyLen).
			Errorf("argon2 salt must be at least 8 bytes and key at least 16 bytes")
	}
	return &Argon2idHasher{params: params}, nil
}

// Params returns the parameters used for new digests.
func (h *Argon2idHasher) Params() Argon2Params {
	return h.params
}

// Hash produces an argon2id hash of the password in PHC string format.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, h.params.KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the digest.
func (h *Argon2idHasher) Verify(password, digest string) bool {
	if isBcrypt(digest) {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
	}

	parsed, err := parseArgon2id(digest)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), parsed.salt, parsed.params.Time, parsed.params.MemoryKiB,
		parsed.params.Threads, uint32(len(parsed.key))) //nolint:gosec // key length bounded by parseArgon2id

	return subtle.ConstantTimeCompare(computed, parsed.key) == 1
}

// NeedsUpgrade returns true for non-argon2id digests and for argon2id
// digests weaker than the configured parameters.
func (h *Argon2idHasher) NeedsUpgrade(digest string) bool {
	parsed, err := parseArgon2id(digest)
	if err != nil {
		return true
	}
	p := parsed.params
	return p.Time < h.params.Time ||
		p.MemoryKiB < h.params.MemoryKiB ||
		p.Threads < h.params.Threads ||
		uint32(len(parsed.key)) < h.params.KeyLen //nolint:gosec // key length bounded by parseArgon2id
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}

type argon2Digest struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func parseArgon2id(digest string) (*argon2Digest, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}
	if time == 0 || memory == 0 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("time and memory must be positive")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1024 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(key))
	}

	return &argon2Digest{
		params: Argon2Params{
			Time:      time,
			MemoryKiB: memory,
			Threads:   uint8(threads),
			SaltLen:   uint32(len(salt)), //nolint:gosec // decoded from a bounded string
		},
		salt: salt,
		key:  key,
	}, nil
}
