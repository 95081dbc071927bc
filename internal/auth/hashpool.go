// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"runtime"
	"time"

	"github.com/samber/oops"
	"golang.org/x/sync/semaphore"
)

// HashPool bounds the number of concurrent password hash computations.
// Argon2id is memory-hard; unbounded parallel logins would exhaust memory.
type HashPool struct {
	hasher PasswordHasher
	sem    *semaphore.Weighted
}

// NewHashPool wraps hasher so at most workers computations run at once.
// A non-positive workers value uses GOMAXPROCS.
func NewHashPool(hasher PasswordHasher, workers int) *HashPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &HashPool{
		hasher: hasher,
		sem:    semaphore.NewWeighted(int64(workers)),
	}
}

// Hash hashes password once a worker slot is available.
func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", oops.Code("HASH_POOL_CANCELLED").With("operation", "hash").Wrap(err)
	}
	defer p.sem.Release(1)

	start := time.Now()
	digest, err := p.hasher.Hash(password)
	observeHashDuration("hash", time.Since(start))
	return digest, err
}

// Verify checks password against digest once a worker slot is available.
// A cancelled context is reported as a mismatch along with the error.
func (p *HashPool) Verify(ctx context.Context, password, digest string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, oops.Code("HASH_POOL_CANCELLED").With("operation", "verify").Wrap(err)
	}
	defer p.sem.Release(1)

	start := time.Now()
	ok := p.hasher.Verify(password, digest)
	observeHashDuration("verify", time.Since(start))
	return ok, nil
}

// NeedsUpgrade delegates to the wrapped hasher.
func (p *HashPool) NeedsUpgrade(digest string) bool {
	return p.hasher.NeedsUpgrade(digest)
}
