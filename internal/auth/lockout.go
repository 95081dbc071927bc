// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"time"
)

// Lockout defaults.
const (
	// DefaultMaxAttempts is the number of consecutive failures that locks an account.
	DefaultMaxAttempts = 5

	// DefaultLockDuration is how long a lock lasts.
	DefaultLockDuration = 15 * time.Minute
)

// LockoutPolicy decides when repeated login failures lock an account.
type LockoutPolicy struct {
	MaxAttempts  int           `koanf:"max_attempts" json:"max_attempts" jsonschema:"minimum=1"`
	LockDuration time.Duration `koanf:"lock_duration" json:"lock_duration" jsonschema:"oneof_type=string;integer"`
}

// DefaultLockoutPolicy returns the policy of 5 failures and a 15 minute lock.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts:  DefaultMaxAttempts,
		LockDuration: DefaultLockDuration,
	}
}

// LockState is the brute-force bookkeeping carried by an account.
type LockState struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// IsLocked reports whether the state is locked at now. Locks expire lazily:
// no background job clears them.
func (p LockoutPolicy) IsLocked(s LockState, now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}

// NextFailure returns the state after one more failed attempt at now.
//
// An expired lock is cleared and counting restarts at one. An active lock is
// left untouched apart from the counter. Otherwise reaching MaxAttempts sets
// a lock of LockDuration. AccountRepository.RecordLoginFailure applies the
// same transition atomically in storage.
func (p LockoutPolicy) NextFailure(s LockState, now time.Time) LockState {
	if s.LockedUntil != nil && !s.LockedUntil.After(now) {
		s = LockState{}
	}

	next := LockState{FailedAttempts: s.FailedAttempts + 1, LockedUntil: s.LockedUntil}
	if next.LockedUntil == nil && next.FailedAttempts >= p.MaxAttempts {
		until := now.Add(p.LockDuration)
		next.LockedUntil = &until
	}
	return next
}

// NextSuccess returns the state after a successful login.
func (p LockoutPolicy) NextSuccess() LockState {
	return LockState{}
}

// Remaining returns how long the lock in s still lasts at now.
func (p LockoutPolicy) Remaining(s LockState, now time.Time) time.Duration {
	if !p.IsLocked(s, now) {
		return 0
	}
	return s.LockedUntil.Sub(now)
}
