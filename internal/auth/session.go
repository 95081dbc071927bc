// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RefreshSession records one issued refresh token. Its ID is the token's
// jti. A session is usable until it expires or is rotated.
type RefreshSession struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	UserAgent string
	IPAddress string
	ExpiresAt time.Time
	CreatedAt time.Time
	RotatedAt *time.Time
}

// NewRefreshSession creates a validated RefreshSession.
// UserAgent and IPAddress are optional and may be empty.
func NewRefreshSession(accountID ulid.ULID, userAgent, ipAddress string, now, expiresAt time.Time) (*RefreshSession, error) {
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if !expiresAt.After(now) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").
			With("expires_at", expiresAt).
			Errorf("expiry must be after creation")
	}

	return &RefreshSession{
		ID:        ulid.Make(),
		AccountID: accountID,
		UserAgent: truncate(userAgent, 512),
		IPAddress: truncate(ipAddress, 64),
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// IsUsableAt reports whether the session can still be rotated at t.
func (s *RefreshSession) IsUsableAt(t time.Time) bool {
	return s.RotatedAt == nil && t.Before(s.ExpiresAt)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// RefreshSessionRepository manages refresh session persistence.
type RefreshSessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *RefreshSession) error

	// GetByID retrieves a session by ID, rotated or not.
	GetByID(ctx context.Context, id ulid.ULID) (*RefreshSession, error)

	// Rotate marks an unrotated, unexpired session as rotated in one step.
	// Returns ErrNotFound when no usable session has that ID.
	Rotate(ctx context.Context, id ulid.ULID, now time.Time) error

	// ListByAccount returns the account's usable sessions at now.
	ListByAccount(ctx context.Context, accountID ulid.ULID, now time.Time) ([]*RefreshSession, error)

	// DeleteByAccount removes every session of an account and returns the count.
	DeleteByAccount(ctx context.Context, accountID ulid.ULID) (int64, error)

	// DeleteExpired removes sessions that expired or were rotated before
	// cutoff and returns the count.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
