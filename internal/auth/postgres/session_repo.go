// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/auth"
)

const sessionColumns = `id, account_id, user_agent, ip_address, expires_at, created_at, rotated_at`

// RefreshSessionRepository implements auth.RefreshSessionRepository using PostgreSQL.
type RefreshSessionRepository struct {
	db querier
}

// NewRefreshSessionRepository creates a new RefreshSessionRepository.
func NewRefreshSessionRepository(db querier) *RefreshSessionRepository {
	return &RefreshSessionRepository{db: db}
}

// Create stores a new refresh session.
func (r *RefreshSessionRepository) Create(ctx context.Context, s *auth.RefreshSession) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO refresh_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		s.ID.String(),
		s.AccountID.String(),
		s.UserAgent,
		s.IPAddress,
		s.ExpiresAt,
		s.CreatedAt,
		s.RotatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert refresh_session").
			With("account_id", s.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a session by its ID, rotated or not.
func (r *RefreshSessionRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.RefreshSession, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM refresh_sessions WHERE id = $1`, id.String())

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get session by id").Wrap(err)
	}
	return session, nil
}

// Rotate marks a usable session as rotated. Only one caller can win for a
// given session: the WHERE clause rejects sessions already rotated.
func (r *RefreshSessionRepository) Rotate(ctx context.Context, id ulid.ULID, now time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE refresh_sessions SET rotated_at = $2
		WHERE id = $1 AND rotated_at IS NULL AND expires_at > $2
	`, id.String(), now)
	if err != nil {
		return oops.Code("SESSION_ROTATE_FAILED").
			With("operation", "rotate refresh_session").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ListByAccount returns the account's usable sessions, newest first.
func (r *RefreshSessionRepository) ListByAccount(ctx context.Context, accountID ulid.ULID, now time.Time) ([]*auth.RefreshSession, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM refresh_sessions
		WHERE account_id = $1 AND rotated_at IS NULL AND expires_at > $2
		ORDER BY created_at DESC
	`, accountID.String(), now)
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").
			With("operation", "list sessions by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var sessions []*auth.RefreshSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_ROWS_ERROR").
			With("operation", "iterate session rows").
			Wrap(err)
	}
	return sessions, nil
}

// DeleteByAccount removes all sessions for an account.
func (r *RefreshSessionRepository) DeleteByAccount(ctx context.Context, accountID ulid.ULID) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM refresh_sessions WHERE account_id = $1`, accountID.String())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_BY_ACCOUNT_FAILED").
			With("operation", "delete sessions by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes sessions that expired or were rotated before cutoff.
func (r *RefreshSessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM refresh_sessions
		WHERE expires_at <= $1 OR rotated_at < $1
	`, cutoff)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired refresh_sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanSession scans one refresh session row.
// Callers are responsible for handling pgx.ErrNoRows.
func scanSession(row pgx.Row) (*auth.RefreshSession, error) {
	var (
		s            auth.RefreshSession
		idStr        string
		accountIDStr string
	)
	err := row.Scan(&idStr, &accountIDStr, &s.UserAgent, &s.IPAddress, &s.ExpiresAt, &s.CreatedAt, &s.RotatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan refresh_session").
			Wrap(err)
	}

	if s.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	if s.AccountID, err = ulid.Parse(accountIDStr); err != nil {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT_ID").
			With("account_id", accountIDStr).
			Wrap(err)
	}
	return &s, nil
}

// Compile-time interface check.
var _ auth.RefreshSessionRepository = (*RefreshSessionRepository)(nil)
