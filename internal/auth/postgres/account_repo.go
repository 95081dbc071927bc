// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/auth"
)

const accountColumns = `id, email, password_hash, first_name, last_name, phone, avatar_url,
	role, is_active, is_verified, failed_attempts, locked_until, password_changed_at,
	reset_token_hash, reset_expires_at, verify_token_hash, verify_expires_at,
	login_count, last_login_at, created_at, updated_at`

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db querier
}

// NewAccountRepository creates a new AccountRepository. db is usually a
// *pgxpool.Pool.
func NewAccountRepository(db querier) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, a *auth.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`,
		a.ID.String(), a.Email, a.PasswordHash,
		a.Profile.FirstName, a.Profile.LastName, a.Profile.Phone, a.Profile.AvatarURL,
		string(a.Role), a.IsActive, a.IsVerified, a.FailedAttempts, a.LockedUntil, a.PasswordChangedAt,
		a.ResetTokenHash, a.ResetExpiresAt, a.VerifyTokenHash, a.VerifyExpiresAt,
		a.LoginCount, a.LastLoginAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ACCOUNT_DUPLICATE").
				With("email", a.Email).
				Wrap(auth.ErrDuplicate)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("account_id", a.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id.String())
	return r.one(row, "get account by id", "account_id", id.String())
}

// GetByEmail retrieves an account by email, ignoring case.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE LOWER(email) = LOWER($1)`, email)
	return r.one(row, "get account by email", "email", email)
}

// List returns a page of accounts ordered by creation time.
func (r *AccountRepository) List(ctx context.Context, opts auth.ListOptions) ([]*auth.Account, error) {
	opts = opts.Normalize()
	rows, err := r.db.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2
	`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "list accounts").
			Wrap(err)
	}
	defer rows.Close()

	accounts := make([]*auth.Account, 0, opts.Limit)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_ROWS_ERROR").
			With("operation", "iterate account rows").
			Wrap(err)
	}
	return accounts, nil
}

// UpdateProfile applies a partial profile change. Nil fields keep their value.
func (r *AccountRepository) UpdateProfile(ctx context.Context, id ulid.ULID, u auth.ProfileUpdate, now time.Time) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE accounts SET
			first_name = COALESCE($2, first_name),
			last_name  = COALESCE($3, last_name),
			phone      = COALESCE($4, phone),
			avatar_url = COALESCE($5, avatar_url),
			updated_at = $6
		WHERE id = $1
		RETURNING `+accountColumns,
		id.String(), u.FirstName, u.LastName, u.Phone, u.AvatarURL, now)
	return r.one(row, "update profile", "account_id", id.String())
}

// SetRole changes the account role.
func (r *AccountRepository) SetRole(ctx context.Context, id ulid.ULID, role auth.Role, now time.Time) error {
	return r.execOne(ctx, "set role", id,
		`UPDATE accounts SET role = $2, updated_at = $3 WHERE id = $1`,
		id.String(), string(role), now)
}

// SetActive enables or disables the account.
func (r *AccountRepository) SetActive(ctx context.Context, id ulid.ULID, active bool, now time.Time) error {
	return r.execOne(ctx, "set active", id,
		`UPDATE accounts SET is_active = $2, updated_at = $3 WHERE id = $1`,
		id.String(), active, now)
}

// Delete removes the account. Refresh sessions cascade.
func (r *AccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return r.execOne(ctx, "delete account", id, `DELETE FROM accounts WHERE id = $1`, id.String())
}

// RecordLoginFailure applies auth.LockoutPolicy.NextFailure in one statement.
// An expired lock restarts the count at one; an active lock is kept.
func (r *AccountRepository) RecordLoginFailure(ctx context.Context, id ulid.ULID, policy auth.LockoutPolicy, now time.Time) (auth.LockState, error) {
	var state auth.LockState
	err := r.db.QueryRow(ctx, `
		WITH cur AS (
			SELECT id,
			       locked_until IS NOT NULL AND locked_until > $2 AS active_lock,
			       CASE WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN 1
			            ELSE failed_attempts + 1 END AS attempts,
			       locked_until
			FROM accounts WHERE id = $1
			FOR UPDATE
		)
		UPDATE accounts a SET
			failed_attempts = cur.attempts,
			locked_until = CASE
				WHEN cur.active_lock THEN cur.locked_until
				WHEN cur.attempts >= $3 THEN $4::timestamptz
				ELSE NULL END,
			updated_at = $2
		FROM cur
		WHERE a.id = cur.id
		RETURNING a.failed_attempts, a.locked_until
	`, id.String(), now, policy.MaxAttempts, now.Add(policy.LockDuration)).Scan(&state.FailedAttempts, &state.LockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.LockState{}, notFound(id)
	}
	if err != nil {
		return auth.LockState{}, oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "record login failure").
			With("account_id", id.String()).
			Wrap(err)
	}
	return state, nil
}

// RecordLoginSuccess clears lockout state and stamps the login.
func (r *AccountRepository) RecordLoginSuccess(ctx context.Context, id ulid.ULID, now time.Time) error {
	return r.execOne(ctx, "record login success", id, `
		UPDATE accounts SET
			failed_attempts = 0,
			locked_until = NULL,
			login_count = login_count + 1,
			last_login_at = $2,
			updated_at = $2
		WHERE id = $1
	`, id.String(), now)
}

// ClearLockout resets failed attempts and removes any lock.
func (r *AccountRepository) ClearLockout(ctx context.Context, id ulid.ULID, now time.Time) error {
	return r.execOne(ctx, "clear lockout", id,
		`UPDATE accounts SET failed_attempts = 0, locked_until = NULL, updated_at = $2 WHERE id = $1`,
		id.String(), now)
}

// UpdatePasswordHash replaces the digest without touching password_changed_at.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string, now time.Time) error {
	return r.execOne(ctx, "update password hash", id,
		`UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id.String(), passwordHash, now)
}

// ChangePassword stores a new digest, advances password_changed_at by at
// least one millisecond, and drops any pending reset and lockout.
func (r *AccountRepository) ChangePassword(ctx context.Context, id ulid.ULID, passwordHash string, now time.Time) (time.Time, error) {
	var changedAt time.Time
	err := r.db.QueryRow(ctx, `
		UPDATE accounts SET
			password_hash = $2,
			password_changed_at = GREATEST($3::timestamptz,
				COALESCE(password_changed_at + INTERVAL '1 millisecond', $3::timestamptz)),
			reset_token_hash = NULL,
			reset_expires_at = NULL,
			failed_attempts = 0,
			locked_until = NULL,
			updated_at = $3
		WHERE id = $1
		RETURNING password_changed_at
	`, id.String(), passwordHash, now).Scan(&changedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, notFound(id)
	}
	if err != nil {
		return time.Time{}, oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "change password").
			With("account_id", id.String()).
			Wrap(err)
	}
	return changedAt, nil
}

// SetResetToken stores a reset digest, replacing any earlier one.
func (r *AccountRepository) SetResetToken(ctx context.Context, id ulid.ULID, digest string, expiresAt time.Time) error {
	return r.execOne(ctx, "set reset token", id,
		`UPDATE accounts SET reset_token_hash = $2, reset_expires_at = $3 WHERE id = $1`,
		id.String(), digest, expiresAt)
}

// ClearResetToken removes the reset artifact if it still holds digest.
func (r *AccountRepository) ClearResetToken(ctx context.Context, id ulid.ULID, digest string) error {
	return r.execAny(ctx, "clear reset token", id, `
		UPDATE accounts SET reset_token_hash = NULL, reset_expires_at = NULL
		WHERE id = $1 AND reset_token_hash = $2
	`, id.String(), digest)
}

// ConsumeResetToken clears and returns the account holding an unexpired
// reset digest.
func (r *AccountRepository) ConsumeResetToken(ctx context.Context, digest string, now time.Time) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE accounts SET reset_token_hash = NULL, reset_expires_at = NULL, updated_at = $2
		WHERE reset_token_hash = $1 AND reset_expires_at > $2
		RETURNING `+accountColumns, digest, now)
	return r.one(row, "consume reset token")
}

// SetVerifyToken stores a verification digest, replacing any earlier one.
func (r *AccountRepository) SetVerifyToken(ctx context.Context, id ulid.ULID, digest string, expiresAt time.Time) error {
	return r.execOne(ctx, "set verify token", id,
		`UPDATE accounts SET verify_token_hash = $2, verify_expires_at = $3 WHERE id = $1`,
		id.String(), digest, expiresAt)
}

// ClearVerifyToken removes the verification artifact if it still holds digest.
func (r *AccountRepository) ClearVerifyToken(ctx context.Context, id ulid.ULID, digest string) error {
	return r.execAny(ctx, "clear verify token", id, `
		UPDATE accounts SET verify_token_hash = NULL, verify_expires_at = NULL
		WHERE id = $1 AND verify_token_hash = $2
	`, id.String(), digest)
}

// ConsumeVerifyToken clears an unexpired verification digest and marks the
// account verified.
func (r *AccountRepository) ConsumeVerifyToken(ctx context.Context, digest string, now time.Time) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE accounts SET verify_token_hash = NULL, verify_expires_at = NULL,
			is_verified = TRUE, updated_at = $2
		WHERE verify_token_hash = $1 AND verify_expires_at > $2
		RETURNING `+accountColumns, digest, now)
	return r.one(row, "consume verify token")
}

// one scans a single-row result, mapping no rows to auth.ErrNotFound.
func (r *AccountRepository) one(row pgx.Row, operation string, kv ...any) (*auth.Account, error) {
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("operation", operation).
			With(kv...).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", operation).Wrap(err)
	}
	return a, nil
}

// execOne runs a statement that must touch exactly the account id.
func (r *AccountRepository) execOne(ctx context.Context, operation string, id ulid.ULID, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", operation).
			With("account_id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

// execAny runs a statement where touching no rows is a valid outcome.
func (r *AccountRepository) execAny(ctx context.Context, operation string, id ulid.ULID, sql string, args ...any) error {
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", operation).
			With("account_id", id.String()).
			Wrap(err)
	}
	return nil
}

func notFound(id ulid.ULID) error {
	return oops.Code("ACCOUNT_NOT_FOUND").
		With("account_id", id.String()).
		Wrap(auth.ErrNotFound)
}

// scanAccount scans one account row. pgx.ErrNoRows is returned unwrapped so
// callers can map it.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		a     auth.Account
		idStr string
		role  string
	)
	err := row.Scan(
		&idStr, &a.Email, &a.PasswordHash,
		&a.Profile.FirstName, &a.Profile.LastName, &a.Profile.Phone, &a.Profile.AvatarURL,
		&role, &a.IsActive, &a.IsVerified, &a.FailedAttempts, &a.LockedUntil, &a.PasswordChangedAt,
		&a.ResetTokenHash, &a.ResetExpiresAt, &a.VerifyTokenHash, &a.VerifyExpiresAt,
		&a.LoginCount, &a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	a.ID = id
	a.Role = auth.Role(role)
	return &a, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
