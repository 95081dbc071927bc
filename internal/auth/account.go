// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Password constraints.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// Role is the authorization role carried by an account.
type Role string

// Known roles. There is no implicit hierarchy between them.
const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleUser, RoleModerator, RoleAdmin}
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleModerator, RoleAdmin:
		return r, nil
	default:
		return "", oops.Code(CodeValidationFailed).
			With("role", s).
			Errorf("unknown role %q", s)
	}
}

// Profile holds the user-editable part of an account.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// FullName joins first and last name.
func FullName(p Profile) string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ProfileUpdate is a partial profile change; nil fields are left as is.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
	AvatarURL *string
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Phone == nil && u.AvatarURL == nil
}

// Account is a user account record. Security fields are never serialized.
type Account struct {
	ID           ulid.ULID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Profile      Profile   `json:"profile"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	IsVerified   bool      `json:"is_verified"`

	FailedAttempts int        `json:"-"`
	LockedUntil    *time.Time `json:"-"`

	PasswordChangedAt *time.Time `json:"-"`

	ResetTokenHash  *string    `json:"-"`
	ResetExpiresAt  *time.Time `json:"-"`
	VerifyTokenHash *string    `json:"-"`
	VerifyExpiresAt *time.Time `json:"-"`

	LoginCount  int64      `json:"login_count"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// LockState returns the account's brute-force bookkeeping.
func (a *Account) LockState() LockState {
	return LockState{FailedAttempts: a.FailedAttempts, LockedUntil: a.LockedUntil}
}

// NewAccount creates a validated, active, unverified account with role user.
// passwordHash must already be a digest produced by a PasswordHasher.
func NewAccount(email, passwordHash string, profile Profile, now time.Time) (*Account, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code(CodeValidationFailed).Errorf("password hash cannot be empty")
	}
	if err := ValidateProfile(profile); err != nil {
		return nil, err
	}

	return &Account{
		ID:           ulid.Make(),
		Email:        normalized,
		PasswordHash: passwordHash,
		Profile:      profile,
		Role:         RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail validates an address and returns its lower-cased form.
func NormalizeEmail(email string) (string, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return "", oops.Code(CodeValidationFailed).Errorf("email cannot be empty")
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", oops.Code(CodeValidationFailed).
			With("email", trimmed).
			Errorf("email address is invalid")
	}
	return strings.ToLower(trimmed), nil
}

// ValidatePassword checks a plaintext password against length rules.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code(CodeValidationFailed).
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return oops.Code(CodeValidationFailed).
			With("max", MaxPasswordLength).
			Errorf("password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

// ValidateProfile checks required profile fields.
func ValidateProfile(p Profile) error {
	if strings.TrimSpace(p.FirstName) == "" {
		return oops.Code(CodeValidationFailed).Errorf("first name is required")
	}
	if strings.TrimSpace(p.LastName) == "" {
		return oops.Code(CodeValidationFailed).Errorf("last name is required")
	}
	return nil
}

// ListOptions pages through accounts ordered by creation.
type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize clamps the page size to [1, 100] and the offset to >= 0.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// AccountRepository manages account persistence.
//
// Every security state change is a single atomic operation so concurrent
// requests for the same account cannot lose updates.
type AccountRepository interface {
	// Create stores a new account. Returns ErrDuplicate when the email is taken.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// List returns a page of accounts ordered by creation time.
	List(ctx context.Context, opts ListOptions) ([]*Account, error)

	// UpdateProfile applies a partial profile change and returns the result.
	UpdateProfile(ctx context.Context, id ulid.ULID, update ProfileUpdate, now time.Time) (*Account, error)

	// SetRole changes the account role.
	SetRole(ctx context.Context, id ulid.ULID, role Role, now time.Time) error

	// SetActive enables or disables the account.
	SetActive(ctx context.Context, id ulid.ULID, active bool, now time.Time) error

	// Delete removes the account permanently.
	Delete(ctx context.Context, id ulid.ULID) error

	// RecordLoginFailure applies LockoutPolicy.NextFailure atomically and
	// returns the resulting state.
	RecordLoginFailure(ctx context.Context, id ulid.ULID, policy LockoutPolicy, now time.Time) (LockState, error)

	// RecordLoginSuccess clears lockout state, increments the login count and
	// stamps the last login time.
	RecordLoginSuccess(ctx context.Context, id ulid.ULID, now time.Time) error

	// ClearLockout resets failed attempts and removes any lock.
	ClearLockout(ctx context.Context, id ulid.ULID, now time.Time) error

	// UpdatePasswordHash replaces the digest without touching PasswordChangedAt.
	// Used to upgrade legacy digests after a successful login.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string, now time.Time) error

	// ChangePassword stores a new digest and advances PasswordChangedAt to
	// max(now, previous+1ms). Returns the stored PasswordChangedAt.
	ChangePassword(ctx context.Context, id ulid.ULID, passwordHash string, now time.Time) (time.Time, error)

	// SetResetToken stores a reset digest, replacing any earlier one.
	SetResetToken(ctx context.Context, id ulid.ULID, digest string, expiresAt time.Time) error

	// ClearResetToken removes the reset artifact if it still holds digest.
	ClearResetToken(ctx context.Context, id ulid.ULID, digest string) error

	// ConsumeResetToken matches an unexpired reset digest and clears it in
	// one step. Returns ErrNotFound when nothing matches.
	ConsumeResetToken(ctx context.Context, digest string, now time.Time) (*Account, error)

	// SetVerifyToken stores a verification digest, replacing any earlier one.
	SetVerifyToken(ctx context.Context, id ulid.ULID, digest string, expiresAt time.Time) error

	// ClearVerifyToken removes the verification artifact if it still holds digest.
	ClearVerifyToken(ctx context.Context, id ulid.ULID, digest string) error

	// ConsumeVerifyToken matches an unexpired verification digest, clears it
	// and marks the account verified in one step. Returns ErrNotFound when
	// nothing matches.
	ConsumeVerifyToken(ctx context.Context, digest string, now time.Time) (*Account, error)
}

// AccountView is the public representation of an account.
type AccountView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	Profile     Profile    `json:"profile"`
	Role        Role       `json:"role"`
	IsActive    bool       `json:"is_active"`
	IsVerified  bool       `json:"is_verified"`
	LoginCount  int64      `json:"login_count"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewAccountView projects an account onto its public fields.
func NewAccountView(a *Account) AccountView {
	return AccountView{
		ID:          a.ID.String(),
		Email:       a.Email,
		FullName:    FullName(a.Profile),
		Profile:     a.Profile,
		Role:        a.Role,
		IsActive:    a.IsActive,
		IsVerified:  a.IsVerified,
		LoginCount:  a.LoginCount,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
	}
}
