// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ProfileService handles profile reads and administrative account changes.
// It never touches credentials, lockout counters or secret tokens except
// through ClearLockout.
type ProfileService struct {
	accounts AccountRepository
	sessions RefreshSessionRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewProfileService creates a ProfileService.
func NewProfileService(accounts AccountRepository, sessions RefreshSessionRepository, opts ...ProfileOption) (*ProfileService, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	s := &ProfileService{
		accounts: accounts,
		sessions: sessions,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ProfileOption customizes a ProfileService.
type ProfileOption func(*ProfileService)

// WithProfileLogger sets the logger.
func WithProfileLogger(logger *slog.Logger) ProfileOption {
	return func(s *ProfileService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProfileClock replaces time.Now.
func WithProfileClock(now func() time.Time) ProfileOption {
	return func(s *ProfileService) {
		if now != nil {
			s.now = now
		}
	}
}

// Get returns an account by ID.
func (s *ProfileService) Get(ctx context.Context, id ulid.ULID) (*Account, error) {
	return getAccount(ctx, s.accounts, id)
}

// List returns a page of accounts.
func (s *ProfileService) List(ctx context.Context, opts ListOptions) ([]*Account, error) {
	accounts, err := s.accounts.List(ctx, opts.Normalize())
	if err != nil {
		return nil, oops.Code("PROFILE_LIST_FAILED").With("operation", "list accounts").Wrap(err)
	}
	return accounts, nil
}

// UpdateProfile applies a partial profile update.
func (s *ProfileService) UpdateProfile(ctx context.Context, id ulid.ULID, update ProfileUpdate) (*Account, error) {
	if update.IsEmpty() {
		return nil, oops.Code(CodeValidationFailed).Errorf("no profile fields to update")
	}
	for field, value := range map[string]*string{"first name": update.FirstName, "last name": update.LastName} {
		if value != nil && strings.TrimSpace(*value) == "" {
			return nil, oops.Code(CodeValidationFailed).With("field", field).Errorf("%s cannot be empty", field)
		}
	}

	account, err := s.accounts.UpdateProfile(ctx, id, update, s.now())
	if err != nil {
		return nil, wrapAccountErr(err, "update profile", id)
	}
	return account, nil
}

// Deactivate disables the account and revokes its refresh sessions. The
// record is kept.
func (s *ProfileService) Deactivate(ctx context.Context, id ulid.ULID) error {
	return s.SetActive(ctx, id, false)
}

// SetActive enables or disables an account. Disabling revokes refresh sessions.
func (s *ProfileService) SetActive(ctx context.Context, id ulid.ULID, active bool) error {
	if err := s.accounts.SetActive(ctx, id, active, s.now()); err != nil {
		return wrapAccountErr(err, "set active", id)
	}
	if !active {
		s.revokeSessions(ctx, id)
	}
	s.logger.InfoContext(ctx, "account status changed", "account_id", id.String(), "active", active)
	return nil
}

// SetRole changes an account's role.
func (s *ProfileService) SetRole(ctx context.Context, id ulid.ULID, role Role) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	if err := s.accounts.SetRole(ctx, id, role, s.now()); err != nil {
		return wrapAccountErr(err, "set role", id)
	}
	s.logger.InfoContext(ctx, "account role changed", "account_id", id.String(), "role", string(role))
	return nil
}

// ClearLockout removes a lock and resets the failure counter.
func (s *ProfileService) ClearLockout(ctx context.Context, id ulid.ULID) error {
	if err := s.accounts.ClearLockout(ctx, id, s.now()); err != nil {
		return wrapAccountErr(err, "clear lockout", id)
	}
	s.logger.InfoContext(ctx, "account lockout cleared", "account_id", id.String())
	return nil
}

// Delete removes an account permanently together with its sessions.
func (s *ProfileService) Delete(ctx context.Context, id ulid.ULID) error {
	s.revokeSessions(ctx, id)
	if err := s.accounts.Delete(ctx, id); err != nil {
		return wrapAccountErr(err, "delete account", id)
	}
	s.logger.InfoContext(ctx, "account deleted", "account_id", id.String())
	return nil
}

func (s *ProfileService) revokeSessions(ctx context.Context, id ulid.ULID) {
	if _, err := s.sessions.DeleteByAccount(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "best-effort session revocation failed",
			"operation", "delete sessions by account",
			"account_id", id.String(),
			"error", err)
	}
}

func wrapAccountErr(err error, operation string, id ulid.ULID) error {
	if errors.Is(err, ErrNotFound) {
		return oops.Code(CodeAccountNotFound).
			With("account_id", id.String()).
			Errorf("account not found")
	}
	return oops.Code("PROFILE_UPDATE_FAILED").
		With("operation", operation).
		With("account_id", id.String()).
		Wrap(err)
}
