// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package authtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/accountd/accountd/internal/auth"
)

// Accounts is an in-memory auth.AccountRepository.
type Accounts struct {
	mu   sync.Mutex
	byID map[ulid.ULID]*auth.Account
}

var _ auth.AccountRepository = (*Accounts)(nil)

// NewAccounts creates an empty repository.
func NewAccounts() *Accounts {
	return &Accounts{byID: make(map[ulid.ULID]*auth.Account)}
}

// Snapshot returns a copy of the stored account, or nil.
func (r *Accounts) Snapshot(id ulid.ULID) *auth.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		return clone(a)
	}
	return nil
}

// Create implements auth.AccountRepository.
func (r *Accounts) Create(_ context.Context, account *auth.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findEmail(account.Email) != nil {
		return auth.ErrDuplicate
	}
	r.byID[account.ID] = clone(account)
	return nil
}

// GetByID implements auth.AccountRepository.
func (r *Accounts) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return clone(a), nil
}

// GetByEmail implements auth.AccountRepository.
func (r *Accounts) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.findEmail(email)
	if a == nil {
		return nil, auth.ErrNotFound
	}
	return clone(a), nil
}

// List implements auth.AccountRepository.
func (r *Accounts) List(_ context.Context, opts auth.ListOptions) ([]*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	opts = opts.Normalize()

	all := make([]*auth.Account, 0, len(r.byID))
	for _, a := range r.byID {
		all = append(all, clone(a))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.Compare(all[j].ID) < 0 })

	if opts.Offset >= len(all) {
		return []*auth.Account{}, nil
	}
	end := min(opts.Offset+opts.Limit, len(all))
	return all[opts.Offset:end], nil
}

// UpdateProfile implements auth.AccountRepository.
func (r *Accounts) UpdateProfile(_ context.Context, id ulid.ULID, update auth.ProfileUpdate, now time.Time) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	if update.FirstName != nil {
		a.Profile.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		a.Profile.LastName = *update.LastName
	}
	if update.Phone != nil {
		a.Profile.Phone = *update.Phone
	}
	if update.AvatarURL != nil {
		a.Profile.AvatarURL = *update.AvatarURL
	}
	a.UpdatedAt = now
	return clone(a), nil
}

// SetRole implements auth.AccountRepository.
func (r *Accounts) SetRole(_ context.Context, id ulid.ULID, role auth.Role, now time.Time) error {
	return r.mutate(id, func(a *auth.Account) {
		a.Role = role
		a.UpdatedAt = now
	})
}

// SetActive implements auth.AccountRepository.
func (r *Accounts) SetActive(_ context.Context, id ulid.ULID, active bool, now time.Time) error {
	return r.mutate(id, func(a *auth.Account) {
		a.IsActive = active
		a.UpdatedAt = now
	})
}

// Delete implements auth.AccountRepository.
func (r *Accounts) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return auth.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

// RecordLoginFailure implements auth.AccountRepository.
func (r *Accounts) RecordLoginFailure(_ context.Context, id ulid.ULID, policy auth.LockoutPolicy, now time.Time) (auth.LockState, error) {
	var state auth.LockState
	err := r.mutate(id, func(a *auth.Account) {
		state = policy.NextFailure(a.LockState(), now)
		a.FailedAttempts = state.FailedAttempts
		a.LockedUntil = state.LockedUntil
		a.UpdatedAt = now
	})
	return state, err
}

// RecordLoginSuccess implements auth.AccountRepository.
func (r *Accounts) RecordLoginSuccess(_ context.Context, id ulid.ULID, now time.Time) error {
	return r.mutate(id, func(a *auth.Account) {
		a.FailedAttempts = 0
		a.LockedUntil = nil
		a.LoginCount++
		at := now
		a.LastLoginAt = &at
		a.UpdatedAt = now
	})
}

// ClearLockout implements auth.AccountRepository.
func (r *Accounts) ClearLockout(_ context.Context, id ulid.ULID, now time.Time) error {
	return r.mutate(id, func(a *auth.Account) {
		a.FailedAttempts = 0
		a.LockedUntil = nil
		a.UpdatedAt = now
	})
}

// UpdatePasswordHash implements auth.AccountRepository.
func (r *Accounts) UpdatePasswordHash(_ context.Context, id ulid.ULID, passwordHash string, now time.Time) error {
	return r.mutate(id, func(a *auth.Account) {
		a.PasswordHash = passwordHash
		a.UpdatedAt = now
	})
}

// ChangePassword implements auth.AccountRepository.
func (r *Accounts) ChangePassword(_ context.Context, id ulid.ULID, passwordHash string, now time.Time) (time.Time, error) {
	var changedAt time.Time
	err := r.mutate(id, func(a *auth.Account) {
		changedAt = now
		if a.PasswordChangedAt != nil {
			if floor := a.PasswordChangedAt.Add(time.Millisecond); floor.After(changedAt) {
				changedAt = floor
			}
		}
		a.PasswordHash = passwordHash
		a.PasswordChangedAt = &changedAt
		a.ResetTokenHash = nil
		a.ResetExpiresAt = nil
		a.FailedAttempts = 0
		a.LockedUntil = nil
		a.UpdatedAt = now
	})
	return changedAt, err
}

// SetResetToken implements auth.AccountRepository.
func (r *Accounts) SetResetToken(_ context.Context, id ulid.ULID, digest string, expiresAt time.Time) error {
	return r.mutate(id, func(a *auth.Account) {
		a.ResetTokenHash = &digest
		a.ResetExpiresAt = &expiresAt
	})
}

// ClearResetToken implements auth.AccountRepository.
func (r *Accounts) ClearResetToken(_ context.Context, id ulid.ULID, digest string) error {
	return r.mutate(id, func(a *auth.Account) {
		if a.ResetTokenHash != nil && *a.ResetTokenHash == digest {
			a.ResetTokenHash = nil
			a.ResetExpiresAt = nil
		}
	})
}

// ConsumeResetToken implements auth.AccountRepository.
func (r *Accounts) ConsumeResetToken(_ context.Context, digest string, now time.Time) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if matches(a.ResetTokenHash, a.ResetExpiresAt, digest, now) {
			a.ResetTokenHash = nil
			a.ResetExpiresAt = nil
			a.UpdatedAt = now
			return clone(a), nil
		}
	}
	return nil, auth.ErrNotFound
}

// SetVerifyToken implements auth.AccountRepository.
func (r *Accounts) SetVerifyToken(_ context.Context, id ulid.ULID, digest string, expiresAt time.Time) error {
	return r.mutate(id, func(a *auth.Account) {
		a.VerifyTokenHash = &digest
		a.VerifyExpiresAt = &expiresAt
	})
}

// ClearVerifyToken implements auth.AccountRepository.
func (r *Accounts) ClearVerifyToken(_ context.Context, id ulid.ULID, digest string) error {
	return r.mutate(id, func(a *auth.Account) {
		if a.VerifyTokenHash != nil && *a.VerifyTokenHash == digest {
			a.VerifyTokenHash = nil
			a.VerifyExpiresAt = nil
		}
	})
}

// ConsumeVerifyToken implements auth.AccountRepository.
func (r *Accounts) ConsumeVerifyToken(_ context.Context, digest string, now time.Time) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if matches(a.VerifyTokenHash, a.VerifyExpiresAt, digest, now) {
			a.VerifyTokenHash = nil
			a.VerifyExpiresAt = nil
			a.IsVerified = true
			a.UpdatedAt = now
			return clone(a), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *Accounts) mutate(id ulid.ULID, fn func(*auth.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	fn(a)
	return nil
}

func (r *Accounts) findEmail(email string) *auth.Account {
	for _, a := range r.byID {
		if strings.EqualFold(a.Email, email) {
			return a
		}
	}
	return nil
}

func matches(hash *string, expiresAt *time.Time, digest string, now time.Time) bool {
	return hash != nil && expiresAt != nil && *hash == digest && now.Before(*expiresAt)
}

func clone(a *auth.Account) *auth.Account {
	c := *a
	c.LockedUntil = cloneTime(a.LockedUntil)
	c.PasswordChangedAt = cloneTime(a.PasswordChangedAt)
	c.ResetExpiresAt = cloneTime(a.ResetExpiresAt)
	c.VerifyExpiresAt = cloneTime(a.VerifyExpiresAt)
	c.LastLoginAt = cloneTime(a.LastLoginAt)
	c.ResetTokenHash = cloneString(a.ResetTokenHash)
	c.VerifyTokenHash = cloneString(a.VerifyTokenHash)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
