// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/accountd/accountd/internal/auth"
)

// MockAccountRepository is a testify mock of auth.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

var _ auth.AccountRepository = (*MockAccountRepository)(nil)

// NewMockAccountRepository creates a mock whose expectations are asserted on cleanup.
func NewMockAccountRepository(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockAccountRepository {
	m := &MockAccountRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func accountResult(args mock.Arguments, i int) *auth.Account {
	if v := args.Get(i); v != nil {
		return v.(*auth.Account)
	}
	return nil
}

// Create provides a mock function.
func (m *MockAccountRepository) Create(ctx context.Context, account *auth.Account) error {
	return m.Called(ctx, account).Error(0)
}

// GetByID provides a mock function.
func (m *MockAccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	args := m.Called(ctx, id)
	return accountResult(args, 0), args.Error(1)
}

// GetByEmail provides a mock function.
func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	args := m.Called(ctx, email)
	return accountResult(args, 0), args.Error(1)
}

// List provides a mock function.
func (m *MockAccountRepository) List(ctx context.Context, opts auth.ListOptions) ([]*auth.Account, error) {
	args := m.Called(ctx, opts)
	var accounts []*auth.Account
	if v := args.Get(0); v != nil {
		accounts = v.([]*auth.Account)
	}
	return accounts, args.Error(1)
}

// UpdateProfile provides a mock function.
func (m *MockAccountRepository) UpdateProfile(ctx context.Context, id ulid.ULID, update auth.ProfileUpdate, now time.Time) (*auth.Account, error) {
	args := m.Called(ctx, id, update, now)
	return accountResult(args, 0), args.Error(1)
}

// SetRole provides a mock function.
func (m *MockAccountRepository) SetRole(ctx context.Context, id ulid.ULID, role auth.Role, now time.Time) error {
	return m.Called(ctx, id, role, now).Error(0)
}

// SetActive provides a mock function.
func (m *MockAccountRepository) SetActive(ctx context.Context, id ulid.ULID, active bool, now time.Time) error {
	return m.Called(ctx, id, active, now).Error(0)
}

// Delete provides a mock function.
func (m *MockAccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

// RecordLoginFailure provides a mock function.
func (m *MockAccountRepository) RecordLoginFailure(ctx context.Context, id ulid.ULID, policy auth.LockoutPolicy, now time.Time) (auth.LockState, error) {
	args := m.Called(ctx, id, policy, now)
	var state auth.LockState
	if v := args.Get(0); v != nil {
		state = v.(auth.LockState)
	}
	return state, args.Error(1)
}

// RecordLoginSuccess provides a mock function.
func (m *MockAccountRepository) RecordLoginSuccess(ctx context.Context, id ulid.ULID, now time.Time) error {
	return m.Called(ctx, id, now).Error(0)
}

// ClearLockout provides a mock function.
func (m *MockAccountRepository) ClearLockout(ctx context.Context, id ulid.ULID, now time.Time) error {
	return m.Called(ctx, id, now).Error(0)
}

// UpdatePasswordHash provides a mock function.
func (m *MockAccountRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string, now time.Time) error {
	return m.Called(ctx, id, passwordHash, now).Error(0)
}

// ChangePassword provides a mock function.
func (m *MockAccountRepository) ChangePassword(ctx context.Context, id ulid.ULID, passwordHash string, now time.Time) (time.Time, error) {
	args := m.Called(ctx, id, passwordHash, now)
	var changedAt time.Time
	if v := args.Get(0); v != nil {
		changedAt = v.(time.Time)
	}
	return changedAt, args.Error(1)
}

// SetResetToken provides a mock function.
func (m *MockAccountRepository) SetResetToken(ctx context.Context, id ulid.ULID, digest string, expiresAt time.Time) error {
	return m.Called(ctx, id, digest, expiresAt).Error(0)
}

// ClearResetToken provides a mock function.
func (m *MockAccountRepository) ClearResetToken(ctx context.Context, id ulid.ULID, digest string) error {
	return m.Called(ctx, id, digest).Error(0)
}

// ConsumeResetToken provides a mock function.
func (m *MockAccountRepository) ConsumeResetToken(ctx context.Context, digest string, now time.Time) (*auth.Account, error) {
	args := m.Called(ctx, digest, now)
	return accountResult(args, 0), args.Error(1)
}

// SetVerifyToken provides a mock function.
func (m *MockAccountRepository) SetVerifyToken(ctx context.Context, id ulid.ULID, digest string, expiresAt time.Time) error {
	return m.Called(ctx, id, digest, expiresAt).Error(0)
}

// ClearVerifyToken provides a mock function.
func (m *MockAccountRepository) ClearVerifyToken(ctx context.Context, id ulid.ULID, digest string) error {
	return m.Called(ctx, id, digest).Error(0)
}

// ConsumeVerifyToken provides a mock function.
func (m *MockAccountRepository) ConsumeVerifyToken(ctx context.Context, digest string, now time.Time) (*auth.Account, error) {
	args := m.Called(ctx, digest, now)
	return accountResult(args, 0), args.Error(1)
}
