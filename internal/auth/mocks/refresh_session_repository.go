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

// MockRefreshSessionRepository is a testify mock of auth.RefreshSessionRepository.
type MockRefreshSessionRepository struct {
	mock.Mock
}

var _ auth.RefreshSessionRepository = (*MockRefreshSessionRepository)(nil)

// NewMockRefreshSessionRepository creates a mock whose expectations are asserted on cleanup.
func NewMockRefreshSessionRepository(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockRefreshSessionRepository {
	m := &MockRefreshSessionRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create provides a mock function.
func (m *MockRefreshSessionRepository) Create(ctx context.Context, session *auth.RefreshSession) error {
	return m.Called(ctx, session).Error(0)
}

// GetByID provides a mock function.
func (m *MockRefreshSessionRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.RefreshSession, error) {
	args := m.Called(ctx, id)
	var session *auth.RefreshSession
	if v := args.Get(0); v != nil {
		session = v.(*auth.RefreshSession)
	}
	return session, args.Error(1)
}

// Rotate provides a mock function.
func (m *MockRefreshSessionRepository) Rotate(ctx context.Context, id ulid.ULID, now time.Time) error {
	return m.Called(ctx, id, now).Error(0)
}

// ListByAccount provides a mock function.
func (m *MockRefreshSessionRepository) ListByAccount(ctx context.Context, accountID ulid.ULID, now time.Time) ([]*auth.RefreshSession, error) {
	args := m.Called(ctx, accountID, now)
	var sessions []*auth.RefreshSession
	if v := args.Get(0); v != nil {
		sessions = v.([]*auth.RefreshSession)
	}
	return sessions, args.Error(1)
}

// DeleteByAccount provides a mock function.
func (m *MockRefreshSessionRepository) DeleteByAccount(ctx context.Context, accountID ulid.ULID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

// DeleteExpired provides a mock function.
func (m *MockRefreshSessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
