// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/accountd/accountd/internal/auth"
)

// MockPasswordHasher is a testify mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

var _ auth.PasswordHasher = (*MockPasswordHasher)(nil)

// NewMockPasswordHasher creates a mock whose expectations are asserted on cleanup.
func NewMockPasswordHasher(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash provides a mock function.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify provides a mock function.
func (m *MockPasswordHasher) Verify(password, digest string) bool {
	return m.Called(password, digest).Bool(0)
}

// NeedsUpgrade provides a mock function.
func (m *MockPasswordHasher) NeedsUpgrade(digest string) bool {
	return m.Called(digest).Bool(0)
}

// MockMailer is a testify mock of auth.Mailer.
type MockMailer struct {
	mock.Mock
}

var _ auth.Mailer = (*MockMailer)(nil)

// NewMockMailer creates a mock whose expectations are asserted on cleanup.
func NewMockMailer(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockMailer {
	m := &MockMailer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Send provides a mock function.
func (m *MockMailer) Send(ctx context.Context, msg auth.Message) error {
	return m.Called(ctx, msg).Error(0)
}
