// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/internal/auth/mocks"
	"github.com/accountd/accountd/pkg/errutil"
)

func strPtr(s string) *string { return &s }

func TestNewProfileService_MissingDependencies(t *testing.T) {
	_, err := auth.NewProfileService(nil, mocks.NewMockRefreshSessionRepository(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accounts repository is required")

	_, err = auth.NewProfileService(mocks.NewMockAccountRepository(t), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sessions repository is required")
}

func TestProfileService_UpdateProfile(t *testing.T) {
	t.Run("applies partial update", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		updated, err := h.profiles.UpdateProfile(t.Context(), reg.Account.ID, auth.ProfileUpdate{
			Phone:     strPtr("+1 555 0100"),
			FirstName: strPtr("Augusta"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Augusta", updated.Profile.FirstName)
		assert.Equal(t, "Lovelace", updated.Profile.LastName)
		assert.Equal(t, "+1 555 0100", updated.Profile.Phone)
	})

	t.Run("empty update is a validation error", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		_, err := h.profiles.UpdateProfile(t.Context(), reg.Account.ID, auth.ProfileUpdate{})
		errutil.AssertErrorCode(t, err, auth.CodeValidationFailed)
	})

	t.Run("blank required field is a validation error", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		_, err := h.profiles.UpdateProfile(t.Context(), reg.Account.ID, auth.ProfileUpdate{LastName: strPtr("  ")})
		errutil.AssertErrorCode(t, err, auth.CodeValidationFailed)
		errutil.AssertErrorContext(t, err, "field", "last name")
	})

	t.Run("unknown account", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.profiles.UpdateProfile(t.Context(), ulid.Make(), auth.ProfileUpdate{Phone: strPtr("1")})
		errutil.AssertErrorCode(t, err, auth.CodeAccountNotFound)
	})
}

func TestProfileService_AdminOperations(t *testing.T) {
	t.Run("set role", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		require.NoError(t, h.profiles.SetRole(t.Context(), reg.Account.ID, auth.RoleModerator))
		assert.Equal(t, auth.RoleModerator, h.accounts.Snapshot(reg.Account.ID).Role)

		err := h.profiles.SetRole(t.Context(), reg.Account.ID, auth.Role("root"))
		errutil.AssertErrorCode(t, err, auth.CodeValidationFailed)
	})

	t.Run("deactivate revokes sessions and reactivate restores login", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")
		require.Equal(t, 1, h.sessions.Len())

		require.NoError(t, h.profiles.Deactivate(t.Context(), reg.Account.ID))
		assert.Zero(t, h.sessions.Len())
		assert.False(t, h.accounts.Snapshot(reg.Account.ID).IsActive)

		require.NoError(t, h.profiles.SetActive(t.Context(), reg.Account.ID, true))
		_, err := h.login(t, "a@x.com", "Passw0rd1")
		require.NoError(t, err)
	})

	t.Run("clear lockout", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")
		for range 5 {
			_, _ = h.login(t, "a@x.com", "wrong")
		}

		require.NoError(t, h.profiles.ClearLockout(t.Context(), reg.Account.ID))
		_, err := h.login(t, "a@x.com", "Passw0rd1")
		require.NoError(t, err)
	})

	t.Run("delete removes account", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		require.NoError(t, h.profiles.Delete(t.Context(), reg.Account.ID))
		_, err := h.profiles.Get(t.Context(), reg.Account.ID)
		errutil.AssertErrorCode(t, err, auth.CodeAccountNotFound)

		err = h.profiles.Delete(t.Context(), reg.Account.ID)
		errutil.AssertErrorCode(t, err, auth.CodeAccountNotFound)
	})

	t.Run("list pages accounts", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "a@x.com", "Passw0rd1")
		h.register(t, "b@x.com", "Passw0rd1")
		h.register(t, "c@x.com", "Passw0rd1")

		page, err := h.profiles.List(t.Context(), auth.ListOptions{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, page, 2)

		page, err = h.profiles.List(t.Context(), auth.ListOptions{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, page, 1)
	})
}

func TestProfileService_StoreFailure(t *testing.T) {
	ctx := context.Background()
	accounts := mocks.NewMockAccountRepository(t)
	sessions := mocks.NewMockRefreshSessionRepository(t)
	svc, err := auth.NewProfileService(accounts, sessions)
	require.NoError(t, err)

	id := ulid.Make()
	accounts.On("SetRole", ctx, id, auth.RoleAdmin, mock.AnythingOfType("time.Time")).Return(errors.New("connection reset"))

	err = svc.SetRole(ctx, id, auth.RoleAdmin)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "PROFILE_UPDATE_FAILED")
	errutil.AssertErrorContext(t, err, "operation", "set role")
}
