// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/internal/auth/mocks"
	"github.com/accountd/accountd/pkg/errutil"
)

func TestNewService_MissingDependencies(t *testing.T) {
	issuer := newTestIssuer(t)
	full := func() auth.ServiceDeps {
		return auth.ServiceDeps{
			Accounts: mocks.NewMockAccountRepository(t),
			Sessions: mocks.NewMockRefreshSessionRepository(t),
			Hasher:   mocks.NewMockPasswordHasher(t),
			Tokens:   issuer,
			Mailer:   mocks.NewMockMailer(t),
		}
	}

	tests := []struct {
		name        string
		mutate      func(*auth.ServiceDeps)
		expectError string
	}{
		{"nil accounts repository", func(d *auth.ServiceDeps) { d.Accounts = nil }, "accounts repository is required"},
		{"nil sessions repository", func(d *auth.ServiceDeps) { d.Sessions = nil }, "sessions repository is required"},
		{"nil password hasher", func(d *auth.ServiceDeps) { d.Hasher = nil }, "password hasher is required"},
		{"nil token issuer", func(d *auth.ServiceDeps) { d.Tokens = nil }, "token issuer is required"},
		{"nil mailer", func(d *auth.ServiceDeps) { d.Mailer = nil }, "mailer is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := full()
			tt.mutate(&deps)
			svc, err := auth.NewService(deps, auth.DefaultServiceConfig())
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}

	t.Run("non-positive lockout policy", func(t *testing.T) {
		cfg := auth.DefaultServiceConfig()
		cfg.Lockout.MaxAttempts = 0
		_, err := auth.NewService(full(), cfg)
		require.Error(t, err)
	})

	t.Run("non-positive secret ttl", func(t *testing.T) {
		cfg := auth.DefaultServiceConfig()
		cfg.ResetTTL = 0
		_, err := auth.NewService(full(), cfg)
		require.Error(t, err)
	})
}

func TestService_Register(t *testing.T) {
	t.Run("creates unverified account and mails verification link", func(t *testing.T) {
		h := newHarness(t)
		res := h.register(t, "A@X.com", "Passw0rd1")

		assert.Equal(t, "a@x.com", res.Account.Email)
		assert.False(t, res.Account.IsVerified)
		assert.Equal(t, auth.RoleUser, res.Account.Role)
		assert.NotEmpty(t, res.Tokens.AccessToken)
		assert.NotEmpty(t, res.Tokens.RefreshToken)
		assert.Equal(t, 1, h.sessions.Len())

		stored := h.accounts.Snapshot(res.Account.ID)
		require.NotNil(t, stored)
		assert.NotEqual(t, "Passw0rd1", stored.PasswordHash)
		assert.True(t, h.hasher.Verify("Passw0rd1", stored.PasswordHash))
		require.NotNil(t, stored.VerifyTokenHash)
		require.NotNil(t, stored.VerifyExpiresAt)
		assert.Equal(t, h.clock.Now().Add(24*time.Hour), *stored.VerifyExpiresAt)

		msgs := h.mailer.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "a@x.com", msgs[0].To)
		token := h.mailer.LastToken("a@x.com")
		require.NotEmpty(t, token)
		assert.Equal(t, auth.DigestSecret(token), *stored.VerifyTokenHash)
	})

	t.Run("duplicate email is rejected case-insensitively", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "a@x.com", "Passw0rd1")

		_, err := h.svc.Register(t.Context(), auth.RegisterInput{Email: "A@x.COM", Password: "Passw0rd1", Profile: testProfile})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeDuplicateAccount)
	})

	t.Run("invalid input is rejected before hashing", func(t *testing.T) {
		h := newHarness(t)
		inputs := []auth.RegisterInput{
			{Email: "a@x.com", Password: "short", Profile: testProfile},
			{Email: "not-an-email", Password: "Passw0rd1", Profile: testProfile},
			{Email: "a@x.com", Password: "Passw0rd1", Profile: auth.Profile{LastName: "Lovelace"}},
		}
		for _, in := range inputs {
			_, err := h.svc.Register(t.Context(), in)
			errutil.AssertErrorCode(t, err, auth.CodeValidationFailed)
		}
		assert.Empty(t, h.mailer.Messages())
	})

	t.Run("delivery failure clears verification artifact but registers", func(t *testing.T) {
		h := newHarness(t)
		h.mailer.SetErr(errors.New("smtp unavailable"))

		res := h.register(t, "a@x.com", "Passw0rd1")

		assert.Nil(t, res.Account.VerifyTokenHash)
		stored := h.accounts.Snapshot(res.Account.ID)
		require.NotNil(t, stored)
		assert.Nil(t, stored.VerifyTokenHash)
		assert.Nil(t, stored.VerifyExpiresAt)
		assert.Contains(t, h.logs.String(), "verification email delivery failed")
	})
}

func TestService_Login(t *testing.T) {
	t.Run("success updates login bookkeeping", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		h.clock.Advance(time.Minute)
		res, err := h.login(t, "a@x.com", "Passw0rd1")
		require.NoError(t, err)
		assert.NotEmpty(t, res.Tokens.AccessToken)

		stored := h.accounts.Snapshot(reg.Account.ID)
		assert.Equal(t, int64(1), stored.LoginCount)
		require.NotNil(t, stored.LastLoginAt)
		assert.Equal(t, h.clock.Now(), *stored.LastLoginAt)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "a@x.com", "Passw0rd1")

		_, errUnknown := h.login(t, "nobody@x.com", "Passw0rd1")
		_, errWrong := h.login(t, "a@x.com", "wrong-password")
		_, errMalformed := h.login(t, "not-an-email", "Passw0rd1")

		for _, err := range []error{errUnknown, errWrong, errMalformed} {
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
			assert.Equal(t, errUnknown.Error(), err.Error())
		}
	})

	t.Run("fifth failure locks and correct password is refused while locked", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		_, err := h.login(t, "a@x.com", "Passw0rd1")
		require.NoError(t, err)

		for range 5 {
			_, err := h.login(t, "a@x.com", "wrong")
			errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
		}

		stored := h.accounts.Snapshot(reg.Account.ID)
		assert.Equal(t, 5, stored.FailedAttempts)
		require.NotNil(t, stored.LockedUntil)

		_, err = h.login(t, "a@x.com", "Passw0rd1")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeAccountLocked)
		errutil.AssertErrorContext(t, err, "retry_after_seconds", 901)
		assert.Contains(t, h.logs.String(), "account locked after repeated login failures")

		h.clock.Advance(15 * time.Minute)
		_, err = h.login(t, "a@x.com", "Passw0rd1")
		require.NoError(t, err)

		stored = h.accounts.Snapshot(reg.Account.ID)
		assert.Zero(t, stored.FailedAttempts)
		assert.Nil(t, stored.LockedUntil)
	})

	t.Run("disabled account is refused only with the right password", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")
		require.NoError(t, h.profiles.Deactivate(t.Context(), reg.Account.ID))

		_, err := h.login(t, "a@x.com", "Passw0rd1")
		errutil.AssertErrorCode(t, err, auth.CodeAccountDisabled)

		_, err = h.login(t, "a@x.com", "wrong")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	})

	t.Run("legacy bcrypt digest is upgraded", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		legacy, err := bcrypt.GenerateFromPassword([]byte("Passw0rd1"), bcrypt.MinCost)
		require.NoError(t, err)
		require.NoError(t, h.accounts.UpdatePasswordHash(t.Context(), reg.Account.ID, string(legacy), h.clock.Now()))

		_, err = h.login(t, "a@x.com", "Passw0rd1")
		require.NoError(t, err)

		stored := h.accounts.Snapshot(reg.Account.ID)
		assert.False(t, h.hasher.NeedsUpgrade(stored.PasswordHash))
		assert.Nil(t, stored.PasswordChangedAt, "upgrade must not invalidate tokens")
	})

	t.Run("concurrent failures are all counted", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = h.svc.Login(context.Background(), auth.LoginInput{Email: "a@x.com", Password: "wrong"})
			}()
		}
		wg.Wait()

		stored := h.accounts.Snapshot(reg.Account.ID)
		assert.GreaterOrEqual(t, stored.FailedAttempts, 5)
		require.NotNil(t, stored.LockedUntil)
		assert.Equal(t, h.clock.Now().Add(15*time.Minute), *stored.LockedUntil)
	})
}

func TestService_Refresh(t *testing.T) {
	t.Run("rotates the session", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		h.clock.Advance(time.Second)
		res, err := h.svc.Refresh(t.Context(), reg.Tokens.RefreshToken, auth.ClientInfo{})
		require.NoError(t, err)
		assert.NotEqual(t, reg.Tokens.SessionID, res.Tokens.SessionID)
		assert.Equal(t, reg.Account.ID, res.Account.ID)
	})

	t.Run("reuse of a rotated token revokes every session", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		h.clock.Advance(time.Second)
		rotated, err := h.svc.Refresh(t.Context(), reg.Tokens.RefreshToken, auth.ClientInfo{})
		require.NoError(t, err)

		_, err = h.svc.Refresh(t.Context(), reg.Tokens.RefreshToken, auth.ClientInfo{})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeStaleToken)
		assert.Zero(t, h.sessions.Len())
		assert.Contains(t, h.logs.String(), "refresh token reuse detected")

		_, err = h.svc.Refresh(t.Context(), rotated.Tokens.RefreshToken, auth.ClientInfo{})
		errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
	})

	t.Run("access token cannot refresh", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		_, err := h.svc.Refresh(t.Context(), reg.Tokens.AccessToken, auth.ClientInfo{})
		errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
	})

	t.Run("expired refresh token", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		h.clock.Advance(auth.DefaultRefreshTTL + time.Second)
		_, err := h.svc.Refresh(t.Context(), reg.Tokens.RefreshToken, auth.ClientInfo{})
		errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
	})

	t.Run("deleted account", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")
		require.NoError(t, h.profiles.Delete(t.Context(), reg.Account.ID))

		_, err := h.svc.Refresh(t.Context(), reg.Tokens.RefreshToken, auth.ClientInfo{})
		errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
	})

	t.Run("disabled account", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")
		require.NoError(t, h.accounts.SetActive(t.Context(), reg.Account.ID, false, h.clock.Now()))

		_, err := h.svc.Refresh(t.Context(), reg.Tokens.RefreshToken, auth.ClientInfo{})
		errutil.AssertErrorCode(t, err, auth.CodeAccountDisabled)
	})
}

func TestService_Sessions(t *testing.T) {
	h := newHarness(t)
	reg := h.register(t, "a@x.com", "Passw0rd1")
	login, err := h.login(t, "a@x.com", "Passw0rd1")
	require.NoError(t, err)

	sessions, err := h.svc.Sessions(t.Context(), reg.Account.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, login.Tokens.SessionID, sessions[0].ID, "newest first")
	assert.Equal(t, reg.Tokens.SessionID, sessions[1].ID)

	refreshed, err := h.svc.Refresh(t.Context(), reg.Tokens.RefreshToken, auth.ClientInfo{})
	require.NoError(t, err)
	sessions, err = h.svc.Sessions(t.Context(), reg.Account.ID)
	require.NoError(t, err)
	ids := []ulid.ULID{sessions[0].ID, sessions[1].ID}
	assert.Contains(t, ids, refreshed.Tokens.SessionID)
	assert.NotContains(t, ids, reg.Tokens.SessionID, "rotated session is no longer listed")
}

func TestService_ChangePassword(t *testing.T) {
	t.Run("wrong current password", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		_, err := h.svc.ChangePassword(t.Context(), reg.Account.ID, "wrong", "NewPassw0rd1", auth.ClientInfo{})
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	})

	t.Run("earlier tokens become stale", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		h.clock.Advance(2 * time.Second)
		res, err := h.svc.ChangePassword(t.Context(), reg.Account.ID, "Passw0rd1", "NewPassw0rd1", auth.ClientInfo{})
		require.NoError(t, err)

		_, err = h.svc.Authenticate(t.Context(), reg.Tokens.AccessToken)
		errutil.AssertErrorCode(t, err, auth.CodeStaleToken)

		_, err = h.svc.Refresh(t.Context(), reg.Tokens.RefreshToken, auth.ClientInfo{})
		errutil.AssertErrorCode(t, err, auth.CodeStaleToken)

		account, err := h.svc.Authenticate(t.Context(), res.Tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, reg.Account.ID, account.ID)

		_, err = h.login(t, "a@x.com", "Passw0rd1")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
		_, err = h.login(t, "a@x.com", "NewPassw0rd1")
		require.NoError(t, err)
	})

	t.Run("tokens minted in the same second become stale", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		h.clock.Advance(500 * time.Millisecond)
		res, err := h.svc.ChangePassword(t.Context(), reg.Account.ID, "Passw0rd1", "NewPassw0rd1", auth.ClientInfo{})
		require.NoError(t, err)

		_, err = h.svc.Authenticate(t.Context(), reg.Tokens.AccessToken)
		errutil.AssertErrorCode(t, err, auth.CodeStaleToken)
		_, err = h.svc.Refresh(t.Context(), reg.Tokens.RefreshToken, auth.ClientInfo{})
		errutil.AssertErrorCode(t, err, auth.CodeStaleToken)

		_, err = h.svc.Authenticate(t.Context(), res.Tokens.AccessToken)
		require.NoError(t, err)
	})

	t.Run("back-to-back changes at the same instant", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")

		first, err := h.svc.ChangePassword(t.Context(), reg.Account.ID, "Passw0rd1", "NewPassw0rd1", auth.ClientInfo{})
		require.NoError(t, err)
		second, err := h.svc.ChangePassword(t.Context(), reg.Account.ID, "NewPassw0rd1", "OtherPassw0rd1", auth.ClientInfo{})
		require.NoError(t, err)

		_, err = h.svc.Authenticate(t.Context(), first.Tokens.AccessToken)
		errutil.AssertErrorCode(t, err, auth.CodeStaleToken)
		_, err = h.svc.Authenticate(t.Context(), second.Tokens.AccessToken)
		require.NoError(t, err)
	})

	t.Run("unknown account", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")
		require.NoError(t, h.profiles.Delete(t.Context(), reg.Account.ID))

		_, err := h.svc.ChangePassword(t.Context(), reg.Account.ID, "Passw0rd1", "NewPassw0rd1", auth.ClientInfo{})
		errutil.AssertErrorCode(t, err, auth.CodeAccountNotFound)
	})
}

func TestService_PasswordReset(t *testing.T) {
	t.Run("unknown email succeeds silently", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.svc.ForgotPassword(t.Context(), "nobody@x.com"))
		assert.Empty(t, h.mailer.Messages())
	})

	t.Run("malformed email is a validation error", func(t *testing.T) {
		h := newHarness(t)
		err := h.svc.ForgotPassword(t.Context(), "nope")
		errutil.AssertErrorCode(t, err, auth.CodeValidationFailed)
	})

	t.Run("token works once", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "a@x.com", "Passw0rd1")

		require.NoError(t, h.svc.ForgotPassword(t.Context(), "a@x.com"))
		token := h.mailer.LastToken("a@x.com")
		require.NotEmpty(t, token)

		res, err := h.svc.ResetPassword(t.Context(), token, "NewPassw0rd1", auth.ClientInfo{})
		require.NoError(t, err)
		assert.NotEmpty(t, res.Tokens.AccessToken)

		_, err = h.svc.ResetPassword(t.Context(), token, "OtherPassw0rd1", auth.ClientInfo{})
		errutil.AssertErrorCode(t, err, auth.CodeInvalidOrExpiredToken)
	})

	t.Run("reset makes tokens from the same second stale", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")
		require.NoError(t, h.svc.ForgotPassword(t.Context(), "a@x.com"))
		token := h.mailer.LastToken("a@x.com")

		h.clock.Advance(300 * time.Millisecond)
		res, err := h.svc.ResetPassword(t.Context(), token, "NewPassw0rd1", auth.ClientInfo{})
		require.NoError(t, err)

		_, err = h.svc.Authenticate(t.Context(), reg.Tokens.AccessToken)
		errutil.AssertErrorCode(t, err, auth.CodeStaleToken)
		_, err = h.svc.Refresh(t.Context(), reg.Tokens.RefreshToken, auth.ClientInfo{})
		errutil.AssertErrorCode(t, err, auth.CodeStaleToken)

		account, err := h.svc.Authenticate(t.Context(), res.Tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, reg.Account.ID, account.ID)
	})

	t.Run("reset on a disabled account stores the password but refuses sign-in", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")
		require.NoError(t, h.svc.ForgotPassword(t.Context(), "a@x.com"))
		token := h.mailer.LastToken("a@x.com")
		require.NoError(t, h.accounts.SetActive(t.Context(), reg.Account.ID, false, h.clock.Now()))

		_, err := h.svc.ResetPassword(t.Context(), token, "NewPassw0rd1", auth.ClientInfo{})
		errutil.AssertErrorCode(t, err, auth.CodeAccountDisabled)

		sessions, err := h.sessions.ListByAccount(t.Context(), reg.Account.ID, h.clock.Now())
		require.NoError(t, err)
		assert.Empty(t, sessions)

		require.NoError(t, h.accounts.SetActive(t.Context(), reg.Account.ID, true, h.clock.Now()))
		_, err = h.login(t, "a@x.com", "NewPassw0rd1")
		require.NoError(t, err)
	})

	t.Run("token expires after ten minutes", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "a@x.com", "Passw0rd1")
		require.NoError(t, h.svc.ForgotPassword(t.Context(), "a@x.com"))
		token := h.mailer.LastToken("a@x.com")

		h.clock.Advance(10*time.Minute + time.Second)
		_, err := h.svc.ResetPassword(t.Context(), token, "NewPassw0rd1", auth.ClientInfo{})
		errutil.AssertErrorCode(t, err, auth.CodeInvalidOrExpiredToken)
	})

	t.Run("token is usable just before expiry", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "a@x.com", "Passw0rd1")
		require.NoError(t, h.svc.ForgotPassword(t.Context(), "a@x.com"))
		token := h.mailer.LastToken("a@x.com")

		h.clock.Advance(10*time.Minute - time.Second)
		_, err := h.svc.ResetPassword(t.Context(), token, "NewPassw0rd1", auth.ClientInfo{})
		require.NoError(t, err)
	})

	t.Run("newer request replaces older token", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "a@x.com", "Passw0rd1")
		require.NoError(t, h.svc.ForgotPassword(t.Context(), "a@x.com"))
		first := h.mailer.LastToken("a@x.com")
		require.NoError(t, h.svc.ForgotPassword(t.Context(), "a@x.com"))

		_, err := h.svc.ResetPassword(t.Context(), first, "NewPassw0rd1", auth.ClientInfo{})
		errutil.AssertErrorCode(t, err, auth.CodeInvalidOrExpiredToken)
	})

	t.Run("delivery failure clears the reset token", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")
		h.mailer.SetErr(errors.New("smtp unavailable"))

		require.NoError(t, h.svc.ForgotPassword(t.Context(), "a@x.com"))

		stored := h.accounts.Snapshot(reg.Account.ID)
		assert.Nil(t, stored.ResetTokenHash)
		assert.Contains(t, h.logs.String(), "reset email delivery failed")
	})

	t.Run("empty token", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.ResetPassword(t.Context(), "", "NewPassw0rd1", auth.ClientInfo{})
		errutil.AssertErrorCode(t, err, auth.CodeInvalidOrExpiredToken)
	})
}

func TestService_VerifyEmail(t *testing.T) {
	t.Run("marks account verified once", func(t *testing.T) {
		h := newHarness(t)
		reg := h.register(t, "a@x.com", "Passw0rd1")
		token := h.mailer.LastToken("a@x.com")

		account, err := h.svc.VerifyEmail(t.Context(), token)
		require.NoError(t, err)
		assert.True(t, account.IsVerified)
		assert.True(t, h.accounts.Snapshot(reg.Account.ID).IsVerified)

		_, err = h.svc.VerifyEmail(t.Context(), token)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidOrExpiredToken)
	})

	t.Run("expires after a day", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "a@x.com", "Passw0rd1")
		token := h.mailer.LastToken("a@x.com")

		h.clock.Advance(24*time.Hour + time.Second)
		_, err := h.svc.VerifyEmail(t.Context(), token)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidOrExpiredToken)
	})

	t.Run("resend replaces the previous link", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "a@x.com", "Passw0rd1")
		first := h.mailer.LastToken("a@x.com")

		require.NoError(t, h.svc.ResendVerification(t.Context(), "a@x.com"))
		second := h.mailer.LastToken("a@x.com")
		require.NotEqual(t, first, second)

		_, err := h.svc.VerifyEmail(t.Context(), first)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidOrExpiredToken)
		_, err = h.svc.VerifyEmail(t.Context(), second)
		require.NoError(t, err)
	})

	t.Run("resend is silent for verified and unknown accounts", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "a@x.com", "Passw0rd1")
		_, err := h.svc.VerifyEmail(t.Context(), h.mailer.LastToken("a@x.com"))
		require.NoError(t, err)

		require.NoError(t, h.svc.ResendVerification(t.Context(), "a@x.com"))
		require.NoError(t, h.svc.ResendVerification(t.Context(), "nobody@x.com"))
		assert.Len(t, h.mailer.Messages(), 1)
	})
}

func TestService_AuthenticateAndMe(t *testing.T) {
	h := newHarness(t)
	reg := h.register(t, "a@x.com", "Passw0rd1")

	account, err := h.svc.Authenticate(t.Context(), reg.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.Account.ID, account.ID)

	_, err = h.svc.Authenticate(t.Context(), reg.Tokens.RefreshToken)
	errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)

	me, err := h.svc.Me(t.Context(), reg.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", me.Email)

	h.svc.Logout(t.Context(), reg.Account.ID)
	_, err = h.svc.Authenticate(t.Context(), reg.Tokens.AccessToken)
	require.NoError(t, err, "logout keeps no server-side revocation")
}

func TestService_PruneSessions(t *testing.T) {
	h := newHarness(t)
	reg := h.register(t, "a@x.com", "Passw0rd1")

	h.clock.Advance(time.Second)
	_, err := h.svc.Refresh(t.Context(), reg.Tokens.RefreshToken, auth.ClientInfo{})
	require.NoError(t, err)
	require.Equal(t, 2, h.sessions.Len())

	h.clock.Advance(time.Second)
	n, err := h.svc.PruneSessions(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, h.sessions.Len())
}

func TestService_Login_StoreFailures(t *testing.T) {
	ctx := context.Background()
	account, err := auth.NewAccount("a@x.com", "digest", testProfile, time.Now())
	require.NoError(t, err)

	newSvc := func(t *testing.T) (*auth.Service, *mocks.MockAccountRepository, *mocks.MockPasswordHasher) {
		accounts := mocks.NewMockAccountRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewService(auth.ServiceDeps{
			Accounts: accounts,
			Sessions: mocks.NewMockRefreshSessionRepository(t),
			Hasher:   hasher,
			Tokens:   newTestIssuer(t),
			Mailer:   mocks.NewMockMailer(t),
		}, auth.DefaultServiceConfig())
		require.NoError(t, err)
		return svc, accounts, hasher
	}

	t.Run("lookup failure is an internal error", func(t *testing.T) {
		svc, accounts, _ := newSvc(t)
		accounts.On("GetByEmail", ctx, "a@x.com").Return(nil, errors.New("connection refused"))

		_, err := svc.Login(ctx, auth.LoginInput{Email: "a@x.com", Password: "Passw0rd1"})
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
	})

	t.Run("failure record error is surfaced", func(t *testing.T) {
		svc, accounts, hasher := newSvc(t)
		accounts.On("GetByEmail", ctx, "a@x.com").Return(account, nil)
		hasher.On("Verify", "wrong", "digest").Return(false)
		accounts.On("RecordLoginFailure", ctx, account.ID, auth.DefaultLockoutPolicy(), mock.AnythingOfType("time.Time")).
			Return(auth.LockState{}, errors.New("connection refused"))

		_, err := svc.Login(ctx, auth.LoginInput{Email: "a@x.com", Password: "wrong"})
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
	})

	t.Run("unknown email verifies against a dummy digest", func(t *testing.T) {
		svc, accounts, hasher := newSvc(t)
		accounts.On("GetByEmail", ctx, "nobody@x.com").Return(nil, auth.ErrNotFound)
		hasher.On("Verify", "Passw0rd1", mock.AnythingOfType("string")).Return(false)

		_, err := svc.Login(ctx, auth.LoginInput{Email: "nobody@x.com", Password: "Passw0rd1"})
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	})
}
