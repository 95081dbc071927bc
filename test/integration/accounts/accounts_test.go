// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

//go:build integration

package accounts_test

import (
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/internal/httpapi"
)

const password = "integration-pass-1"

func registerAccount(email string) tokens {
	resp := call(http.MethodPost, "/auth/register", "", map[string]string{
		"email":      email,
		"password":   password,
		"first_name": "Ada",
		"last_name":  "Lovelace",
	})
	ExpectWithOffset(1, resp.status).To(Equal(http.StatusCreated), string(resp.body))
	var out tokens
	resp.decode(&out)
	return out
}

func login(email, pw string) response {
	return call(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": pw})
}

var _ = Describe("Account lifecycle", func() {
	BeforeEach(func() {
		resetDatabase()
	})

	Describe("registration and email verification", func() {
		It("creates an unverified account and verifies it through the mailed link", func() {
			reg := registerAccount("ada@example.com")
			Expect(reg.Account.IsVerified).To(BeFalse())
			Expect(reg.Account.Role).To(Equal(auth.RoleUser))

			token := env.mailer.LastToken("ada@example.com")
			Expect(token).NotTo(BeEmpty())

			resp := call(http.MethodGet, "/auth/verify-email/"+token, "", nil)
			Expect(resp.status).To(Equal(http.StatusOK), string(resp.body))

			me := call(http.MethodGet, "/auth/me", reg.AccessToken, nil)
			var view auth.AccountView
			me.decode(&view)
			Expect(view.IsVerified).To(BeTrue())

			By("refusing the same link twice")
			again := call(http.MethodGet, "/auth/verify-email/"+token, "", nil)
			Expect(again.status).To(Equal(http.StatusBadRequest))
			Expect(again.code()).To(Equal(auth.CodeInvalidOrExpiredToken))
		})

		It("rejects a second account with the same email in any case", func() {
			registerAccount("grace@example.com")
			resp := call(http.MethodPost, "/auth/register", "", map[string]string{
				"email":      "GRACE@example.com",
				"password":   password,
				"first_name": "Grace",
				"last_name":  "Hopper",
			})
			Expect(resp.status).To(Equal(http.StatusConflict))
			Expect(resp.code()).To(Equal(auth.CodeDuplicateAccount))
		})
	})

	Describe("login lockout", func() {
		It("locks the account after repeated failures and refuses the right password", func() {
			registerAccount("locked@example.com")

			for i := 0; i < auth.DefaultMaxAttempts; i++ {
				resp := login("locked@example.com", "wrong-password-1")
				Expect(resp.status).To(Equal(http.StatusUnauthorized), "attempt %d", i+1)
			}

			resp := login("locked@example.com", password)
			Expect(resp.status).To(Equal(http.StatusLocked))
			Expect(resp.code()).To(Equal(auth.CodeAccountLocked))
			Expect(resp.header.Get("Retry-After")).NotTo(BeEmpty())
		})

		It("answers unknown emails like wrong passwords", func() {
			resp := login("nobody@example.com", password)
			Expect(resp.status).To(Equal(http.StatusUnauthorized))
			Expect(resp.code()).To(Equal(auth.CodeInvalidCredentials))
		})
	})

	Describe("refresh token rotation", func() {
		It("rotates tokens and revokes every session when an old token is replayed", func() {
			reg := registerAccount("rotate@example.com")

			first := call(http.MethodPost, "/auth/refresh-token", "", map[string]string{"refresh_token": reg.RefreshToken})
			Expect(first.status).To(Equal(http.StatusOK), string(first.body))
			var rotated tokens
			first.decode(&rotated)
			Expect(rotated.RefreshToken).NotTo(Equal(reg.RefreshToken))

			replay := call(http.MethodPost, "/auth/refresh-token", "", map[string]string{"refresh_token": reg.RefreshToken})
			Expect(replay.status).To(Equal(http.StatusUnauthorized))
			Expect(replay.code()).To(Equal(auth.CodeStaleToken))

			By("having revoked the session issued by the rotation too")
			after := call(http.MethodPost, "/auth/refresh-token", "", map[string]string{"refresh_token": rotated.RefreshToken})
			Expect(after.status).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("password reset", func() {
		It("resets the password with the mailed token and signs the account in", func() {
			registerAccount("reset@example.com")

			resp := call(http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "reset@example.com"})
			Expect(resp.status).To(Equal(http.StatusAccepted))
			token := env.mailer.LastToken("reset@example.com")
			Expect(token).NotTo(BeEmpty())

			reset := call(http.MethodPatch, "/auth/reset-password/"+token, "", map[string]string{"password": "a-brand-new-pass"})
			Expect(reset.status).To(Equal(http.StatusOK), string(reset.body))

			Expect(login("reset@example.com", password).status).To(Equal(http.StatusUnauthorized))
			Expect(login("reset@example.com", "a-brand-new-pass").status).To(Equal(http.StatusOK))
		})
	})

	Describe("administration", func() {
		It("lets an admin list, disable and delete accounts", func() {
			admin := registerAccount("admin@example.com")
			user := registerAccount("user@example.com")

			adminID := ulid.MustParse(admin.Account.ID)
			Expect(env.accounts.SetRole(env.ctx, adminID, auth.RoleAdmin, time.Now())).To(Succeed())

			By("refusing the same operation to a plain user")
			forbidden := call(http.MethodGet, "/users", user.AccessToken, nil)
			Expect(forbidden.status).To(Equal(http.StatusForbidden))

			list := call(http.MethodGet, "/users?limit=10", admin.AccessToken, nil)
			Expect(list.status).To(Equal(http.StatusOK), string(list.body))
			var listed struct {
				Accounts []auth.AccountView `json:"accounts"`
			}
			list.decode(&listed)
			Expect(listed.Accounts).To(HaveLen(2))

			disable := call(http.MethodPatch, "/users/"+user.Account.ID+"/status", admin.AccessToken, map[string]bool{"is_active": false})
			Expect(disable.status).To(Equal(http.StatusOK), string(disable.body))

			denied := login("user@example.com", password)
			Expect(denied.status).To(Equal(http.StatusForbidden))
			Expect(denied.code()).To(Equal(auth.CodeAccountDisabled))

			del := call(http.MethodDelete, "/users/"+user.Account.ID, admin.AccessToken, nil)
			Expect(del.status).To(Equal(http.StatusNoContent))
			gone := call(http.MethodGet, "/users/"+user.Account.ID, admin.AccessToken, nil)
			Expect(gone.status).To(Equal(http.StatusNotFound))
			Expect(gone.code()).To(Equal(auth.CodeAccountNotFound))
		})

		It("returns problem documents for unknown routes", func() {
			resp := call(http.MethodGet, "/nowhere", "", nil)
			Expect(resp.status).To(Equal(http.StatusNotFound))
			Expect(resp.code()).To(Equal(httpapi.CodeNotFound))
		})
	})
})
