// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth_test

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/internal/auth/authtest"
	"github.com/accountd/accountd/pkg/errutil"
)

type scenarioEnv struct {
	svc    *auth.Service
	mailer *authtest.Mailer
	clock  *testClock
}

func newScenarioEnv() *scenarioEnv {
	hasher, err := auth.NewArgon2idHasherWithParams(fastParams())
	Expect(err).NotTo(HaveOccurred())

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		Issuer:        "accountd-test",
		AccessSecret:  strings.Repeat("a", 32),
		RefreshSecret: strings.Repeat("r", 32),
		AccessTTL:     auth.DefaultAccessTTL,
		RefreshTTL:    auth.DefaultRefreshTTL,
	})
	Expect(err).NotTo(HaveOccurred())

	env := &scenarioEnv{mailer: &authtest.Mailer{}, clock: newTestClock()}
	env.svc, err = auth.NewService(auth.ServiceDeps{
		Accounts: authtest.NewAccounts(),
		Sessions: authtest.NewSessions(),
		Hasher:   hasher,
		Tokens:   issuer,
		Mailer:   env.mailer,
	}, auth.DefaultServiceConfig(), auth.WithClock(env.clock.Now))
	Expect(err).NotTo(HaveOccurred())
	return env
}

func haveCode(code string) OmegaMatcher {
	return WithTransform(errutil.Code, Equal(code))
}

var _ = Describe("Account security", func() {
	var (
		ctx context.Context
		env *scenarioEnv
	)

	login := func(email, password string) (*auth.AuthResult, error) {
		return env.svc.Login(ctx, auth.LoginInput{Email: email, Password: password})
	}

	BeforeEach(func() {
		ctx = context.Background()
		env = newScenarioEnv()
		_, err := env.svc.Register(ctx, auth.RegisterInput{
			Email:    "a@x.com",
			Password: "Passw0rd1",
			Profile:  auth.Profile{FirstName: "Ada", LastName: "Lovelace"},
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("brute-force lockout", func() {
		It("locks after the fifth consecutive failure and refuses the right password", func() {
			res, err := login("a@x.com", "Passw0rd1")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Tokens.AccessToken).NotTo(BeEmpty())

			for range 5 {
				_, err := login("a@x.com", "wrong")
				Expect(err).To(haveCode(auth.CodeInvalidCredentials))
			}

			_, err = login("a@x.com", "Passw0rd1")
			Expect(err).To(haveCode(auth.CodeAccountLocked))
		})

		It("lets the account back in once the lock window passes", func() {
			for range 5 {
				_, _ = login("a@x.com", "wrong")
			}

			env.clock.Advance(15*time.Minute - time.Second)
			_, err := login("a@x.com", "Passw0rd1")
			Expect(err).To(haveCode(auth.CodeAccountLocked))

			env.clock.Advance(time.Second)
			res, err := login("a@x.com", "Passw0rd1")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Account.FailedAttempts).To(BeZero())
		})

		It("restarts counting after an expired lock", func() {
			for range 5 {
				_, _ = login("a@x.com", "wrong")
			}
			env.clock.Advance(16 * time.Minute)

			for range 4 {
				_, err := login("a@x.com", "wrong")
				Expect(err).To(haveCode(auth.CodeInvalidCredentials))
			}
			_, err := login("a@x.com", "Passw0rd1")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("password reset", func() {
		It("replaces the password and signs the account in", func() {
			Expect(env.svc.ForgotPassword(ctx, "a@x.com")).To(Succeed())
			token := env.mailer.LastToken("a@x.com")
			Expect(token).NotTo(BeEmpty())

			res, err := env.svc.ResetPassword(ctx, token, "NewPassw0rd1", auth.ClientInfo{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Tokens.RefreshToken).NotTo(BeEmpty())

			_, err = login("a@x.com", "Passw0rd1")
			Expect(err).To(haveCode(auth.CodeInvalidCredentials))

			_, err = login("a@x.com", "NewPassw0rd1")
			Expect(err).NotTo(HaveOccurred())
		})

		It("unlocks a locked account", func() {
			for range 5 {
				_, _ = login("a@x.com", "wrong")
			}
			Expect(env.svc.ForgotPassword(ctx, "a@x.com")).To(Succeed())

			_, err := env.svc.ResetPassword(ctx, env.mailer.LastToken("a@x.com"), "NewPassw0rd1", auth.ClientInfo{})
			Expect(err).NotTo(HaveOccurred())

			_, err = login("a@x.com", "NewPassw0rd1")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("token freshness", func() {
		It("rejects tokens minted before a password change", func() {
			res, err := login("a@x.com", "Passw0rd1")
			Expect(err).NotTo(HaveOccurred())

			env.clock.Advance(250 * time.Millisecond)
			_, err = env.svc.ChangePassword(ctx, res.Account.ID, "Passw0rd1", "NewPassw0rd1", auth.ClientInfo{})
			Expect(err).NotTo(HaveOccurred())

			_, err = env.svc.Authenticate(ctx, res.Tokens.AccessToken)
			Expect(err).To(haveCode(auth.CodeStaleToken))

			_, err = env.svc.Refresh(ctx, res.Tokens.RefreshToken, auth.ClientInfo{})
			Expect(err).To(haveCode(auth.CodeStaleToken))
		})
	})
})
