// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth_test

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/internal/auth/authtest"
)

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness wires a Service to in-memory repositories.
type harness struct {
	svc      *auth.Service
	profiles *auth.ProfileService
	accounts *authtest.Accounts
	sessions *authtest.Sessions
	mailer   *authtest.Mailer
	hasher   *auth.Argon2idHasher
	clock    *testClock
	logs     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		accounts: authtest.NewAccounts(),
		sessions: authtest.NewSessions(),
		mailer:   &authtest.Mailer{},
		hasher:   newFastHasher(t),
		clock:    newTestClock(),
		logs:     &bytes.Buffer{},
	}
	logger := slog.New(slog.NewJSONHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	svc, err := auth.NewService(auth.ServiceDeps{
		Accounts: h.accounts,
		Sessions: h.sessions,
		Hasher:   h.hasher,
		Tokens:   newTestIssuer(t),
		Mailer:   h.mailer,
	}, auth.DefaultServiceConfig(), auth.WithLogger(logger), auth.WithClock(h.clock.Now))
	require.NoError(t, err)
	h.svc = svc

	profiles, err := auth.NewProfileService(h.accounts, h.sessions,
		auth.WithProfileLogger(logger), auth.WithProfileClock(h.clock.Now))
	require.NoError(t, err)
	h.profiles = profiles
	return h
}

func (h *harness) register(t *testing.T, email, password string) *auth.AuthResult {
	t.Helper()
	res, err := h.svc.Register(t.Context(), auth.RegisterInput{
		Email:    email,
		Password: password,
		Profile:  testProfile,
		Client:   auth.ClientInfo{UserAgent: "test", IPAddress: "127.0.0.1"},
	})
	require.NoError(t, err)
	return res
}

func (h *harness) login(t *testing.T, email, password string) (*auth.AuthResult, error) {
	t.Helper()
	return h.svc.Login(t.Context(), auth.LoginInput{Email: email, Password: password})
}
