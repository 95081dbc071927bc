// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// dummyPasswordHash is verified when no account matches an email so that
// unknown and known emails take the same time to reject.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// ServiceDeps are the collaborators of Service. All are required.
type ServiceDeps struct {
	Accounts AccountRepository
	Sessions RefreshSessionRepository
	Hasher   PasswordHasher
	Tokens   *TokenIssuer
	Mailer   Mailer
}

// ServiceConfig tunes the security flows.
type ServiceConfig struct {
	Lockout     LockoutPolicy
	ResetTTL    time.Duration
	VerifyTTL   time.Duration
	HashWorkers int
	AppURL      string
}

// DefaultServiceConfig returns the standard lockout policy and secret lifetimes.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Lockout:   DefaultLockoutPolicy(),
		ResetTTL:  DefaultResetTTL,
		VerifyTTL: DefaultVerifyTTL,
		AppURL:    "http://localhost:8080",
	}
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for best-effort failures and audit events.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now, for tests that move time forward.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service orchestrates registration, login, token refresh and the
// password and email flows.
type Service struct {
	accounts AccountRepository
	sessions RefreshSessionRepository
	hashes   *HashPool
	tokens   *TokenIssuer
	mailer   Mailer
	cfg      ServiceConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a Service, rejecting missing dependencies and
// non-positive policy values.
func NewService(deps ServiceDeps, cfg ServiceConfig, opts ...ServiceOption) (*Service, error) {
	if deps.Accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if deps.Sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if deps.Hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if deps.Tokens == nil {
		return nil, oops.Errorf("token issuer is required")
	}
	if deps.Mailer == nil {
		return nil, oops.Errorf("mailer is required")
	}
	if cfg.Lockout.MaxAttempts <= 0 || cfg.Lockout.LockDuration <= 0 {
		return nil, oops.With("max_attempts", cfg.Lockout.MaxAttempts).
			With("lock_duration", cfg.Lockout.LockDuration.String()).
			Errorf("lockout policy must have positive attempts and duration")
	}
	if cfg.ResetTTL <= 0 || cfg.VerifyTTL <= 0 {
		return nil, oops.Errorf("secret token lifetimes must be positive")
	}

	s := &Service{
		accounts: deps.Accounts,
		sessions: deps.Sessions,
		hashes:   NewHashPool(deps.Hasher, cfg.HashWorkers),
		tokens:   deps.Tokens,
		mailer:   deps.Mailer,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ClientInfo describes the client a refresh session is issued to.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

// AuthResult is returned by every flow that signs the caller in.
type AuthResult struct {
	Account *Account
	Tokens  TokenPair
}

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Email    string
	Password string
	Profile  Profile
	Client   ClientInfo
}

// Register creates an unverified account, mails a verification link and
// signs the new account in. A failed delivery clears the verification
// artifact but does not fail registration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if _, err := NormalizeEmail(in.Email); err != nil {
		return nil, err
	}
	if err := ValidateProfile(in.Profile); err != nil {
		return nil, err
	}

	digest, err := s.hashes.Hash(ctx, in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	now := s.now()
	account, err := NewAccount(in.Email, digest, in.Profile, now)
	if err != nil {
		return nil, err
	}

	secret, err := IssueSecret(s.cfg.VerifyTTL, now)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "issue verification secret").Wrap(err)
	}
	account.VerifyTokenHash = &secret.Digest
	account.VerifyExpiresAt = &secret.ExpiresAt

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicate) {
			RecordOperation("register", "duplicate")
			return nil, oops.Code(CodeDuplicateAccount).
				With("email", account.Email).
				Errorf("an account with this email already exists")
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "create account").Wrap(err)
	}

	if !s.deliverVerification(ctx, account, secret) {
		account.VerifyTokenHash = nil
		account.VerifyExpiresAt = nil
	}

	pair, err := s.issueTokens(ctx, account, in.Client, now)
	if err != nil {
		return nil, err
	}

	RecordOperation("register", OutcomeSuccess)
	s.logger.InfoContext(ctx, "account registered", "account_id", account.ID.String())
	return &AuthResult{Account: account, Tokens: pair}, nil
}

// LoginInput carries credentials and client details.
type LoginInput struct {
	Email    string
	Password string
	Client   ClientInfo
}

// Login checks credentials and signs the account in.
//
// Unknown emails and wrong passwords fail identically with
// AUTH_INVALID_CREDENTIALS. A wrong password is recorded against the lockout
// counter before the failure is returned.
func (s *Service) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	account, err := s.lookupForLogin(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		// Keep the response time of unknown emails in line with known ones.
		if _, verr := s.hashes.Verify(ctx, in.Password, dummyPasswordHash); verr != nil {
			return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "verify password").Wrap(verr)
		}
		RecordOperation("login", OutcomeInvalid)
		return nil, invalidCredentials()
	}

	now := s.now()
	if state := account.LockState(); s.cfg.Lockout.IsLocked(state, now) {
		RecordOperation("login", OutcomeLocked)
		return nil, accountLocked(state, s.cfg.Lockout.Remaining(state, now))
	}

	valid, err := s.hashes.Verify(ctx, in.Password, account.PasswordHash)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "verify password").Wrap(err)
	}
	if !valid {
		return nil, s.recordFailure(ctx, account, now)
	}

	if !account.IsActive {
		RecordOperation("login", OutcomeDisabled)
		return nil, accountDisabled(account.ID)
	}

	if err := s.accounts.RecordLoginSuccess(ctx, account.ID, now); err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "record login success").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	account.FailedAttempts = 0
	account.LockedUntil = nil
	account.LoginCount++
	account.LastLoginAt = &now

	if s.hashes.NeedsUpgrade(account.PasswordHash) {
		s.upgradeHash(ctx, account, in.Password, now)
	}

	pair, err := s.issueTokens(ctx, account, in.Client, now)
	if err != nil {
		return nil, err
	}

	RecordOperation("login", OutcomeSuccess)
	return &AuthResult{Account: account, Tokens: pair}, nil
}

func (s *Service) lookupForLogin(ctx context.Context, email string) (*Account, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, nil //nolint:nilerr // malformed emails are treated as unknown accounts
	}
	account, err := s.accounts.GetByEmail(ctx, normalized)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "get account by email").Wrap(err)
	}
	return account, nil
}

// recordFailure commits the failed attempt and returns the error to surface.
func (s *Service) recordFailure(ctx context.Context, account *Account, now time.Time) error {
	state, err := s.accounts.RecordLoginFailure(ctx, account.ID, s.cfg.Lockout, now)
	if err != nil {
		RecordOperation("login", OutcomeError)
		return oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "record login failure").
			With("account_id", account.ID.String()).
			Wrap(err)
	}

	wasLocked := account.LockedUntil != nil && account.LockedUntil.After(now)
	if !wasLocked && s.cfg.Lockout.IsLocked(state, now) {
		AccountLockouts.Inc()
		s.logger.WarnContext(ctx, "account locked after repeated login failures",
			"account_id", account.ID.String(),
			"failed_attempts", state.FailedAttempts,
			"locked_until", state.LockedUntil)
	}

	RecordOperation("login", OutcomeInvalid)
	return invalidCredentials()
}

func (s *Service) upgradeHash(ctx context.Context, account *Account, password string, now time.Time) {
	digest, err := s.hashes.Hash(ctx, password)
	if err != nil {
		s.logger.WarnContext(ctx, "best-effort password rehash failed",
			"operation", "hash",
			"account_id", account.ID.String(),
			"error", err)
		return
	}
	if err := s.accounts.UpdatePasswordHash(ctx, account.ID, digest, now); err != nil {
		s.logger.WarnContext(ctx, "best-effort password rehash failed",
			"operation", "update password hash",
			"account_id", account.ID.String(),
			"error", err)
		return
	}
	account.PasswordHash = digest
}

// Refresh exchanges a refresh token for a new token pair. The presented
// refresh session is rotated; presenting an already rotated session is
// treated as token theft and revokes every session of the account.
func (s *Service) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*AuthResult, error) {
	now := s.now()
	claims, err := s.tokens.Verify(refreshToken, TokenRefresh, now)
	if err != nil {
		RecordOperation("refresh", "invalid_token")
		return nil, err
	}

	account, err := s.accountForToken(ctx, claims, "refresh")
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		RecordOperation("refresh", OutcomeDisabled)
		return nil, accountDisabled(account.ID)
	}

	sessionID, err := claims.SessionID()
	if err != nil {
		RecordOperation("refresh", "invalid_token")
		return nil, err
	}
	if err := s.sessions.Rotate(ctx, sessionID, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, s.handleRotationMiss(ctx, account.ID, sessionID)
		}
		return nil, oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "rotate session").
			With("session_id", sessionID.String()).
			Wrap(err)
	}

	pair, err := s.issueTokens(ctx, account, client, now)
	if err != nil {
		return nil, err
	}

	RecordOperation("refresh", OutcomeSuccess)
	return &AuthResult{Account: account, Tokens: pair}, nil
}

func (s *Service) handleRotationMiss(ctx context.Context, accountID, sessionID ulid.ULID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil || session.RotatedAt == nil {
		RecordOperation("refresh", "invalid_token")
		return oops.Code(CodeInvalidToken).
			With("session_id", sessionID.String()).
			Errorf("token is invalid or expired")
	}

	revoked, err := s.sessions.DeleteByAccount(ctx, accountID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions after refresh token reuse",
			"account_id", accountID.String(),
			"error", err)
	}
	s.logger.WarnContext(ctx, "refresh token reuse detected, sessions revoked",
		"account_id", accountID.String(),
		"session_id", sessionID.String(),
		"revoked", revoked)

	RecordOperation("refresh", OutcomeReused)
	return oops.Code(CodeStaleToken).
		With("session_id", sessionID.String()).
		Errorf("refresh token has already been used")
}

// Authenticate resolves an access token to its account. The account is
// returned even when disabled; access decisions belong to the caller.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Account, error) {
	claims, err := s.tokens.Verify(accessToken, TokenAccess, s.now())
	if err != nil {
		return nil, err
	}
	return s.accountForToken(ctx, claims, "authenticate")
}

func (s *Service) accountForToken(ctx context.Context, claims *Claims, operation string) (*Account, error) {
	accountID, err := claims.AccountID()
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		RecordOperation(operation, "invalid_token")
		return nil, oops.Code(CodeInvalidToken).
			With("account_id", accountID.String()).
			Errorf("token is invalid or expired")
	}
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_LOOKUP_FAILED").
			With("operation", "get account by id").
			With("account_id", accountID.String()).
			Wrap(err)
	}

	if IsStale(claims, account.PasswordChangedAt) {
		RecordOperation(operation, OutcomeStale)
		return nil, oops.Code(CodeStaleToken).
			With("account_id", accountID.String()).
			Errorf("password changed after this token was issued")
	}
	return account, nil
}

// Me returns the account with the given ID.
func (s *Service) Me(ctx context.Context, accountID ulid.ULID) (*Account, error) {
	return getAccount(ctx, s.accounts, accountID)
}

// ChangePassword re-verifies the current password, stores the new one and
// revokes every refresh session. The caller receives a fresh token pair
// because all earlier tokens are now stale.
func (s *Service) ChangePassword(ctx context.Context, accountID ulid.ULID, current, next string, client ClientInfo) (*AuthResult, error) {
	if err := ValidatePassword(next); err != nil {
		return nil, err
	}

	account, err := getAccount(ctx, s.accounts, accountID)
	if err != nil {
		return nil, err
	}

	valid, err := s.hashes.Verify(ctx, current, account.PasswordHash)
	if err != nil {
		return nil, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "verify password").Wrap(err)
	}
	if !valid {
		RecordOperation("change_password", OutcomeInvalid)
		return nil, oops.Code(CodeInvalidCredentials).Errorf("current password is incorrect")
	}

	if err := s.setPassword(ctx, account, next); err != nil {
		return nil, err
	}

	pair, err := s.issueTokens(ctx, account, client, s.now())
	if err != nil {
		return nil, err
	}

	RecordOperation("change_password", OutcomeSuccess)
	s.logger.InfoContext(ctx, "password changed", "account_id", account.ID.String())
	return &AuthResult{Account: account, Tokens: pair}, nil
}

// setPassword hashes and stores a new password, then revokes refresh sessions.
func (s *Service) setPassword(ctx context.Context, account *Account, password string) error {
	digest, err := s.hashes.Hash(ctx, password)
	if err != nil {
		return oops.Code("AUTH_SET_PASSWORD_FAILED").With("operation", "hash password").Wrap(err)
	}

	changedAt, err := s.accounts.ChangePassword(ctx, account.ID, digest, s.now())
	if err != nil {
		return oops.Code("AUTH_SET_PASSWORD_FAILED").
			With("operation", "change password").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	account.PasswordHash = digest
	account.PasswordChangedAt = &changedAt

	if _, err := s.sessions.DeleteByAccount(ctx, account.ID); err != nil {
		s.logger.WarnContext(ctx, "best-effort session revocation failed",
			"operation", "delete sessions by account",
			"account_id", account.ID.String(),
			"error", err)
	}
	return nil
}

// ForgotPassword mails a reset link when the email belongs to an account.
// Unknown emails succeed silently so the response never reveals whether an
// account exists.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	account, err := s.lookupSilently(ctx, email, "forgot_password")
	if err != nil || account == nil {
		return err
	}

	now := s.now()
	secret, err := IssueSecret(s.cfg.ResetTTL, now)
	if err != nil {
		return oops.Code("AUTH_FORGOT_PASSWORD_FAILED").With("operation", "issue reset secret").Wrap(err)
	}
	if err := s.accounts.SetResetToken(ctx, account.ID, secret.Digest, secret.ExpiresAt); err != nil {
		return oops.Code("AUTH_FORGOT_PASSWORD_FAILED").
			With("operation", "store reset token").
			With("account_id", account.ID.String()).
			Wrap(err)
	}

	msg, err := ResetMessage(s.cfg.AppURL, account, secret.Plaintext, s.cfg.ResetTTL)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	RecordDelivery("reset", err)
	if err != nil {
		s.logger.WarnContext(ctx, "reset email delivery failed, reset token cleared",
			"operation", "send reset email",
			"account_id", account.ID.String(),
			"error", err)
		if clearErr := s.accounts.ClearResetToken(ctx, account.ID, secret.Digest); clearErr != nil {
			s.logger.WarnContext(ctx, "best-effort reset token cleanup failed",
				"operation", "clear reset token",
				"account_id", account.ID.String(),
				"error", clearErr)
		}
	}

	RecordOperation("forgot_password", OutcomeSuccess)
	return nil
}

// ResetPassword consumes a reset token, stores the new password and signs
// the account in.
func (s *Service) ResetPassword(ctx context.Context, token, password string, client ClientInfo) (*AuthResult, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, invalidOrExpired("reset")
	}

	account, err := s.accounts.ConsumeResetToken(ctx, DigestSecret(token), s.now())
	if errors.Is(err, ErrNotFound) {
		RecordOperation("reset_password", OutcomeInvalidLink)
		return nil, invalidOrExpired("reset")
	}
	if err != nil {
		return nil, oops.Code("AUTH_RESET_PASSWORD_FAILED").With("operation", "consume reset token").Wrap(err)
	}

	if err := s.setPassword(ctx, account, password); err != nil {
		return nil, err
	}
	if !account.IsActive {
		RecordOperation("reset_password", OutcomeDisabled)
		s.logger.InfoContext(ctx, "password reset on disabled account", "account_id", account.ID.String())
		return nil, accountDisabled(account.ID)
	}

	pair, err := s.issueTokens(ctx, account, client, s.now())
	if err != nil {
		return nil, err
	}

	RecordOperation("reset_password", OutcomeSuccess)
	s.logger.InfoContext(ctx, "password reset", "account_id", account.ID.String())
	return &AuthResult{Account: account, Tokens: pair}, nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, invalidOrExpired("verify")
	}

	account, err := s.accounts.ConsumeVerifyToken(ctx, DigestSecret(token), s.now())
	if errors.Is(err, ErrNotFound) {
		RecordOperation("verify_email", OutcomeInvalidLink)
		return nil, invalidOrExpired("verify")
	}
	if err != nil {
		return nil, oops.Code("AUTH_VERIFY_EMAIL_FAILED").With("operation", "consume verify token").Wrap(err)
	}

	RecordOperation("verify_email", OutcomeSuccess)
	return account, nil
}

// ResendVerification issues a new verification link, replacing the previous
// one. Unknown and already verified emails succeed silently.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	account, err := s.lookupSilently(ctx, email, "resend_verification")
	if err != nil || account == nil || account.IsVerified {
		return err
	}

	secret, err := IssueSecret(s.cfg.VerifyTTL, s.now())
	if err != nil {
		return oops.Code("AUTH_RESEND_VERIFICATION_FAILED").With("operation", "issue verification secret").Wrap(err)
	}
	if err := s.accounts.SetVerifyToken(ctx, account.ID, secret.Digest, secret.ExpiresAt); err != nil {
		return oops.Code("AUTH_RESEND_VERIFICATION_FAILED").
			With("operation", "store verify token").
			With("account_id", account.ID.String()).
			Wrap(err)
	}

	s.deliverVerification(ctx, account, secret)
	RecordOperation("resend_verification", OutcomeSuccess)
	return nil
}

// Logout records the sign-out. Tokens are stateless: the transport clears
// the client's refresh cookie and already issued tokens stay valid until
// they expire.
func (s *Service) Logout(ctx context.Context, accountID ulid.ULID) {
	RecordOperation("logout", OutcomeSuccess)
	s.logger.InfoContext(ctx, "account signed out", "account_id", accountID.String())
}

// Sessions returns the account's refresh sessions that can still be
// rotated, newest first.
func (s *Service) Sessions(ctx context.Context, accountID ulid.ULID) ([]*RefreshSession, error) {
	sessions, err := s.sessions.ListByAccount(ctx, accountID, s.now())
	if err != nil {
		return nil, oops.Code("AUTH_LIST_SESSIONS_FAILED").
			With("operation", "list sessions by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return sessions, nil
}

// PruneSessions deletes refresh sessions that are expired or were rotated
// before now.
func (s *Service) PruneSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, oops.Code("AUTH_PRUNE_FAILED").With("operation", "delete expired sessions").Wrap(err)
	}
	return n, nil
}

func (s *Service) lookupSilently(ctx context.Context, email, operation string) (*Account, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.GetByEmail(ctx, normalized)
	if errors.Is(err, ErrNotFound) {
		RecordOperation(operation, "unknown_email")
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", operation).
			Wrap(err)
	}
	return account, nil
}

// deliverVerification mails a verification link and clears the stored
// artifact when delivery fails. Reports whether the mail was sent.
func (s *Service) deliverVerification(ctx context.Context, account *Account, secret SecretToken) bool {
	msg, err := VerificationMessage(s.cfg.AppURL, account, secret.Plaintext, s.cfg.VerifyTTL)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	RecordDelivery("verify", err)
	if err == nil {
		return true
	}

	s.logger.WarnContext(ctx, "verification email delivery failed, verification token cleared",
		"operation", "send verification email",
		"account_id", account.ID.String(),
		"error", err)
	if clearErr := s.accounts.ClearVerifyToken(ctx, account.ID, secret.Digest); clearErr != nil {
		s.logger.WarnContext(ctx, "best-effort verification token cleanup failed",
			"operation", "clear verify token",
			"account_id", account.ID.String(),
			"error", clearErr)
	}
	return false
}

// issueTokens opens a refresh session and mints the matching token pair.
func (s *Service) issueTokens(ctx context.Context, account *Account, client ClientInfo, now time.Time) (TokenPair, error) {
	session, err := NewRefreshSession(account.ID, client.UserAgent, client.IPAddress, now, now.Add(s.tokens.RefreshTTL()))
	if err != nil {
		return TokenPair{}, oops.Code("AUTH_TOKEN_ISSUE_FAILED").With("operation", "new refresh session").Wrap(err)
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return TokenPair{}, oops.Code("AUTH_TOKEN_ISSUE_FAILED").
			With("operation", "persist refresh session").
			With("account_id", account.ID.String()).
			Wrap(err)
	}

	pair, err := s.tokens.IssuePair(account.ID, session.ID, PasswordVersion(account.PasswordChangedAt), now)
	if err != nil {
		return TokenPair{}, oops.Code("AUTH_TOKEN_ISSUE_FAILED").With("operation", "sign tokens").Wrap(err)
	}
	return pair, nil
}

func getAccount(ctx context.Context, accounts AccountRepository, id ulid.ULID) (*Account, error) {
	account, err := accounts.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code(CodeAccountNotFound).
			With("account_id", id.String()).
			Errorf("account not found")
	}
	if err != nil {
		return nil, oops.Code("AUTH_ACCOUNT_LOOKUP_FAILED").
			With("operation", "get account by id").
			With("account_id", id.String()).
			Wrap(err)
	}
	return account, nil
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

func invalidOrExpired(purpose string) error {
	return oops.Code(CodeInvalidOrExpiredToken).
		With("purpose", purpose).
		Errorf("token is invalid or has expired")
}

func accountLocked(state LockState, remaining time.Duration) error {
	return oops.Code(CodeAccountLocked).
		With("locked_until", state.LockedUntil.UTC().Format(time.RFC3339)).
		With("retry_after_seconds", int(remaining.Seconds())+1).
		Errorf("account is temporarily locked")
}

func accountDisabled(id ulid.ULID) error {
	return oops.Code(CodeAccountDisabled).
		With("account_id", id.String()).
		Errorf("account is disabled")
}
