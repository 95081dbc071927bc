// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 7 * 24 * time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// MinTokenSecretLength is the minimum HMAC secret length in bytes.
const MinTokenSecretLength = 32

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

// Token kinds.
const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// TokenConfig configures a TokenIssuer.
type TokenConfig struct {
	Issuer        string        `koanf:"issuer" json:"issuer"`
	AccessSecret  string        `koanf:"access_secret" json:"access_secret,omitempty"`
	RefreshSecret string        `koanf:"refresh_secret" json:"refresh_secret,omitempty"`
	AccessTTL     time.Duration `koanf:"access_ttl" json:"access_ttl" jsonschema:"oneof_type=string;integer"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl" json:"refresh_ttl" jsonschema:"oneof_type=string;integer"`
}

// Validate checks secrets and lifetimes.
func (c TokenConfig) Validate() error {
	if len(c.AccessSecret) < MinTokenSecretLength {
		return oops.Code("TOKEN_CONFIG_INVALID").
			With("min", MinTokenSecretLength).
			Errorf("access secret must be at least %d bytes", MinTokenSecretLength)
	}
	if len(c.RefreshSecret) < MinTokenSecretLength {
		return oops.Code("TOKEN_CONFIG_INVALID").
			With("min", MinTokenSecretLength).
			Errorf("refresh secret must be at least %d bytes", MinTokenSecretLength)
	}
	if c.AccessSecret == c.RefreshSecret {
		return oops.Code("TOKEN_CONFIG_INVALID").Errorf("access and refresh secrets must differ")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return oops.Code("TOKEN_CONFIG_INVALID").
			With("access_ttl", c.AccessTTL.String()).
			With("refresh_ttl", c.RefreshTTL.String()).
			Errorf("token lifetimes must be positive")
	}
	return nil
}

// Claims are the JWT claims carried by both token kinds. PasswordVersion is
// the account's password version when the token was minted.
type Claims struct {
	jwt.RegisteredClaims
	Kind            TokenKind `json:"typ"`
	PasswordVersion int64     `json:"pwv,omitempty"`
}

// PasswordVersion identifies the password an account currently holds: the
// millisecond stamp of its last change, or zero if it was never changed.
// The store advances PasswordChangedAt by at least a millisecond on every
// change, so each change yields a larger version.
func PasswordVersion(changedAt *time.Time) int64 {
	if changedAt == nil {
		return 0
	}
	return changedAt.UnixMilli()
}

// AccountID parses the subject claim.
func (c *Claims) AccountID() (ulid.ULID, error) {
	id, err := ulid.Parse(c.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeInvalidToken).With("subject", c.Subject).Wrap(err)
	}
	return id, nil
}

// SessionID parses the token ID claim.
func (c *Claims) SessionID() (ulid.ULID, error) {
	id, err := ulid.Parse(c.ID)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeInvalidToken).With("jti", c.ID).Wrap(err)
	}
	return id, nil
}

// TokenPair is the result of a successful authentication.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionID        ulid.ULID
}

// TokenIssuer mints and verifies HS256 access and refresh tokens. The two
// kinds are signed with different secrets so one can never stand in for the
// other.
type TokenIssuer struct {
	cfg TokenConfig
}

// NewTokenIssuer validates cfg and creates a TokenIssuer.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TokenIssuer{cfg: cfg}, nil
}

// RefreshTTL returns the refresh token lifetime.
func (t *TokenIssuer) RefreshTTL() time.Duration {
	return t.cfg.RefreshTTL
}

// IssuePair mints an access token and a refresh token for accountID under
// the given password version. The refresh token carries sessionID as its jti.
func (t *TokenIssuer) IssuePair(accountID, sessionID ulid.ULID, passwordVersion int64, now time.Time) (TokenPair, error) {
	accessExp := now.Add(t.cfg.AccessTTL)
	access, err := t.sign(TokenAccess, accountID, ulid.Make(), passwordVersion, now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}

	refreshExp := now.Add(t.cfg.RefreshTTL)
	refresh, err := t.sign(TokenRefresh, accountID, sessionID, passwordVersion, now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		SessionID:        sessionID,
	}, nil
}

func (t *TokenIssuer) sign(kind TokenKind, accountID, jti ulid.ULID, passwordVersion int64, now, exp time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.cfg.Issuer,
			Subject:   accountID.String(),
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Kind:            kind,
		PasswordVersion: passwordVersion,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret(kind))
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("kind", string(kind)).Wrap(err)
	}
	return signed, nil
}

func (t *TokenIssuer) secret(kind TokenKind) []byte {
	if kind == TokenRefresh {
		return []byte(t.cfg.RefreshSecret)
	}
	return []byte(t.cfg.AccessSecret)
}

// Verify checks signature, kind, issuer and expiry at now. Every failure is
// reported as AUTH_INVALID_TOKEN; the cause is kept as context only.
func (t *TokenIssuer) Verify(token string, kind TokenKind, now time.Time) (*Claims, error) {
	if token == "" {
		return nil, oops.Code(CodeInvalidToken).With("kind", string(kind)).Errorf("token is missing")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret(kind), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(t.cfg.Issuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !parsed.Valid {
		return nil, oops.Code(CodeInvalidToken).
			With("kind", string(kind)).
			With("reason", tokenFailureReason(err)).
			Errorf("token is invalid or expired")
	}
	if claims.Kind != kind {
		return nil, oops.Code(CodeInvalidToken).
			With("kind", string(kind)).
			With("reason", "wrong_kind").
			Errorf("token is invalid or expired")
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, err
	}
	if claims.IssuedAt == nil {
		return nil, oops.Code(CodeInvalidToken).With("reason", "missing_iat").Errorf("token is invalid or expired")
	}
	return claims, nil
}

func tokenFailureReason(err error) string {
	switch {
	case err == nil:
		return "invalid"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "issuer"
	default:
		return "invalid"
	}
}

// IsStale reports whether claims were minted before the password change at
// changedAt. The comparison uses password versions rather than iat, so a
// token minted in the same second as the change is still caught.
func IsStale(claims *Claims, changedAt *time.Time) bool {
	return claims.PasswordVersion < PasswordVersion(changedAt)
}
