// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an entity collides with a unique constraint.
var ErrDuplicate = errors.New("duplicate")

// Error codes surfaced to callers. Transport layers map these to status codes.
const (
	CodeValidationFailed      = "AUTH_VALIDATION_FAILED"
	CodeDuplicateAccount      = "AUTH_DUPLICATE_ACCOUNT"
	CodeAccountNotFound       = "AUTH_ACCOUNT_NOT_FOUND"
	CodeInvalidCredentials    = "AUTH_INVALID_CREDENTIALS"
	CodeAccountLocked         = "AUTH_ACCOUNT_LOCKED"
	CodeAccountDisabled       = "AUTH_ACCOUNT_DISABLED"
	CodeInvalidToken          = "AUTH_INVALID_TOKEN"
	CodeInvalidOrExpiredToken = "AUTH_INVALID_OR_EXPIRED_TOKEN"
	CodeStaleToken            = "AUTH_STALE_TOKEN"
	CodeForbidden             = "AUTH_FORBIDDEN"
	CodeUnauthenticated       = "AUTH_UNAUTHENTICATED"
	CodeDeliveryFailed        = "AUTH_DELIVERY_FAILED"
)
