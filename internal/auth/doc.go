// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package auth implements the account security core: credential hashing,
// single-use secret tokens, brute-force lockout, access/refresh token
// issuance, and the flows that tie them together.
//
// # Domain Types
//
// Account is a plain record. Security state transitions are computed by
// free functions (LockoutPolicy, IssueSecret, MatchSecret) and applied
// atomically by the AccountRepository, so concurrent requests for the same
// account never lose an update.
//
// # Services
//
//   - Service - register, login, refresh, password change and reset,
//     email verification, access token authentication
//   - ProfileService - profile reads and updates, administrative state changes
//
// Services are created with New*Service constructors that validate dependencies.
//
// # Errors
//
// Every expected failure carries a stable oops code (see the Code* constants).
// Repositories wrap ErrNotFound and ErrDuplicate so callers can use errors.Is.
package auth
