// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package authtest provides in-memory implementations of the auth
// repositories and mailer for tests that exercise whole flows.
//
// The repositories honor the same atomicity contract as the PostgreSQL
// implementation: each call holds a single lock, so concurrent callers see
// one consistent order of state changes.
package authtest
