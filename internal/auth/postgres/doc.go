// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package postgres implements the auth repositories on PostgreSQL.
//
// Security state transitions (lockout counters, password changes, secret
// token consumption, refresh rotation) are single UPDATE statements with
// RETURNING so concurrent requests for the same row serialize in the
// database instead of racing in the application.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the subset of *pgxpool.Pool the repositories use.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
