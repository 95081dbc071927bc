// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package store owns the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// PoolConfig tunes the connection pool and the startup retry loop.
type PoolConfig struct {
	MaxConns        int32         `koanf:"max_conns" json:"max_conns" jsonschema:"minimum=1"`
	MinConns        int32         `koanf:"min_conns" json:"min_conns" jsonschema:"minimum=0"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime" json:"max_conn_lifetime" jsonschema:"oneof_type=string;integer"`
	ConnectRetries  uint64        `koanf:"connect_retries" json:"connect_retries"`
	RetryBackoff    time.Duration `koanf:"retry_backoff" json:"retry_backoff" jsonschema:"oneof_type=string;integer"`
}

// DefaultPoolConfig returns pool settings suitable for a single instance.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		ConnectRetries:  5,
		RetryBackoff:    500 * time.Millisecond,
	}
}

// Connect opens a pool for databaseURL and waits until the database answers
// a ping. Ping failures are retried with exponential backoff so the service
// can start alongside its database.
func Connect(ctx context.Context, databaseURL string, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultPoolConfig().RetryBackoff
	}
	attempt := 0
	err = retry.Do(ctx, retry.WithMaxRetries(cfg.ConnectRetries, retry.NewExponential(backoff)), func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			slog.WarnContext(ctx, "database not reachable yet", "attempt", attempt, "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return pool, nil
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck returns a probe that reports whether the database answers a
// ping within timeout.
func ReadinessCheck(db Pinger, timeout time.Duration) func() bool {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return db.Ping(ctx) == nil
	}
}
