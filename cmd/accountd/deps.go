// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"context"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/accountd/accountd/internal/observability"
	"github.com/accountd/accountd/internal/store"
)

// Database is the subset of *pgxpool.Pool used by the commands.
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// SchemaMigrator wraps the methods used from store.Migrator.
type SchemaMigrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// Deps contains injectable dependencies for the commands.
// All fields with nil values use their default implementations.
type Deps struct {
	// DatabaseFactory opens the connection pool.
	// Default: store.Connect
	DatabaseFactory func(ctx context.Context, url string, cfg store.PoolConfig) (Database, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (SchemaMigrator, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, registrars ...observability.Registrar) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

func (d *Deps) withDefaults() *Deps {
	if d == nil {
		d = &Deps{}
	}
	if d.DatabaseFactory == nil {
		d.DatabaseFactory = func(ctx context.Context, url string, cfg store.PoolConfig) (Database, error) {
			pool, err := store.Connect(ctx, url, cfg)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(url string) (SchemaMigrator, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, registrars ...observability.Registrar) ObservabilityServer {
			return observability.NewServer(addr, ready, registrars...)
		}
	}
	if d.ListenerFactory == nil {
		d.ListenerFactory = net.Listen
	}
	return d
}
