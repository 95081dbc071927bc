// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/accountd/accountd/internal/observability"
	"github.com/accountd/accountd/internal/store"
)

var errNotImplemented = errors.New("not implemented by fake")

type fakeDatabase struct {
	mu       sync.Mutex
	tag      pgconn.CommandTag
	execErr  error
	execSQL  []string
	execArgs [][]any
	closed   bool
}

func (f *fakeDatabase) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return f.tag, f.execErr
}

func (f *fakeDatabase) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errNotImplemented
}

func (f *fakeDatabase) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{}
}

func (f *fakeDatabase) Ping(context.Context) error { return nil }

func (f *fakeDatabase) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeDatabase) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type errRow struct{}

func (errRow) Scan(...any) error { return pgx.ErrNoRows }

type fakeMigrator struct {
	mu      sync.Mutex
	calls   []string
	steps   int
	forced  int
	status  store.Status
	failErr error
	closed  bool
}

func (m *fakeMigrator) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.failErr
}

func (m *fakeMigrator) Up() error   { return m.record("up") }
func (m *fakeMigrator) Down() error { return m.record("down") }

func (m *fakeMigrator) Steps(n int) error {
	m.steps = n
	return m.record("steps")
}

func (m *fakeMigrator) Force(version int) error {
	m.forced = version
	return m.record("force")
}

func (m *fakeMigrator) Status() (store.Status, error) {
	return m.status, m.record("status")
}

func (m *fakeMigrator) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *fakeMigrator) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type fakeObservabilityServer struct {
	mu      sync.Mutex
	addr    string
	started bool
	stopped bool
	metrics *observability.Metrics
	errCh   chan error
}

func newFakeObservabilityServer(addr string) *fakeObservabilityServer {
	return &fakeObservabilityServer{
		addr:    addr,
		metrics: observability.NewMetrics(prometheus.NewRegistry()),
		errCh:   make(chan error, 1),
	}
}

func (s *fakeObservabilityServer) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return s.errCh, nil
}

func (s *fakeObservabilityServer) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *fakeObservabilityServer) Addr() string { return s.addr }

func (s *fakeObservabilityServer) Metrics() *observability.Metrics { return s.metrics }

func (s *fakeObservabilityServer) state() (started, stopped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.stopped
}
