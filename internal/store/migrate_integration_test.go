// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/accountd/accountd/internal/store"
)

var _ = Describe("Schema lifecycle", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		migrator  *store.Migrator
		pool      *pgxpool.Pool
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("accountd_test"),
			postgres.WithUsername("accountd"),
			postgres.WithPassword("accountd"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())

		pool, err = store.Connect(ctx, connStr, store.DefaultPoolConfig())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if migrator != nil {
			_ = migrator.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	tableExists := func(name string) bool {
		var exists bool
		err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, name).Scan(&exists)
		Expect(err).NotTo(HaveOccurred())
		return exists
	}

	It("starts empty", func() {
		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Version).To(BeZero())
		Expect(st.Pending).To(ConsistOf(uint(1), uint(2)))
	})

	It("applies every migration", func() {
		Expect(migrator.Up()).To(Succeed())

		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Version).To(Equal(uint(2)))
		Expect(st.Dirty).To(BeFalse())
		Expect(st.Pending).To(BeEmpty())
		Expect(tableExists("accounts")).To(BeTrue())
		Expect(tableExists("refresh_sessions")).To(BeTrue())
	})

	It("is idempotent", func() {
		Expect(migrator.Up()).To(Succeed())
	})

	It("steps down and up again", func() {
		Expect(migrator.Steps(-1)).To(Succeed())
		Expect(tableExists("refresh_sessions")).To(BeFalse())
		Expect(tableExists("accounts")).To(BeTrue())

		Expect(migrator.Steps(1)).To(Succeed())
		Expect(tableExists("refresh_sessions")).To(BeTrue())
	})

	It("enforces case-insensitive email uniqueness", func() {
		_, err := pool.Exec(ctx, `INSERT INTO accounts (id, email, password_hash, first_name, last_name)
			VALUES ('01HZZZZZZZZZZZZZZZZZZZZZZ1', 'a@x.com', 'h', 'A', 'B')`)
		Expect(err).NotTo(HaveOccurred())

		_, err = pool.Exec(ctx, `INSERT INTO accounts (id, email, password_hash, first_name, last_name)
			VALUES ('01HZZZZZZZZZZZZZZZZZZZZZZ2', 'A@X.COM', 'h', 'A', 'B')`)
		Expect(err).To(HaveOccurred())
	})

	It("rolls everything back", func() {
		Expect(migrator.Down()).To(Succeed())
		v, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeZero())
		Expect(dirty).To(BeFalse())
		Expect(tableExists("accounts")).To(BeFalse())
	})

	It("reports readiness while the database is up", func() {
		Expect(store.ReadinessCheck(pool, time.Second)()).To(BeTrue())
	})
})
