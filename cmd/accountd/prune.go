// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/accountd/accountd/internal/auth/postgres"
)

// NewPruneCmd creates the prune subcommand.
func NewPruneCmd() *cobra.Command {
	return newPruneCmd(nil, time.Now)
}

func newPruneCmd(deps *Deps, now func() time.Time) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete expired and rotated refresh sessions",
		Long: `Delete refresh sessions that expired or were rotated before the cutoff.
The serve command does this periodically; prune is for cron jobs and
deployments that run with --prune-interval=0.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan < 0 {
				return oops.Code("INVALID_ARGUMENT").Errorf("--older-than cannot be negative")
			}
			deps := deps.withDefaults()
			cfg, err := loadDatabaseConfig(cmd)
			if err != nil {
				return err
			}
			db, err := deps.DatabaseFactory(cmd.Context(), cfg.Database.URL, cfg.Database.Pool)
			if err != nil {
				return oops.Wrapf(err, "failed to connect to database")
			}
			defer db.Close()

			cutoff := now().Add(-olderThan)
			n, err := postgres.NewRefreshSessionRepository(db).DeleteExpired(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			cmd.Printf("Deleted %d refresh session(s)\n", n)
			return nil
		},
	}

	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only delete sessions that ended at least this long ago")

	return cmd
}
