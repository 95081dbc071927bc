// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/accountd/accountd/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Manage the PostgreSQL schema. Without a subcommand, all pending
migrations are applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	})

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all account data)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return oops.Code("CONFIRMATION_REQUIRED").
					Errorf("migrate down drops all data; pass --yes to confirm")
			}
			return withMigrator(cmd, deps, func(m SchemaMigrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm dropping all data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations, or roll back -N",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n == 0 {
				return oops.Code("INVALID_ARGUMENT").With("steps", args[0]).
					Errorf("steps must be a non-zero integer")
			}
			return withMigrator(cmd, deps, func(m SchemaMigrator) error {
				if err := m.Steps(n); err != nil {
					return err
				}
				cmd.Printf("Migrated %d step(s)\n", n)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations (clears dirty state)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 0 {
				return oops.Code("INVALID_ARGUMENT").With("version", args[0]).
					Errorf("version must be a non-negative integer")
			}
			return withMigrator(cmd, deps, func(m SchemaMigrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				cmd.Printf("Schema version forced to %d\n", v)
				return nil
			})
		},
	})

	var jsonOutput bool
	status := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m SchemaMigrator) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				if jsonOutput {
					out, err := formatMigrationStatusJSON(st)
					if err != nil {
						return err
					}
					cmd.Println(out)
					return nil
				}
				cmd.Print(formatMigrationStatus(st))
				return nil
			})
		},
	}
	status.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")
	cmd.AddCommand(status)

	return cmd
}

func runMigrateUp(cmd *cobra.Command, deps *Deps) error {
	return withMigrator(cmd, deps, func(m SchemaMigrator) error {
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return err
		}
		cmd.Println("Migrations completed successfully")
		return nil
	})
}

// withMigrator opens a migrator for the configured database, runs fn and
// closes it.
func withMigrator(cmd *cobra.Command, deps *Deps, fn func(SchemaMigrator) error) (err error) {
	deps = deps.withDefaults()
	cfg, err := loadDatabaseConfig(cmd)
	if err != nil {
		return err
	}
	m, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return oops.Wrapf(err, "failed to create migrator")
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(m)
}

func formatMigrationStatus(st store.Status) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	name := st.Name
	if name == "" {
		name = "-"
	}
	_, _ = fmt.Fprintf(w, "VERSION\t%d\n", st.Version)
	_, _ = fmt.Fprintf(w, "NAME\t%s\n", name)
	_, _ = fmt.Fprintf(w, "DIRTY\t%t\n", st.Dirty)
	_, _ = fmt.Fprintf(w, "APPLIED\t%s\n", joinVersions(st.Applied))
	_, _ = fmt.Fprintf(w, "PENDING\t%s\n", joinVersions(st.Pending))
	_ = w.Flush()
	return b.String()
}

type migrationStatusJSON struct {
	Version uint   `json:"version"`
	Name    string `json:"name,omitempty"`
	Dirty   bool   `json:"dirty"`
	Applied []uint `json:"applied"`
	Pending []uint `json:"pending"`
}

func formatMigrationStatusJSON(st store.Status) (string, error) {
	out := migrationStatusJSON{
		Version: st.Version,
		Name:    st.Name,
		Dirty:   st.Dirty,
		Applied: st.Applied,
		Pending: st.Pending,
	}
	if out.Applied == nil {
		out.Applied = []uint{}
	}
	if out.Pending == nil {
		out.Pending = []uint{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
	}
	return string(data), nil
}

func joinVersions(vs []uint) string {
	if len(vs) == 0 {
		return "none"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(parts, ", ")
}
