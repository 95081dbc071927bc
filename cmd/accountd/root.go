// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/accountd/accountd/internal/config"
	"github.com/accountd/accountd/internal/xdg"
)

// NewRootCmd creates the root command for the accountd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accountd",
		Short: "accountd - user account and authentication service",
		Long: `accountd manages user accounts: registration, password login with
brute-force lockout, signed access and refresh tokens, email verification,
password reset and role based administration.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (YAML); default: first config.yaml in $XDG_CONFIG_HOME/accountd or /etc/accountd")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPruneCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}

// configOptions resolves the config file from --config or the XDG search
// path.
func configOptions(cmd *cobra.Command) (config.Options, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		found, err := xdg.FindConfigFile()
		if err != nil {
			return config.Options{}, err
		}
		path = found
	}
	return config.Options{Path: path, Flags: cmd.Flags()}, nil
}

// loadConfig loads and validates the full configuration.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	opts, err := configOptions(cmd)
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(opts)
}

// loadDatabaseConfig loads the configuration for commands that only talk to
// the database, so they run without token secrets.
func loadDatabaseConfig(cmd *cobra.Command) (config.Config, error) {
	opts, err := configOptions(cmd)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.LoadUnvalidated(opts)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.Database.URL == "" {
		return config.Config{}, oops.Code("CONFIG_INVALID").
			Errorf("database.url is required (or set ACCOUNTD_DATABASE_URL)")
	}
	return cfg, nil
}
