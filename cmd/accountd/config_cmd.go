// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/accountd/accountd/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and report the first problem",
		Long: `Load defaults, the --config file, environment secrets and flags exactly
as serve does, then validate the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmd.Printf("Configuration OK (listen %s, mail driver %s, %d access rules)\n",
				cfg.HTTP.Addr, cfg.Mail.Driver, len(cfg.Access.Rules))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for configuration files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		},
	})

	return cmd
}
