// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/spacewire/sync/internal/config"
	"github.com/spacewire/sync/internal/logging"
)

// Global flags available to all subcommands.
var configPath string

// NewRootCmd creates the root command for the spacewire CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spacewire",
		Short: "spacewire - client-side sync for a federated chat space",
		Long: `spacewire subscribes to a user's personal stream and joined
spaces, materializing their event logs into a local store.`,
		// Loaded once here rather than left to each subcommand's own
		// config.Load call so the trace-aware default logger is installed
		// before any subcommand logs anything.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			logging.SetDefault("spacewire", version, cfg.LogFormat, cfg.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (YAML)")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newConnectCmd())
	cmd.AddCommand(newSendCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}
