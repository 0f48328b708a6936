// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package main

import (
	"github.com/spf13/cobra"
)

// newStatusCmd creates the status subcommand. There is no background
// daemon process in this CLI's architecture (connect blocks in the
// foreground for the lifetime of the connection, unlike the teacher's
// control-socket-backed gateway/core processes), so status only reports
// the persisted login session rather than a live connection's state.
func newStatusCmd() *cobra.Command {
	var deps CommonDeps

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the persisted login session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, deps)
		},
	}
	return cmd
}

func runStatus(cmd *cobra.Command, deps CommonDeps) error {
	store, err := deps.sessionStoreFactory()()
	if err != nil {
		return err
	}

	user, ok, err := store.Current()
	if err != nil {
		return err
	}
	if !ok {
		cmd.Println("not logged in")
		return nil
	}
	cmd.Printf("logged in as %s\n", user)
	return nil
}
