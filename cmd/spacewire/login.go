// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacewire/sync/internal/ids"
)

// newLoginCmd creates the login subcommand. A real login hands off to an
// identity-provider URL and polls for callback completion; that flow is
// out of this module's scope (spec's identity provider is external), so
// login here just persists the requesting user id as the active session.
func newLoginCmd() *cobra.Command {
	var deps CommonDeps

	cmd := &cobra.Command{
		Use:   "login <userId>",
		Short: "Authenticate as userId and persist the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, deps, args[0])
		},
	}
	return cmd
}

func runLogin(cmd *cobra.Command, deps CommonDeps, user string) error {
	store, err := deps.sessionStoreFactory()()
	if err != nil {
		return err
	}
	if err := store.Login(ids.UserId(user)); err != nil {
		return err
	}
	cmd.Println(fmt.Sprintf("logged in as %s", user))
	return nil
}

// requireSession loads the currently logged-in user, instructing the
// caller to run login first if nobody is.
func requireSession(deps CommonDeps) (string, error) {
	store, err := deps.sessionStoreFactory()()
	if err != nil {
		return "", err
	}
	user, ok, err := store.Current()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("not logged in; run `spacewire login <userId>` first")
	}
	return string(user), nil
}
