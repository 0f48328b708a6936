// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacewire/sync/internal/ids"
)

type wireEnvelope struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

// newSendCmd creates the send subcommand: publishes one event to a
// stream as the wire envelope internal/codec.JSONDecoder expects.
func newSendCmd() *cobra.Command {
	var deps CommonDeps

	cmd := &cobra.Command{
		Use:   "send <streamId> <type> <json>",
		Short: "Publish one event to a stream",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, deps, args[0], args[1], args[2])
		},
	}
	return cmd
}

func runSend(cmd *cobra.Command, deps CommonDeps, streamID, eventType, body string) error {
	user, err := requireSession(deps)
	if err != nil {
		return err
	}

	if !json.Valid([]byte(body)) {
		return fmt.Errorf("send: body is not valid JSON")
	}

	payload, err := json.Marshal(wireEnvelope{Type: eventType, Body: json.RawMessage(body)})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	server, err := deps.serverFactory()(ctx, user)
	if err != nil {
		return err
	}

	if err := server.SendEvent(ctx, ids.StreamId(streamID), payload); err != nil {
		return err
	}
	cmd.Println("sent")
	return nil
}
