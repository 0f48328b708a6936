// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacewire/sync/internal/client"
	"github.com/spacewire/sync/internal/codec"
	"github.com/spacewire/sync/internal/config"
	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/materializer"
	"github.com/spacewire/sync/internal/observability"
	"github.com/spacewire/sync/internal/transport/fake"
)

// newConnectCmd creates the connect subcommand: starts the Supervisor for
// the logged-in user, joins each named space, and runs the materializer
// until interrupted.
func newConnectCmd() *cobra.Command {
	var deps CommonDeps

	cmd := &cobra.Command{
		Use:   "connect [spaceId...]",
		Short: "Connect the personal stream and any named spaces",
		Long: `connect authenticates the logged-in user, subscribes their
personal stream, then joins each named space. Since this module stops at
the RemoteEventServer contract (no real wire protocol), each invocation
talks to a fresh in-process server -- space ids from a prior run are not
remembered across processes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd, deps, args)
		},
	}
	return cmd
}

func runConnect(cmd *cobra.Command, deps CommonDeps, spaceIds []string) error {
	user, err := requireSession(deps)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup, err := buildSupervisor(ctx, deps, user)
	if err != nil {
		return err
	}
	defer sup.Close()

	if fakeSrv, ok := sup.Server().(*fake.Server); ok {
		for _, spaceID := range spaceIds {
			fakeSrv.EnsureStream(ids.StreamId(spaceID), defaultModule)
		}
	}

	if err := sup.Start(ctx); err != nil {
		return err
	}
	for _, spaceID := range spaceIds {
		if err := sup.Join(ctx, ids.StreamId(spaceID)); err != nil {
			return err
		}
	}

	m := materializer.New(sup.LocalStore(), codec.Registry, codec.JSONDecoder{}, nil)
	worker := client.NewWorker(sup, m)

	if cfg.MetricsAddr != "" {
		obsSrv := observability.NewServer(cfg.MetricsAddr, func() bool {
			return sup.Status().Current() == client.StatusOnline
		})
		errCh, err := obsSrv.Start()
		if err != nil {
			return err
		}
		go func() {
			for err := range errCh {
				if err != nil {
					slog.Error("observability server failed", "error", err)
				}
			}
		}()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			_ = obsSrv.Stop(stopCtx)
		}()
		worker.WithMetrics(obsSrv.Metrics())
	}

	worker.Run(ctx)

	cmd.Printf("connected as %s, status=%s, reconnect window %s-%s\n",
		user, sup.Status().Current(), cfg.ReconnectMinBackoff, cfg.ReconnectMaxBackoff)

	<-ctx.Done()
	return nil
}
