// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package main

import (
	"context"

	"github.com/spacewire/sync/internal/client"
	"github.com/spacewire/sync/internal/config"
	identitymemory "github.com/spacewire/sync/internal/identity/memory"
	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/store/memory"
	"github.com/spacewire/sync/internal/transport"
	"github.com/spacewire/sync/internal/transport/fake"
)

// defaultModule is the schema module every stream this CLI creates is
// bound to. A real deployment would resolve this from server-side
// config; the CLI hardcodes the one module this module's in-process
// transport understands.
const defaultModule transport.ModuleRef = "space.v1"

// CommonDeps contains injectable dependencies shared by multiple
// commands. Nil fields fall back to their defaults, matching the
// teacher's CommonDeps "Default: <func>" style.
type CommonDeps struct {
	// SessionStoreFactory opens the persisted login-session store.
	// Default: config.NewSessionStore
	SessionStoreFactory func() (*config.SessionStore, error)

	// ServerFactory builds the remote event server this process talks
	// to, for the given authenticated user. There is no real wire
	// transport in this module's scope (see internal/transport's
	// package doc), so every command gets a fresh in-process fake.Server
	// with defaultModule pre-uploaded -- mirroring cmd/holomush/main.go's
	// own pattern of wiring a fresh in-memory store directly in its
	// entry point.
	ServerFactory func(ctx context.Context, user string) (transport.RemoteEventServer, error)
}

func (d *CommonDeps) sessionStoreFactory() func() (*config.SessionStore, error) {
	if d.SessionStoreFactory != nil {
		return d.SessionStoreFactory
	}
	return config.NewSessionStore
}

func (d *CommonDeps) serverFactory() func(ctx context.Context, user string) (transport.RemoteEventServer, error) {
	if d.ServerFactory != nil {
		return d.ServerFactory
	}
	return func(ctx context.Context, user string) (transport.RemoteEventServer, error) {
		srv := fake.New(200)
		srv.User = ids.UserId(user)
		if err := srv.UploadModule(ctx, transport.ModuleDef{Ref: defaultModule}); err != nil {
			return nil, err
		}
		return srv, nil
	}
}

// buildSupervisor wires a Supervisor for user against deps' server and a
// fresh in-memory local store -- the postgres store is the production
// adapter (internal/store/postgres) but a CLI demo has no database to
// point at without further configuration the spec leaves out of scope.
func buildSupervisor(ctx context.Context, deps CommonDeps, user string) (*client.Supervisor, error) {
	server, err := deps.serverFactory()(ctx, user)
	if err != nil {
		return nil, err
	}

	st := memory.New()
	profiles := identitymemory.New()

	return client.New(
		clientUserID(user),
		client.Deps{
			Server:   server,
			Store:    st,
			Tokens:   staticTokenProvider{},
			Module:   defaultModule,
			Profiles: profiles,
		},
	), nil
}
