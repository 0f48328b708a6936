// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package client is the top-level object a host application drives: one
// Supervisor per authenticated session, owning the personal stream, every
// joined space's ConnectedStream, and the mailbox/materializer pipeline
// that feeds the local store. Grounded on the teacher's
// internal/core/session.go SessionManager (stream bookkeeping under a
// mutex) and cmd/holomush/core.go's runCoreWithDeps (injectable-deps
// startup sequencing).
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/spacewire/sync/internal/core"
	"github.com/spacewire/sync/internal/identity"
	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/mailbox"
	"github.com/spacewire/sync/internal/store"
	"github.com/spacewire/sync/internal/streamconn"
	"github.com/spacewire/sync/internal/transport"
)

var tracer = otel.Tracer("spacewire/client")

// Deps are Supervisor's swappable collaborators. Nil fields fall back to
// the package defaults, matching the teacher's CommonDeps/CoreDeps
// "Default: <func>" style (cmd/holomush/deps.go) rather than requiring
// every test to hand-construct every collaborator.
type Deps struct {
	Server   transport.RemoteEventServer
	Store    store.Store
	Tokens   transport.TokenProvider
	Module   streamconn.ModuleRef
	Profiles identity.ProfileStore
	Fetcher  identity.ProfileFetcher // nil when no registered type needs it

	// ConnFactory builds the ConnectedStream for a given stream id.
	// Default: streamconn.New wrapped to return the ConnectedStream
	// interface.
	ConnFactory func(server transport.RemoteEventServer, stream ids.StreamId, pin streamconn.PinState) streamconn.ConnectedStream
}

func (d *Deps) connFactory() func(transport.RemoteEventServer, ids.StreamId, streamconn.PinState) streamconn.ConnectedStream {
	if d.ConnFactory != nil {
		return d.ConnFactory
	}
	return func(server transport.RemoteEventServer, stream ids.StreamId, pin streamconn.PinState) streamconn.ConnectedStream {
		return streamconn.New(server, stream, pin)
	}
}

// Supervisor is the client-side process supervising one authenticated
// session: it holds the personal stream, every joined space's connection,
// and reports connectivity through status.
type Supervisor struct {
	session *identity.Session
	server  transport.RemoteEventServer
	store   store.Store
	deps    Deps

	personal   streamconn.ConnectedStream
	personalID ids.StreamId

	mu      sync.Mutex
	streams map[ids.StreamId]streamconn.ConnectedStream

	mailbox mailbox.Mailbox
	status  *StatusBroadcaster
}

// New constructs a Supervisor for user, unauthenticated and unstarted
// until Start runs the full handshake/subscribe sequence.
func New(user ids.UserId, deps Deps) *Supervisor {
	return &Supervisor{
		session: &identity.Session{User: user},
		server:  deps.Server,
		store:   deps.Store,
		deps:    deps,
		streams: make(map[ids.StreamId]streamconn.ConnectedStream),
		mailbox: mailbox.New(),
		status:  NewStatusBroadcaster(),
	}
}

// Status returns the broadcaster subscribers watch for connectivity
// transitions.
func (s *Supervisor) Status() *StatusBroadcaster { return s.status }

// Mailbox exposes the Supervisor's mailbox for the Worker to drive a
// Materializer against.
func (s *Supervisor) Mailbox() mailbox.Mailbox { return s.mailbox }

// Server returns the remote event server this Supervisor authenticates
// against, for callers (the CLI boundary) that need to seed it out of
// band since this module stops at the RemoteEventServer contract.
func (s *Supervisor) Server() transport.RemoteEventServer { return s.server }

// LocalStore returns the local store Supervisor materializes into.
func (s *Supervisor) LocalStore() store.Store { return s.store }

// PersonalStreamId returns the personal stream id resolved during Start,
// or "" if Start has not completed. Worker uses this to recognize which
// materialization reports can carry a new join/leave to react to.
func (s *Supervisor) PersonalStreamId() ids.StreamId {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.personalID
}

// Start runs the client startup sequence: authenticate, ensure the
// personal stream, subscribe it at foreground priority and wait for
// backfill to catch up, read the joined-spaces list from the local
// store, subscribe every joined stream at background priority, then
// flip status to online. Mirrors spec §4.5 steps 1-7.
func (s *Supervisor) Start(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "supervisor.start",
		trace.WithAttributes(attribute.String("user.id", string(s.session.User))))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	handshake, authErr := s.server.Authenticate(ctx, s.deps.Tokens)
	if authErr != nil {
		return oops.Code("SUPERVISOR_AUTH_FAILED").Wrap(authErr)
	}
	if handshake.User != s.session.User {
		return oops.Code("SUPERVISOR_AUTH_MISMATCH").
			With("expected", s.session.User).
			With("got", handshake.User).
			Errorf("authenticated as a different user than requested")
	}

	personalID, err := identity.Ensure(ctx, identity.EnsureDeps{
		Profiles: s.deps.Profiles,
		CheckStream: func(ctx context.Context, stream ids.StreamId) error {
			_, err := s.server.StreamInfo(ctx, stream)
			return err
		},
		CreateStream: func(ctx context.Context, user ids.UserId) (ids.StreamId, error) {
			return s.server.CreateStream(ctx, s.deps.Module)
		},
	}, s.session.User)
	if err != nil {
		return oops.Code("SUPERVISOR_IDENTITY_FAILED").Wrap(err)
	}

	personal := s.deps.connFactory()(s.server, personalID, streamconn.SpacePin{})
	if err := personal.Connect(ctx, s.deps.Module); err != nil {
		return oops.Code("SUPERVISOR_PERSONAL_CONNECT_FAILED").Wrap(err)
	}
	s.mu.Lock()
	s.personal = personal
	s.personalID = personalID
	s.mu.Unlock()
	s.addStream(personalID, personal)

	if err := s.subscribeAndAwaitCatchUp(ctx, personal, personalID, core.PriorityForeground); err != nil {
		return oops.Code("SUPERVISOR_PERSONAL_SUBSCRIBE_FAILED").Wrap(err)
	}

	joined, err := s.store.ListJoinedSpaces(ctx, s.session.User)
	if err != nil {
		return oops.Code("SUPERVISOR_LIST_JOINED_FAILED").Wrap(err)
	}

	for _, streamID := range joined {
		conn := s.deps.connFactory()(s.server, streamID, streamconn.SpacePin{})
		if err := conn.Connect(ctx, s.deps.Module); err != nil {
			return oops.Code("SUPERVISOR_SPACE_CONNECT_FAILED").With("stream", streamID).Wrap(err)
		}
		s.addStream(streamID, conn)
		if _, err := conn.Subscribe(ctx, s.deliver(core.PriorityBackground), ids.ZeroIndex); err != nil {
			return oops.Code("SUPERVISOR_SPACE_SUBSCRIBE_FAILED").With("stream", streamID).Wrap(err)
		}
	}

	s.status.Set(StatusOnline)
	return nil
}

// deliver returns a streamconn.BatchCallback that pushes every delivered
// page onto the mailbox as a FetchedBatch while the connection is still
// replaying backfill, or a LiveBatch once it has reached the tail,
// always tagged with prio.
func (s *Supervisor) deliver(prio core.Priority) streamconn.BatchCallback {
	return func(events []core.Event, meta streamconn.BatchMeta) error {
		if meta.IsBackfill {
			s.mailbox.Push(core.FetchedBatch{
				BatchId: meta.BatchId, StreamId: meta.StreamId, Events: events, Prio: prio,
			}, prio)
		} else {
			s.mailbox.Push(core.LiveBatch{
				BatchId: meta.BatchId, StreamId: meta.StreamId, Events: events, Prio: prio,
			}, prio)
		}
		return nil
	}
}

// subscribeAndAwaitCatchUp subscribes conn and blocks until its first
// non-backfill page (the live tail) has been pushed to the mailbox, or
// ctx is cancelled. An empty stream with nothing to backfill reaches the
// tail on its very first (empty) callback.
func (s *Supervisor) subscribeAndAwaitCatchUp(ctx context.Context, conn streamconn.ConnectedStream, streamID ids.StreamId, prio core.Priority) error {
	caughtUp := make(chan struct{})
	var once sync.Once
	deliver := s.deliver(prio)
	cb := func(events []core.Event, meta streamconn.BatchMeta) error {
		if err := deliver(events, meta); err != nil {
			return err
		}
		if !meta.IsBackfill {
			once.Do(func() { close(caughtUp) })
		}
		return nil
	}

	if _, err := conn.Subscribe(ctx, cb, ids.ZeroIndex); err != nil {
		return err
	}

	select {
	case <-caughtUp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// addStream records conn under streamID, guarded so concurrent Join
// calls never race the startup loop.
func (s *Supervisor) addStream(streamID ids.StreamId, conn streamconn.ConnectedStream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[streamID] = conn
}

// Stream returns the ConnectedStream for streamID, if any.
func (s *Supervisor) Stream(streamID ids.StreamId) (streamconn.ConnectedStream, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.streams[streamID]
	return conn, ok
}

// Join subscribes a newly-joined space at foreground priority and blocks
// until it reaches the live tail. Every page of that subscription,
// backfill and live alike, is pushed at foreground priority.
func (s *Supervisor) Join(ctx context.Context, streamID ids.StreamId) error {
	conn := s.deps.connFactory()(s.server, streamID, streamconn.SpacePin{})
	if err := conn.Connect(ctx, s.deps.Module); err != nil {
		return oops.Code("SUPERVISOR_JOIN_CONNECT_FAILED").With("stream", streamID).Wrap(err)
	}
	s.addStream(streamID, conn)
	return s.subscribeAndAwaitCatchUp(ctx, conn, streamID, core.PriorityForeground)
}

// Leave unsubscribes and drops streamID's queued mailbox items. Local
// rows already materialized for the stream are retained, per spec §4.5.
func (s *Supervisor) Leave(streamID ids.StreamId) error {
	s.mu.Lock()
	conn, ok := s.streams[streamID]
	delete(s.streams, streamID)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("leave: stream %s is not joined", streamID)
	}
	s.mailbox.DropStream(streamID)
	return conn.Unsubscribe()
}

// Close unsubscribes every connected stream and closes the mailbox.
func (s *Supervisor) Close() {
	s.mu.Lock()
	streams := make([]streamconn.ConnectedStream, 0, len(s.streams))
	for _, conn := range s.streams {
		streams = append(streams, conn)
	}
	s.streams = make(map[ids.StreamId]streamconn.ConnectedStream)
	s.mu.Unlock()

	for _, conn := range streams {
		_ = conn.Unsubscribe()
	}
	s.mailbox.Close()
}
