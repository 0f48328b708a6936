// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package streamconn manages one live connection to a remote stream:
// module (schema) negotiation, backfill-then-live-tail subscription, and
// lazy room scrollback. One ConnectedStream exists per subscribed space,
// held by internal/client.Supervisor.
package streamconn

import (
	"context"
	"sync"

	"github.com/spacewire/sync/internal/core"
	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/transport"
)

// BatchMeta accompanies every callback invocation from Subscribe or
// SubscribeMetadata: whether this batch is still catch-up backfill or
// has reached the live tail, plus the batch/stream identity the
// mailbox needs to order and route it.
type BatchMeta struct {
	IsBackfill bool
	BatchId    ids.BatchId
	StreamId   ids.StreamId
}

// BatchCallback receives one page of decoded events as Subscribe or
// SubscribeMetadata delivers them.
type BatchCallback func(events []core.Event, meta BatchMeta) error

// Subscription is the handle Subscribe/SubscribeMetadata return;
// Unsubscribe is idempotent (a second call returns
// transport.ErrAlreadyUnsubscribed).
type Subscription interface {
	Unsubscribe() error
}

// ConnectedStream is the client-side handle to one remote stream: module
// negotiation, the backfill-to-live subscription, and lazy room reads.
type ConnectedStream interface {
	Connect(ctx context.Context, module ModuleRef) error
	Create(ctx context.Context, module ModuleRef, admin ids.UserId) error
	Subscribe(ctx context.Context, cb BatchCallback, start ids.StreamIndex) (Subscription, error)
	SubscribeMetadata(ctx context.Context, cb BatchCallback, start ids.StreamIndex) (Subscription, error)
	Unsubscribe() error
	FetchRoom(ctx context.Context, room ids.RoomId, limit int, before *ids.StreamIndex) ([]core.Event, error)
	LazyLoadRoom(ctx context.Context, room ids.RoomId, limit int, before *ids.StreamIndex) ([]core.Event, error)
	SendEvent(ctx context.Context, ev core.Event) error
}

// ModuleRef re-exports transport.ModuleRef so callers of this package
// never need to import internal/transport directly for it.
type ModuleRef = transport.ModuleRef

// Conn is the concrete ConnectedStream, backed by one
// transport.RemoteEventServer and one remote stream id.
type Conn struct {
	server   transport.RemoteEventServer
	streamID ids.StreamId
	pin      PinState

	mu           sync.Mutex
	sub          Subscription
	backfill     *backfillStatus
	lazyRoomCur  map[ids.RoomId]ids.StreamIndex
}

// New returns a ConnectedStream for stream, backed by server. pin
// selects which part of the stream's history is materialized; only
// SpacePin is implemented today (see RoomsPin).
func New(server transport.RemoteEventServer, stream ids.StreamId, pin PinState) *Conn {
	return &Conn{
		server:      server,
		streamID:    stream,
		pin:         pin,
		backfill:    newBackfillStatus(),
		lazyRoomCur: make(map[ids.RoomId]ids.StreamIndex),
	}
}

// StreamId returns the remote stream this connection is bound to.
func (c *Conn) StreamId() ids.StreamId { return c.streamID }

// Connect negotiates the schema module the stream should run. The
// attempt is mandatory but its failure is tolerated (logged as a
// warning) when the caller lacks admin rights to upgrade an
// already-provisioned stream -- see ensureModuleWithRetry.
func (c *Conn) Connect(ctx context.Context, module ModuleRef) error {
	return ensureModuleWithRetry(ctx, c.server, c.streamID, module)
}

// Create provisions a brand-new remote stream running module and binds
// this Conn to it. admin is not passed to the server, and Create sends
// no event to the new stream.
func (c *Conn) Create(ctx context.Context, module ModuleRef, admin ids.UserId) error {
	stream, err := c.server.CreateStream(ctx, module)
	if err != nil {
		return err
	}
	c.streamID = stream
	return nil
}

// SendEvent forwards ev's payload to the remote stream.
func (c *Conn) SendEvent(ctx context.Context, ev core.Event) error {
	return c.server.SendEvent(ctx, c.streamID, ev.Body)
}

// Unsubscribe cancels the active subscription, if any. Idempotent.
func (c *Conn) Unsubscribe() error {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub == nil {
		return transport.ErrAlreadyUnsubscribed
	}
	return sub.Unsubscribe()
}
