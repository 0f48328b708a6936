// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package transport declares the contract for the remote event server --
// the out-of-scope collaborator that owns durable per-stream logs,
// authentication, and module (schema) management. internal/transport/fake
// provides the in-memory implementation every other package tests
// against; a real implementation (HTTP/gRPC/websocket) is outside this
// module's scope, matching the spec's boundary.
package transport

import (
	"context"
	"errors"

	"github.com/spacewire/sync/internal/ids"
)

// Sentinel errors a RemoteEventServer implementation tags its failures
// with via oops.Code(...), so callers branch on identity, never on
// substring-matched messages (see internal/identity.Ensure).
var (
	ErrStreamNotFound      = errors.New("stream not found")
	ErrModuleNotFound      = errors.New("module not found")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrAlreadyUnsubscribed = errors.New("already unsubscribed")
)

// TokenProvider supplies the credential Authenticate exchanges for a
// Handshake. An interface rather than a bare string so real
// implementations can refresh short-lived tokens transparently.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Handshake is the result of a successful Authenticate call.
type Handshake struct {
	User    ids.UserId
	Expires int64 // unix seconds; 0 means no expiry
}

// ModuleRef identifies a schema module a stream is running. Opaque to
// this module; the remote server resolves it.
type ModuleRef string

// ModuleDef is the payload UploadModule sends to register a new module
// version. Body is opaque (server-defined schema format).
type ModuleDef struct {
	Ref  ModuleRef
	Body []byte
}

// Row is one event as stored on the remote log: its StreamIndex, the
// server-attested author, and the opaque payload the codec decodes.
type Row struct {
	Idx     ids.StreamIndex
	User    ids.UserId
	Payload []byte
}

// Query selects a range of rows from a stream.
type Query struct {
	After ids.StreamIndex // exclusive lower bound; ZeroIndex means from the start
	Limit int             // 0 means server default
}

// RowCallback receives rows as SubscribeEvents delivers them, along with
// whether more backfill pages remain (HasMore=false flips the
// subscription from backfill to live tail).
type RowCallback func(rows []Row, hasMore bool) error

// Unsubscriber cancels a subscription started by SubscribeEvents.
// Idempotent: a second Unsubscribe call returns ErrAlreadyUnsubscribed
// rather than panicking.
type Unsubscriber interface {
	Unsubscribe() error
}

// RemoteEventServer is the contract the sync engine holds the remote
// service to. Every method is expected to be safe for concurrent use by
// one ConnectedStream per stream id.
type RemoteEventServer interface {
	Authenticate(ctx context.Context, tp TokenProvider) (Handshake, error)
	CreateStream(ctx context.Context, module ModuleRef) (ids.StreamId, error)
	StreamInfo(ctx context.Context, stream ids.StreamId) (ModuleRef, error)
	HasModule(ctx context.Context, cid ModuleRef) (bool, error)
	UploadModule(ctx context.Context, def ModuleDef) error
	UpdateModule(ctx context.Context, stream ids.StreamId, cid ModuleRef) error
	SubscribeEvents(ctx context.Context, stream ids.StreamId, q Query, cb RowCallback) (Unsubscriber, error)
	Query(ctx context.Context, stream ids.StreamId, q Query) ([]Row, error)
	SendEvent(ctx context.Context, stream ids.StreamId, payload []byte) error
	SendEvents(ctx context.Context, stream ids.StreamId, payloads [][]byte) error
	Disconnected() <-chan error
}
