// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package store defines the local relational store contract the
// materializer writes through, plus a Postgres implementation
// (internal/store/postgres) and an in-memory one for tests
// (internal/store/memory).
package store

import (
	"context"
	"errors"

	"github.com/spacewire/sync/internal/ids"
)

// ErrStreamHasNoCursor is returned by Cursor when a stream has never had
// an event applied.
var ErrStreamHasNoCursor = errors.New("stream has no cursor yet")

// Mutation is one upsert-or-delete produced by a codec transform, keyed
// by a primary key so that applying the same mutation twice is a no-op.
// Table names and column names are trusted values from the codec
// registry, never user input, so Apply is free to interpolate them into
// generated SQL.
//
// Set is nil for a delete (the row at PK is removed; a tombstone is
// written as an ordinary upsert of a deleted_at column instead);
// otherwise it holds the columns to upsert, keyed by column name.
type Mutation struct {
	Table string
	PK    map[string]any
	Set   map[string]any
}

// LiveResult is the single row a LiveQuery read returns.
type LiveResult struct {
	Columns []string
	Values  []any
}

// Store is the local SQL-like interface the materializer writes through
// and UI-facing live queries read through.
type Store interface {
	// InTransaction runs fn inside one transaction scoped to the batch
	// being materialized. If fn returns a non-nil error the whole
	// transaction rolls back.
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// InSavepoint runs fn inside a nested transaction (a SQL savepoint)
	// of the transaction started by the enclosing InTransaction call.
	// A failure inside fn rolls back only the savepoint; the outer
	// transaction is unaffected and the caller may continue applying
	// further mutations.
	InSavepoint(ctx context.Context, fn func(ctx context.Context) error) error

	// HasEvent reports whether (stream, event) has already been recorded
	// in event_log, i.e. whether a dependency has been satisfied.
	HasEvent(ctx context.Context, stream ids.StreamId, event ids.EventId) (bool, error)

	// RecordEvent inserts (stream, event, index) into event_log.
	// inserted is false when the row already existed (duplicate replay).
	RecordEvent(ctx context.Context, stream ids.StreamId, event ids.EventId, idx ids.StreamIndex) (inserted bool, err error)

	// Apply executes one mutation.
	Apply(ctx context.Context, m Mutation) error

	// Cursor returns the highest durably-applied StreamIndex for stream.
	// Returns ErrStreamHasNoCursor if nothing has ever been applied.
	Cursor(ctx context.Context, stream ids.StreamId) (ids.StreamIndex, error)

	// AdvanceCursor sets the cursor to idx if idx is greater than the
	// current value. It never regresses the cursor, so replaying an
	// older batch after a crash is always safe.
	AdvanceCursor(ctx context.Context, stream ids.StreamId, idx ids.StreamIndex) error

	// LiveQuery executes a read-only statement against the materialized
	// tables and returns its first row. It is the UI-facing read port
	// described by the spec's "statement + result that reflects every
	// change" requirement; not used by the materializer itself.
	LiveQuery(ctx context.Context, stmt string, args ...any) (LiveResult, error)

	// ListJoinedSpaces returns the streams joined_spaces materialized for
	// user, read at Supervisor startup to decide which spaces to
	// subscribe. A dedicated method rather than LiveQuery since that
	// port is deliberately single-row.
	ListJoinedSpaces(ctx context.Context, user ids.UserId) ([]ids.StreamId, error)
}

// ErrLiveQueryUnsupported is returned by store implementations that
// cannot execute arbitrary read statements (internal/store/memory).
var ErrLiveQueryUnsupported = errors.New("live query not supported by this store")
