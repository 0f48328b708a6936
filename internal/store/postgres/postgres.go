// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package postgres implements store.Store on top of a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/store"
)

type txKey struct{}

// Store implements store.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by the given DSN. Accepts postgres:// or
// postgresql:// URLs (the same forms store.NewMigrator accepts).
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").Wrap(err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

// Pool exposes the underlying connection pool so sibling adapters
// (internal/identity/postgres) can share it instead of opening a second
// pool against the same database.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// InTransaction begins a transaction, stores it in ctx, and calls fn.
// Committed on nil return, rolled back otherwise. Grounded on the
// teacher's Transactor.InTransaction (internal/world/postgres/transactor.go).
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

// InSavepoint runs fn inside a nested transaction of the tx already in
// ctx (pgx maps a Begin call on a pgx.Tx to SAVEPOINT/RELEASE SAVEPOINT).
// Used by the materializer to apply one event's statements without
// aborting the rest of the batch on failure.
func (s *Store) InSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	outer, ok := s.txFromContext(ctx)
	if !ok {
		return oops.Code("SAVEPOINT_WITHOUT_TX").Errorf("InSavepoint called outside InTransaction")
	}
	sp, err := outer.Begin(ctx)
	if err != nil {
		return oops.Code("SAVEPOINT_BEGIN_FAILED").Wrap(err)
	}
	defer sp.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	spCtx := context.WithValue(ctx, txKey{}, sp)
	if err := fn(spCtx); err != nil {
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return oops.Code("SAVEPOINT_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, sql string, args ...any) error {
	if tx, ok := s.txFromContext(ctx); ok {
		_, err := tx.Exec(ctx, sql, args...)
		return err
	}
	_, err := s.pool.Exec(ctx, sql, args...)
	return err
}

func (s *Store) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx, ok := s.txFromContext(ctx); ok {
		return tx.QueryRow(ctx, sql, args...)
	}
	return s.pool.QueryRow(ctx, sql, args...)
}

// HasEvent reports whether (stream, event) is already recorded.
func (s *Store) HasEvent(ctx context.Context, stream ids.StreamId, event ids.EventId) (bool, error) {
	var exists bool
	err := s.queryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM event_log WHERE stream_id = $1 AND event_id = $2)`,
		string(stream), event.String(),
	).Scan(&exists)
	if err != nil {
		return false, oops.Code("STORE_QUERY_FAILED").With("stream", stream).With("event", event.String()).Wrap(err)
	}
	return exists, nil
}

// RecordEvent inserts the (stream, event, index) row. inserted is false
// when the row already existed.
func (s *Store) RecordEvent(ctx context.Context, stream ids.StreamId, event ids.EventId, idx ids.StreamIndex) (bool, error) {
	tag, err := s.execReturningTag(ctx,
		`INSERT INTO event_log (stream_id, event_id, stream_index) VALUES ($1, $2, $3)
		 ON CONFLICT (stream_id, event_id) DO NOTHING`,
		string(stream), event.String(), int64(idx),
	)
	if err != nil {
		return false, oops.Code("STORE_RECORD_EVENT_FAILED").With("stream", stream).With("event", event.String()).Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) execReturningTag(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx, ok := s.txFromContext(ctx); ok {
		return tx.Exec(ctx, sql, args...)
	}
	return s.pool.Exec(ctx, sql, args...)
}

// Apply executes one upsert or delete, generating SQL from the
// mutation's table/PK/Set so that codec transforms never construct SQL
// themselves.
func (s *Store) Apply(ctx context.Context, m store.Mutation) error {
	sql, args, err := mutationSQL(m)
	if err != nil {
		return oops.Code("STORE_STATEMENT_INVALID").With("table", m.Table).Wrap(err)
	}
	if err := s.exec(ctx, sql, args...); err != nil {
		return oops.Code("STORE_STATEMENT_FAILED").With("table", m.Table).With("stmt", truncate(sql, 200)).Wrap(err)
	}
	return nil
}

// mutationSQL renders a Mutation into a parameterized statement.
// Delete: "DELETE FROM table WHERE pk1 = $1 AND pk2 = $2".
// Upsert: "INSERT INTO table (pk..., set...) VALUES (...)
//          ON CONFLICT (pk...) DO UPDATE SET set... = EXCLUDED.set...".
func mutationSQL(m store.Mutation) (string, []any, error) {
	if m.Table == "" {
		return "", nil, fmt.Errorf("mutation missing table name")
	}
	if len(m.PK) == 0 {
		return "", nil, fmt.Errorf("mutation on table %q missing primary key", m.Table)
	}
	pkCols := sortedKeys(m.PK)

	if m.Set == nil {
		var where []string
		args := make([]any, 0, len(pkCols))
		for i, col := range pkCols {
			where = append(where, fmt.Sprintf("%s = $%d", col, i+1))
			args = append(args, m.PK[col])
		}
		sql := fmt.Sprintf("DELETE FROM %s WHERE %s", m.Table, strings.Join(where, " AND "))
		return sql, args, nil
	}

	setCols := sortedKeys(m.Set)
	allCols := append(append([]string{}, pkCols...), setCols...)
	args := make([]any, 0, len(allCols))
	placeholders := make([]string, 0, len(allCols))
	for i, col := range allCols {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		if i < len(pkCols) {
			args = append(args, m.PK[col])
		} else {
			args = append(args, m.Set[col])
		}
	}

	var conflictSet []string
	for _, col := range setCols {
		conflictSet = append(conflictSet, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		m.Table,
		strings.Join(allCols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(pkCols, ", "),
		strings.Join(conflictSet, ", "),
	)
	return sql, args, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Cursor returns the current committed StreamIndex for stream.
func (s *Store) Cursor(ctx context.Context, stream ids.StreamId) (ids.StreamIndex, error) {
	var idx int64
	err := s.queryRow(ctx, `SELECT stream_index FROM stream_cursor WHERE stream_id = $1`, string(stream)).Scan(&idx)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, store.ErrStreamHasNoCursor
	}
	if err != nil {
		return 0, oops.Code("STORE_CURSOR_QUERY_FAILED").With("stream", stream).Wrap(err)
	}
	return ids.StreamIndex(idx), nil
}

// AdvanceCursor sets the cursor to idx, never regressing it.
func (s *Store) AdvanceCursor(ctx context.Context, stream ids.StreamId, idx ids.StreamIndex) error {
	err := s.exec(ctx,
		`INSERT INTO stream_cursor (stream_id, stream_index) VALUES ($1, $2)
		 ON CONFLICT (stream_id) DO UPDATE SET stream_index = GREATEST(stream_cursor.stream_index, EXCLUDED.stream_index)`,
		string(stream), int64(idx),
	)
	if err != nil {
		return oops.Code("STORE_CURSOR_ADVANCE_FAILED").With("stream", stream).With("index", idx).Wrap(err)
	}
	return nil
}

// LiveQuery executes stmt and returns its first row. Despite the name,
// this is a single read, not a subscription: callers that want to react
// to every change re-issue it, typically from a Postgres LISTEN/NOTIFY
// wakeup on the table the statement reads (wired at the caller, not
// here, since the trigger channel is per-table and this method is
// statement-agnostic).
func (s *Store) LiveQuery(ctx context.Context, stmt string, args ...any) (store.LiveResult, error) {
	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return store.LiveResult{}, oops.Code("STORE_LIVE_QUERY_FAILED").With("stmt", truncate(stmt, 200)).Wrap(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = string(f.Name)
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return store.LiveResult{}, oops.Code("STORE_LIVE_QUERY_FAILED").Wrap(err)
		}
		return store.LiveResult{Columns: columns}, nil
	}

	values, err := rows.Values()
	if err != nil {
		return store.LiveResult{}, oops.Code("STORE_LIVE_QUERY_FAILED").Wrap(err)
	}
	return store.LiveResult{Columns: columns, Values: values}, nil
}

// ListJoinedSpaces returns every stream joined_spaces records for user.
func (s *Store) ListJoinedSpaces(ctx context.Context, user ids.UserId) ([]ids.StreamId, error) {
	rows, err := s.pool.Query(ctx, `SELECT stream_id FROM joined_spaces WHERE user_id = $1 ORDER BY stream_id`, string(user))
	if err != nil {
		return nil, oops.Code("STORE_LIST_JOINED_FAILED").With("user", user).Wrap(err)
	}
	defer rows.Close()

	var out []ids.StreamId
	for rows.Next() {
		var streamID string
		if err := rows.Scan(&streamID); err != nil {
			return nil, oops.Code("STORE_LIST_JOINED_FAILED").With("user", user).Wrap(err)
		}
		out = append(out, ids.StreamId(streamID))
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("STORE_LIST_JOINED_FAILED").With("user", user).Wrap(err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
