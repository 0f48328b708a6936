// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package memory provides an in-process store.Store for unit tests,
// grounded on the teacher's MemoryEventStore (internal/core/store.go).
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/store"
)

type eventKey struct {
	stream ids.StreamId
	event  ids.EventId
}

// Store is an in-memory store.Store. Not safe across processes; intended
// for unit and component tests only.
type Store struct {
	mu          sync.Mutex
	events      map[eventKey]struct{}
	cursors     map[ids.StreamId]ids.StreamIndex
	tables      map[string]map[string]map[string]any // table -> pk -> row
	txDepth     int
	pending     []func()   // applied on outer commit; discarded on rollback
	provisional []eventKey // event keys recorded but not yet committed
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		events:  make(map[eventKey]struct{}),
		cursors: make(map[ids.StreamId]ids.StreamIndex),
		tables:  make(map[string]map[string]map[string]any),
	}
}

// InTransaction runs fn, buffering table mutations so that an error
// aborts all of them -- the in-memory analogue of a SQL ROLLBACK.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	s.txDepth++
	if s.txDepth == 1 {
		s.pending = nil
		s.provisional = nil
	}
	s.mu.Unlock()

	err := fn(ctx)

	s.mu.Lock()
	s.txDepth--
	var toApply []func()
	if s.txDepth == 0 {
		if err == nil {
			toApply = s.pending
		}
		s.pending = nil
		s.provisional = nil
	}
	s.mu.Unlock()

	for _, apply := range toApply {
		apply()
	}
	return err
}

// InSavepoint runs fn; on error, any mutations it recorded are dropped
// without affecting the enclosing transaction's already-recorded ones.
func (s *Store) InSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	pendingMark := len(s.pending)
	provisionalMark := len(s.provisional)
	s.mu.Unlock()

	err := fn(ctx)

	if err != nil {
		s.mu.Lock()
		s.pending = s.pending[:pendingMark]
		s.provisional = s.provisional[:provisionalMark]
		s.mu.Unlock()
	}
	return err
}

// HasEvent reports whether (stream, event) has been recorded.
func (s *Store) HasEvent(_ context.Context, stream ids.StreamId, event ids.EventId) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.events[eventKey{stream, event}]
	return ok, nil
}

// RecordEvent records (stream, event, index); inserted is false on duplicate.
// The insertion is only made visible to HasEvent/RecordEvent once the
// enclosing transaction commits, matching Postgres: a duplicate within the
// same batch is detected via provisional, not via the committed set.
func (s *Store) RecordEvent(_ context.Context, stream ids.StreamId, event ids.EventId, _ ids.StreamIndex) (bool, error) {
	key := eventKey{stream, event}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[key]; ok {
		return false, nil
	}
	for _, k := range s.provisional {
		if k == key {
			return false, nil
		}
	}
	s.provisional = append(s.provisional, key)
	s.pending = append(s.pending, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.events[key] = struct{}{}
	})
	return true, nil
}

// Apply records a table mutation. Row() keys materialized rows by the
// primary key rendered via rowKey, so composite PKs (e.g. read_markers'
// (user_id, stream_id, room_id)) work the same as single-column ones.
func (s *Store) Apply(_ context.Context, m store.Mutation) error {
	if m.Table == "" {
		return fmt.Errorf("mutation missing table name")
	}
	if len(m.PK) == 0 {
		return fmt.Errorf("mutation on table %q missing primary key", m.Table)
	}
	table := m.Table
	pk := rowKey(m.PK)
	set := m.Set

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		rows, ok := s.tables[table]
		if !ok {
			rows = make(map[string]map[string]any)
			s.tables[table] = rows
		}
		if set == nil {
			delete(rows, pk)
			return
		}
		row, ok := rows[pk]
		if !ok {
			row = make(map[string]any, len(m.PK)+len(set))
			rows[pk] = row
		}
		for k, v := range m.PK {
			row[k] = v
		}
		for k, v := range set {
			row[k] = v
		}
	})
	return nil
}

// rowKey renders a primary-key map into a stable lookup key by sorting
// column names before joining, so the same PK always maps to the same
// key regardless of map iteration order.
func rowKey(pk map[string]any) string {
	cols := make([]string, 0, len(pk))
	for k := range pk {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		parts = append(parts, fmt.Sprintf("%s=%v", col, pk[col]))
	}
	return strings.Join(parts, "|")
}

// Row returns a materialized row for inspection in tests, keyed by the
// same primary-key map a Mutation would carry.
func (s *Store) Row(table string, pk map[string]any) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tables[table]
	if !ok {
		return nil, false
	}
	row, ok := rows[rowKey(pk)]
	return row, ok
}

// Cursor returns the current committed StreamIndex for stream.
func (s *Store) Cursor(_ context.Context, stream ids.StreamId) (ids.StreamIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.cursors[stream]
	if !ok {
		return 0, store.ErrStreamHasNoCursor
	}
	return idx, nil
}

// LiveQuery always fails: the in-memory store has no SQL engine to
// execute arbitrary statements against. Tests that need to inspect
// materialized state use Row instead.
func (s *Store) LiveQuery(_ context.Context, _ string, _ ...any) (store.LiveResult, error) {
	return store.LiveResult{}, store.ErrLiveQueryUnsupported
}

// ListJoinedSpaces scans the joined_spaces table for rows matching user,
// sorted by stream id for deterministic test output.
func (s *Store) ListJoinedSpaces(_ context.Context, user ids.UserId) ([]ids.StreamId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tables["joined_spaces"]
	if !ok {
		return nil, nil
	}
	var out []ids.StreamId
	for _, row := range rows {
		if fmt.Sprintf("%v", row["user_id"]) != string(user) {
			continue
		}
		out = append(out, ids.StreamId(fmt.Sprintf("%v", row["stream_id"])))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// AdvanceCursor sets the cursor to idx, never regressing it.
func (s *Store) AdvanceCursor(_ context.Context, stream ids.StreamId, idx ids.StreamIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.cursors[stream]; !ok || idx > cur {
			s.cursors[stream] = idx
		}
	})
	return nil
}

