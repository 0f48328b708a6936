// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package fake is an in-memory transport.RemoteEventServer used by every
// other package's tests, grounded on the teacher's MemoryEventStore
// (internal/core/store.go): an append-only slice per stream, generalized
// here to transport.Row (index + opaque payload) instead of typed
// core.Event, since decoding is the codec layer's job, not the
// transport's.
package fake

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/transport"
)

// Server is an in-memory RemoteEventServer. Safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	streams  map[ids.StreamId][]transport.Row
	modules  map[ids.StreamId]transport.ModuleRef
	uploaded map[transport.ModuleRef]transport.ModuleDef
	subs     map[ids.StreamId][]*subscription
	nextIdx  map[ids.StreamId]ids.StreamIndex
	disconn  chan error

	// BatchSize caps how many rows SubscribeEvents delivers per callback
	// invocation during backfill, so tests can exercise multi-page
	// backfill without needing thousands of fixture rows.
	BatchSize int

	// FailSubscribe, when non-nil, is returned by the next SubscribeEvents
	// call instead of starting a subscription (one-shot; cleared after use).
	FailSubscribe error

	// User is the identity Authenticate and appendLocked attribute every
	// call to, standing in for the out-of-scope wire-level identity
	// provider. Defaults to "fake-user" when empty.
	User ids.UserId
}

func (s *Server) user() ids.UserId {
	if s.User == "" {
		return "fake-user"
	}
	return s.User
}

type subscription struct {
	mu     sync.Mutex
	active bool
}

// New creates an empty fake server. batchSize of 0 means deliver all
// matching rows in a single callback invocation.
func New(batchSize int) *Server {
	return &Server{
		streams:   make(map[ids.StreamId][]transport.Row),
		modules:   make(map[ids.StreamId]transport.ModuleRef),
		uploaded:  make(map[transport.ModuleRef]transport.ModuleDef),
		subs:      make(map[ids.StreamId][]*subscription),
		nextIdx:   make(map[ids.StreamId]ids.StreamIndex),
		disconn:   make(chan error, 1),
		BatchSize: batchSize,
	}
}

// Authenticate always succeeds for the fake server; tp is consulted only
// to exercise the TokenProvider contract in tests.
func (s *Server) Authenticate(ctx context.Context, tp transport.TokenProvider) (transport.Handshake, error) {
	if _, err := tp.Token(ctx); err != nil {
		return transport.Handshake{}, oops.Code("TRANSPORT_AUTH_FAILED").Wrap(err)
	}
	return transport.Handshake{User: s.user()}, nil
}

// CreateStream allocates a new stream id bound to module.
func (s *Server) CreateStream(_ context.Context, module transport.ModuleRef) (ids.StreamId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := ids.StreamId(ids.NewBatchId().String())
	s.streams[id] = nil
	s.modules[id] = module
	s.nextIdx[id] = ids.ZeroIndex
	return id, nil
}

// EnsureStream registers id bound to module if it doesn't already exist,
// a convenience for callers (the CLI demo boundary) that want a
// caller-chosen stream id rather than one allocated by CreateStream.
func (s *Server) EnsureStream(id ids.StreamId, module transport.ModuleRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modules[id]; ok {
		return
	}
	s.streams[id] = nil
	s.modules[id] = module
	s.nextIdx[id] = ids.ZeroIndex
}

// StreamInfo returns the module a stream is running.
func (s *Server) StreamInfo(_ context.Context, stream ids.StreamId) (transport.ModuleRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	module, ok := s.modules[stream]
	if !ok {
		return "", oops.Code("TRANSPORT_STREAM_NOT_FOUND").Wrap(transport.ErrStreamNotFound)
	}
	return module, nil
}

// HasModule reports whether def has been uploaded.
func (s *Server) HasModule(_ context.Context, cid transport.ModuleRef) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.uploaded[cid]
	return ok, nil
}

// UploadModule registers a module definition.
func (s *Server) UploadModule(_ context.Context, def transport.ModuleDef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded[def.Ref] = def
	return nil
}

// UpdateModule switches stream to run cid, failing if cid was never
// uploaded -- the fake's analogue of the real server enforcing that only
// known schemas can be attached to a stream.
func (s *Server) UpdateModule(_ context.Context, stream ids.StreamId, cid transport.ModuleRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.streams[stream]; !ok {
		return oops.Code("TRANSPORT_STREAM_NOT_FOUND").Wrap(transport.ErrStreamNotFound)
	}
	if _, ok := s.uploaded[cid]; !ok {
		return oops.Code("TRANSPORT_MODULE_NOT_FOUND").Wrap(transport.ErrModuleNotFound)
	}
	s.modules[stream] = cid
	return nil
}

// Query returns rows from stream matching q, applying After/Limit.
func (s *Server) Query(_ context.Context, stream ids.StreamId, q transport.Query) ([]transport.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectRows(stream, q), nil
}

func (s *Server) selectRows(stream ids.StreamId, q transport.Query) []transport.Row {
	all := s.streams[stream]
	var out []transport.Row
	for _, r := range all {
		if r.Idx <= q.After {
			continue
		}
		out = append(out, r)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

// SubscribeEvents delivers rows after q.After in BatchSize-sized pages,
// then invokes cb one final time with hasMore=false once caught up.
// Each call spawns its own delivery goroutine; Unsubscribe stops it.
func (s *Server) SubscribeEvents(ctx context.Context, stream ids.StreamId, q transport.Query, cb transport.RowCallback) (transport.Unsubscriber, error) {
	s.mu.Lock()
	if s.FailSubscribe != nil {
		err := s.FailSubscribe
		s.FailSubscribe = nil
		s.mu.Unlock()
		return nil, err
	}
	rows := s.selectRows(stream, q)
	sub := &subscription{active: true}
	s.subs[stream] = append(s.subs[stream], sub)
	s.mu.Unlock()

	pageSize := s.BatchSize
	if pageSize <= 0 {
		pageSize = len(rows)
		if pageSize == 0 {
			pageSize = 1
		}
	}

	go func() {
		for i := 0; i < len(rows); i += pageSize {
			sub.mu.Lock()
			active := sub.active
			sub.mu.Unlock()
			if !active || ctx.Err() != nil {
				return
			}
			end := min(i+pageSize, len(rows))
			if err := cb(rows[i:end], end < len(rows)); err != nil {
				return
			}
		}
		sub.mu.Lock()
		active := sub.active
		sub.mu.Unlock()
		if active && ctx.Err() == nil {
			_ = cb(nil, false)
		}
	}()

	return &fakeUnsubscriber{sub: sub}, nil
}

type fakeUnsubscriber struct {
	sub *subscription
}

func (u *fakeUnsubscriber) Unsubscribe() error {
	u.sub.mu.Lock()
	defer u.sub.mu.Unlock()
	if !u.sub.active {
		return transport.ErrAlreadyUnsubscribed
	}
	u.sub.active = false
	return nil
}

// SendEvent appends one row to stream, assigning the next StreamIndex.
func (s *Server) SendEvent(_ context.Context, stream ids.StreamId, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(stream, payload)
	return nil
}

// SendEvents appends payloads to stream in order, each getting the next
// StreamIndex.
func (s *Server) SendEvents(_ context.Context, stream ids.StreamId, payloads [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range payloads {
		s.appendLocked(stream, p)
	}
	return nil
}

func (s *Server) appendLocked(stream ids.StreamId, payload []byte) {
	idx := s.nextIdx[stream] + 1
	s.nextIdx[stream] = idx
	s.streams[stream] = append(s.streams[stream], transport.Row{
		Idx:     idx,
		User:    s.user(),
		Payload: payload,
	})
}

// Disconnected never fires for the fake server unless a test sends on it
// directly via InjectDisconnect.
func (s *Server) Disconnected() <-chan error { return s.disconn }

// InjectDisconnect simulates a transport-level disconnect for tests that
// exercise Supervisor's reconnect path.
func (s *Server) InjectDisconnect(err error) { s.disconn <- err }
