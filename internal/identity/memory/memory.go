// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package memory is an in-process identity.ProfileStore for tests.
package memory

import (
	"context"
	"sync"

	"github.com/spacewire/sync/internal/identity"
	"github.com/spacewire/sync/internal/ids"
)

// Store is an in-memory identity.ProfileStore. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	personal map[ids.UserId]ids.StreamId
}

// New creates an empty Store.
func New() *Store {
	return &Store{personal: make(map[ids.UserId]ids.StreamId)}
}

// Get returns user's personal stream, or identity.ErrProfileNotFound.
func (s *Store) Get(_ context.Context, user ids.UserId) (ids.StreamId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream, ok := s.personal[user]
	if !ok {
		return "", identity.ErrProfileNotFound
	}
	return stream, nil
}

// Put records user's personal stream.
func (s *Store) Put(_ context.Context, user ids.UserId, personal ids.StreamId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.personal[user] = personal
	return nil
}

// Delete removes user's profile record.
func (s *Store) Delete(_ context.Context, user ids.UserId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.personal, user)
	return nil
}
