// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package identity owns the mapping from an authenticated user to their
// personal stream, plus the state machine that repairs that mapping at
// startup (internal/identity.Ensure).
package identity

import (
	"context"
	"errors"

	"github.com/spacewire/sync/internal/ids"
)

// ErrProfileNotFound is returned by ProfileStore.Get when user has no
// recorded personal stream yet.
var ErrProfileNotFound = errors.New("profile not found")

// Session identifies the authenticated user a client.Supervisor acts as.
type Session struct {
	User ids.UserId
}

// ProfileStore persists the (user -> personal stream) mapping locally.
// internal/identity/postgres is the production adapter;
// internal/identity/memory backs tests.
type ProfileStore interface {
	Get(ctx context.Context, user ids.UserId) (ids.StreamId, error)
	Put(ctx context.Context, user ids.UserId, personal ids.StreamId) error
	Delete(ctx context.Context, user ids.UserId) error
}
