// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package postgres implements identity.ProfileStore over a pgx pool.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/spacewire/sync/internal/identity"
	"github.com/spacewire/sync/internal/ids"
)

// Store implements identity.ProfileStore using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool. Shares the pool with internal/store/postgres
// rather than opening a second connection pool against the same database.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns user's personal stream, or identity.ErrProfileNotFound.
func (s *Store) Get(ctx context.Context, user ids.UserId) (ids.StreamId, error) {
	var stream string
	err := s.pool.QueryRow(ctx,
		`SELECT personal_stream FROM local_identity WHERE user_id = $1`, string(user),
	).Scan(&stream)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", identity.ErrProfileNotFound
	}
	if err != nil {
		return "", oops.Code("IDENTITY_QUERY_FAILED").With("user", user).Wrap(err)
	}
	return ids.StreamId(stream), nil
}

// Put upserts user's personal stream.
func (s *Store) Put(ctx context.Context, user ids.UserId, personal ids.StreamId) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO local_identity (user_id, personal_stream) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET personal_stream = EXCLUDED.personal_stream`,
		string(user), string(personal),
	)
	if err != nil {
		return oops.Code("IDENTITY_PUT_FAILED").With("user", user).Wrap(err)
	}
	return nil
}

// Delete removes user's profile record.
func (s *Store) Delete(ctx context.Context, user ids.UserId) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM local_identity WHERE user_id = $1`, string(user))
	if err != nil {
		return oops.Code("IDENTITY_DELETE_FAILED").With("user", user).Wrap(err)
	}
	return nil
}
