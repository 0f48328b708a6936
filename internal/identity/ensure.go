// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package identity

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/transport"
)

// StreamChecker reports whether a stream still exists on the remote
// server, returning an error wrapping transport.ErrStreamNotFound if it
// does not. Injected rather than a direct transport.RemoteEventServer
// dependency so identity never imports the transport package for
// anything but its sentinel errors, matching the teacher's
// CommonDeps/CoreDeps "swappable func field" DI style (cmd/holomush/deps.go).
type StreamChecker func(ctx context.Context, stream ids.StreamId) error

// StreamCreator allocates a new personal stream for user.
type StreamCreator func(ctx context.Context, user ids.UserId) (ids.StreamId, error)

// EnsureDeps are Ensure's dependencies. All fields are required; there
// are no package-level defaults since ProfileStore/StreamChecker/
// StreamCreator have no safe zero-value implementation, unlike the
// teacher's CommonDeps where a nil func field falls back to a named
// default -- Ensure's defaults are supplied by its caller
// (internal/client.Supervisor.Start), which already holds the concrete
// ProfileStore and transport.RemoteEventServer.
type EnsureDeps struct {
	Profiles     ProfileStore
	CheckStream  StreamChecker
	CreateStream StreamCreator
	// MaxAttempts bounds retries. 0 means the default of 3.
	MaxAttempts int
}

// Ensure resolves user's personal stream, repairing the local profile
// record if it is missing or points at a stream the server no longer
// has. Retries up to MaxAttempts times; every branch is a distinct
// tagged sentinel, never a substring match on an error message (spec §9).
func Ensure(ctx context.Context, deps EnsureDeps, user ids.UserId) (ids.StreamId, error) {
	attempts := deps.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		stream, err := deps.Profiles.Get(ctx, user)
		switch {
		case err == nil:
			if checkErr := deps.CheckStream(ctx, stream); checkErr == nil {
				return stream, nil
			} else if errors.Is(checkErr, transport.ErrStreamNotFound) {
				stream, lastErr = repair(ctx, deps, user)
				if lastErr == nil {
					return stream, nil
				}
			} else {
				lastErr = checkErr
			}
		case errors.Is(err, ErrProfileNotFound):
			stream, lastErr = repair(ctx, deps, user)
			if lastErr == nil {
				return stream, nil
			}
		default:
			lastErr = err
		}
	}

	return "", oops.Code("IDENTITY_ENSURE_FAILED").
		With("user", user).
		With("attempts", attempts).
		Wrap(lastErr)
}

func repair(ctx context.Context, deps EnsureDeps, user ids.UserId) (ids.StreamId, error) {
	stream, err := deps.CreateStream(ctx, user)
	if err != nil {
		return "", err
	}
	if err := deps.Profiles.Put(ctx, user, stream); err != nil {
		return "", err
	}
	return stream, nil
}
