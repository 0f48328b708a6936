// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package core

import (
	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/store"
)

// Bundle is the codec's per-event output: either a set of mutations ready
// to apply, a batched profile fetch collapsed out of a ProfileFetch
// event, or a record of an event that could not be turned into either.
// Closed the same way Batch is -- an unexported marker method.
type Bundle interface {
	bundle()
}

// ReadyBundle carries the mutations produced by one event's Transform,
// plus the event ids it must not be applied before.
type ReadyBundle struct {
	EventId     ids.EventId
	StreamIndex ids.StreamIndex
	Mutations   []store.Mutation
	DependsOn   []ids.EventId
}

func (ReadyBundle) bundle() {}

// ProfileFetchBundle represents one event whose Transform deferred to an
// out-of-band profile lookup; Mutations is populated once
// internal/identity.ProfileLookup resolves UserIds. EventId/StreamIndex
// identify the event so the resolved bundle can be folded back into a
// ReadyBundle and applied like any other (see materializer.runFullPipeline).
type ProfileFetchBundle struct {
	EventId     ids.EventId
	StreamIndex ids.StreamIndex
	UserIds     []ids.UserId
	Mutations   []store.Mutation
}

func (ProfileFetchBundle) bundle() {}

// InvalidEventBundle records an event that failed validation or whose
// type tag is not in the codec registry. EventId is nil when the event
// could not even be identified (malformed envelope).
type InvalidEventBundle struct {
	EventId *ids.EventId
	Message string
}

func (InvalidEventBundle) bundle() {}
