// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package core

import "github.com/spacewire/sync/internal/ids"

// Batch is a closed sum of the four shapes an in-flight group of events
// takes as it moves from a connected stream through the codec and into
// the store. Modeled as a sealed interface the way the teacher closes
// EventType/ActorKind over a fixed set of constants (internal/core/event.go)
// -- here the set is shapes of a struct rather than values of an enum, so
// the seal is an unexported marker method instead of a const block.
type Batch interface {
	batch()
	Priority() Priority
}

// FetchedBatch is a page of events a ConnectedStream retrieved during
// backfill, not yet known to be contiguous with the live tail.
type FetchedBatch struct {
	BatchId  ids.BatchId
	StreamId ids.StreamId
	Events   []Event
	Prio     Priority
}

func (FetchedBatch) batch()            {}
func (b FetchedBatch) Priority() Priority { return b.Prio }

// LiveBatch is a group of events delivered after the stream has caught
// up to the server's tail.
type LiveBatch struct {
	BatchId  ids.BatchId
	StreamId ids.StreamId
	Events   []Event
	Prio     Priority
}

func (LiveBatch) batch()              {}
func (b LiveBatch) Priority() Priority { return b.Prio }

// TransformedBatch is the codec's output: each event has been decoded,
// validated, and turned into a Bundle ready for (or blocked from) the
// materializer's apply step.
type TransformedBatch struct {
	BatchId     ids.BatchId
	StreamId    ids.StreamId
	Bundles     []Bundle
	LatestIndex ids.StreamIndex
	Prio        Priority
}

func (TransformedBatch) batch()              {}
func (b TransformedBatch) Priority() Priority { return b.Prio }

// AppliedBatch is the materializer's output: one EventResult per event
// that was attempted (ready bundles that were not stashed).
type AppliedBatch struct {
	BatchId ids.BatchId
	Results []EventResult
	Prio    Priority
}

func (AppliedBatch) batch()              {}
func (b AppliedBatch) Priority() Priority { return b.Prio }
