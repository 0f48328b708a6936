// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package core contains the closed-sum types the materializer pipeline
// passes between stages: decoded events, the batches a stream delivers
// them in, and the bundles the codec transforms them into.
package core

import (
	"github.com/spacewire/sync/internal/ids"
)

// Event is a decoded record from a remote stream. Body is kept opaque
// here; internal/codec decodes it into a typed Decoded value on demand,
// matching the teacher's lazy-payload-decode style (internal/core/event.go
// keeps Payload as []byte until a handler needs it).
type Event struct {
	ID          ids.EventId
	Stream      ids.StreamId
	Room        *ids.RoomId // nil for stream-scoped (non-room) events
	Type        string      // namespaced event type tag, e.g. "space.room.message.create.v0"
	User        ids.UserId  // server-attested author
	StreamIndex ids.StreamIndex
	Body        []byte // opaque, JSON
}

// Priority selects which of the mailbox's two queues a batch travels
// through. Declared here rather than in internal/mailbox because both
// core.Batch and internal/mailbox need it and core has no dependency on
// mailbox.
type Priority int

const (
	PriorityBackground Priority = iota
	PriorityForeground
)

func (p Priority) String() string {
	switch p {
	case PriorityBackground:
		return "background"
	case PriorityForeground:
		return "foreground"
	default:
		return "unknown"
	}
}
