// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package ids defines the identifier types shared across the sync engine:
// users, streams (spaces), events, batches, and rooms.
package ids

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// UserId is a stable identifier for an authenticated user, attested by the
// identity provider.
type UserId string

// StreamId identifies a remote append-only log (a space).
type StreamId string

// RoomId is a sub-grouping within a stream, used for lazy scrollback.
type RoomId ulid.ULID

// EventId is a 26-character sortable ULID. Lexicographic order matches
// chronological order within one author; across authors, order events by
// StreamIndex instead.
type EventId ulid.ULID

// BatchId groups events delivered together for bookkeeping purposes.
type BatchId ulid.ULID

// StreamIndex is the server-assigned, strictly increasing position of an
// event within one stream.
type StreamIndex uint64

// ZeroIndex is the sentinel "start of stream" value.
const ZeroIndex StreamIndex = 0

func (r RoomId) String() string    { return ulid.ULID(r).String() }
func (e EventId) String() string   { return ulid.ULID(e).String() }
func (b BatchId) String() string   { return ulid.ULID(b).String() }
func (e EventId) IsZero() bool     { return ulid.ULID(e) == (ulid.ULID{}) }
func (e EventId) Compare(o EventId) int {
	return ulid.ULID(e).Compare(ulid.ULID(o))
}

// Time returns the millisecond timestamp embedded in the event id,
// letting a transform derive a created_at/edited_at-style column from
// the id itself instead of sampling the wall clock -- the same id
// produces the same timestamp on every call.
func (e EventId) Time() time.Time {
	return ulid.Time(ulid.ULID(e).Time())
}

// entropy is a monotonic ULID source shared by all ID generators in this
// process, guarded by entropyLock so concurrent callers still get
// lexicographically increasing IDs within the same millisecond.
var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

func newULID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// NewEventId generates a new event identifier.
func NewEventId() EventId { return EventId(newULID()) }

// NewBatchId generates a new batch identifier.
func NewBatchId() BatchId { return BatchId(newULID()) }

// NewRoomId generates a new room identifier.
func NewRoomId() RoomId { return RoomId(newULID()) }

// ParseEventId parses an EventId from its string form.
func ParseEventId(s string) (EventId, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return EventId{}, fmt.Errorf("invalid event id %q: %w", s, err)
	}
	return EventId(id), nil
}

// ParseRoomId parses a RoomId from its string form.
func ParseRoomId(s string) (RoomId, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return RoomId{}, fmt.Errorf("invalid room id %q: %w", s, err)
	}
	return RoomId(id), nil
}
