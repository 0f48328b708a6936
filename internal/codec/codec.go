// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package codec decodes raw event bodies into typed payloads and knows
// how to turn a decoded event into store mutations. Event types are a
// deliberately open set -- new ones arrive from the server over time --
// so the registry is a runtime map keyed by type tag rather than a
// compile-time closed sum, with Unknown as the catch-all the teacher's
// EventType const block has no equivalent for (internal/core/event.go
// only ever sees types the binary was compiled with).
package codec

import (
	"encoding/json"

	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/store"
)

// UnknownType is the Type value a Decoded carries when the wire envelope
// did not parse. A well-formed envelope keeps its own type tag even when
// that tag is absent from the registry.
const UnknownType = ""

// Decoded is an event after its wire envelope has been split into a type
// tag and an opaque body. The body is unmarshaled further by whichever
// TypeDescriptor function needs it -- Validate and Transform each decode
// independently rather than sharing a pre-unmarshaled struct, matching
// the teacher's habit of keeping Event.Payload as raw []byte until a
// handler actually needs the fields (internal/core/event.go).
type Decoded struct {
	Type string
	Body json.RawMessage
}

type envelope struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

// Decoder splits a raw event body into its type tag and payload. It
// never returns an error: malformed input decodes to a Decoded with
// Type == UnknownType, which the registry then reports as unrecognized
// rather than failing the whole batch over one bad envelope.
type Decoder interface {
	Decode(raw []byte) (Decoded, error)
}

// JSONDecoder is the production Decoder; every event on the wire is a
// JSON envelope of the form {"type": "...", "body": {...}}.
type JSONDecoder struct{}

// Decode implements Decoder.
func (JSONDecoder) Decode(raw []byte) (Decoded, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Decoded{Type: UnknownType, Body: raw}, nil
	}
	return Decoded{Type: env.Type, Body: env.Body}, nil
}

// Validator checks that a Decoded event's body satisfies its type's
// shape. Returning an error marks the event ResultInvalid rather than
// aborting the batch.
type Validator func(Decoded) error

// DependsOnFunc extracts the event ids a decoded event must not be
// applied ahead of. A nil DependsOnFunc on a TypeDescriptor means the
// type never depends on anything.
type DependsOnFunc func(Decoded) []ids.EventId

// FetchFunc extracts the user ids an event's Transform needs profile
// data for, collapsed by the materializer across a whole batch into one
// internal/identity.ProfileLookup call. A nil FetchFunc means the type
// needs no out-of-band fetch.
type FetchFunc func(Decoded) []ids.UserId

// TransformContext carries the per-event values a Transform needs
// beyond the decoded body itself.
type TransformContext struct {
	EventId ids.EventId
	Room    *ids.RoomId
}

// TransformFunc turns a decoded event into the mutations that
// materialize it.
type TransformFunc func(ctx TransformContext, streamID ids.StreamId, user ids.UserId, ev Decoded) ([]store.Mutation, error)

// TypeDescriptor is the registry entry for one event type tag.
type TypeDescriptor struct {
	Validate  Validator
	DependsOn DependsOnFunc
	Transform TransformFunc
	Fetch     FetchFunc
}
