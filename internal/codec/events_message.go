// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package codec

import (
	"encoding/json"
	"fmt"

	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/store"
)

// MessageCreatePayload is the body of a space.room.message.create.v0 event.
type MessageCreatePayload struct {
	RoomId string `json:"room_id"`
	Body   string `json:"body"`
}

var messageCreateDescriptor = TypeDescriptor{
	Validate: func(ev Decoded) error {
		var p MessageCreatePayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return fmt.Errorf("message.create: %w", err)
		}
		if p.RoomId == "" {
			return fmt.Errorf("message.create: room_id is required")
		}
		return nil
	},
	Transform: func(ctx TransformContext, streamID ids.StreamId, user ids.UserId, ev Decoded) ([]store.Mutation, error) {
		var p MessageCreatePayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return nil, fmt.Errorf("message.create: %w", err)
		}
		return []store.Mutation{{
			Table: "messages",
			PK:    map[string]any{"event_id": ctx.EventId.String()},
			Set: map[string]any{
				"stream_id":  string(streamID),
				"room_id":    p.RoomId,
				"author_id":  string(user),
				"body":       p.Body,
				"created_at": ctx.EventId.Time(),
			},
		}}, nil
	},
}

// MessageEditPayload is the body of a space.room.message.edit.v0 event.
type MessageEditPayload struct {
	TargetId string `json:"target_id"`
	Body     string `json:"body"`
}

var messageEditDescriptor = TypeDescriptor{
	Validate: func(ev Decoded) error {
		var p MessageEditPayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return fmt.Errorf("message.edit: %w", err)
		}
		if p.TargetId == "" {
			return fmt.Errorf("message.edit: target_id is required")
		}
		return nil
	},
	DependsOn: func(ev Decoded) []ids.EventId {
		var p MessageEditPayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return nil
		}
		target, err := ids.ParseEventId(p.TargetId)
		if err != nil {
			return nil
		}
		return []ids.EventId{target}
	},
	Transform: func(ctx TransformContext, streamID ids.StreamId, user ids.UserId, ev Decoded) ([]store.Mutation, error) {
		var p MessageEditPayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return nil, fmt.Errorf("message.edit: %w", err)
		}
		return []store.Mutation{{
			Table: "messages",
			PK:    map[string]any{"event_id": p.TargetId},
			Set: map[string]any{
				"body":      p.Body,
				"edited_at": ctx.EventId.Time(),
			},
		}}, nil
	},
}

// MessageDeletePayload is the body of a space.room.message.delete.v0 event.
type MessageDeletePayload struct {
	TargetId string `json:"target_id"`
}

var messageDeleteDescriptor = TypeDescriptor{
	Validate: func(ev Decoded) error {
		var p MessageDeletePayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return fmt.Errorf("message.delete: %w", err)
		}
		if p.TargetId == "" {
			return fmt.Errorf("message.delete: target_id is required")
		}
		return nil
	},
	DependsOn: func(ev Decoded) []ids.EventId {
		var p MessageDeletePayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return nil
		}
		target, err := ids.ParseEventId(p.TargetId)
		if err != nil {
			return nil
		}
		return []ids.EventId{target}
	},
	// Transform is a tombstone upsert, not a SQL delete: the row survives
	// with deleted_at set, so a late duplicate create (dependency gate
	// already orders edit/delete after create, but a replayed create
	// could otherwise race a delete on a second connection) can never
	// resurrect a deleted message by re-upserting deleted_at away.
	Transform: func(ctx TransformContext, streamID ids.StreamId, user ids.UserId, ev Decoded) ([]store.Mutation, error) {
		var p MessageDeletePayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return nil, fmt.Errorf("message.delete: %w", err)
		}
		return []store.Mutation{{
			Table: "messages",
			PK:    map[string]any{"event_id": p.TargetId},
			Set: map[string]any{
				"deleted_at": ctx.EventId.Time(),
			},
		}}, nil
	},
}

// MessageReorderPayload is the body of a space.room.message.reorder.v0
// event. Reordering is interactive/UI-side; the materializer still
// validates and advances the cursor past it but produces no mutations.
type MessageReorderPayload struct {
	RoomId   string   `json:"room_id"`
	Ordering []string `json:"ordering"`
}

var messageReorderDescriptor = TypeDescriptor{
	Validate: func(ev Decoded) error {
		var p MessageReorderPayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return fmt.Errorf("message.reorder: %w", err)
		}
		if p.RoomId == "" {
			return fmt.Errorf("message.reorder: room_id is required")
		}
		return nil
	},
	Transform: func(ctx TransformContext, streamID ids.StreamId, user ids.UserId, ev Decoded) ([]store.Mutation, error) {
		return nil, nil
	},
}
