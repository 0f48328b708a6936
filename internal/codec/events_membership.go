// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/store"
)

// MembershipJoinPayload is the body of a space.membership.join.v0 event,
// applied on the joining user's personal stream.
type MembershipJoinPayload struct {
	StreamId string `json:"stream_id"`
}

var membershipJoinDescriptor = TypeDescriptor{
	Validate: func(ev Decoded) error {
		var p MembershipJoinPayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return fmt.Errorf("membership.join: %w", err)
		}
		if p.StreamId == "" {
			return fmt.Errorf("membership.join: stream_id is required")
		}
		return nil
	},
	Transform: func(ctx TransformContext, streamID ids.StreamId, user ids.UserId, ev Decoded) ([]store.Mutation, error) {
		var p MembershipJoinPayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return nil, fmt.Errorf("membership.join: %w", err)
		}
		return []store.Mutation{{
			Table: "joined_spaces",
			PK: map[string]any{
				"user_id":   string(user),
				"stream_id": p.StreamId,
			},
			Set: map[string]any{
				"joined_at": ctx.EventId.Time(),
			},
		}}, nil
	},
}

// MembershipLeavePayload is the body of a space.membership.leave.v0 event.
type MembershipLeavePayload struct {
	StreamId string `json:"stream_id"`
}

var membershipLeaveDescriptor = TypeDescriptor{
	Validate: func(ev Decoded) error {
		var p MembershipLeavePayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return fmt.Errorf("membership.leave: %w", err)
		}
		if p.StreamId == "" {
			return fmt.Errorf("membership.leave: stream_id is required")
		}
		return nil
	},
	Transform: func(ctx TransformContext, streamID ids.StreamId, user ids.UserId, ev Decoded) ([]store.Mutation, error) {
		var p MembershipLeavePayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return nil, fmt.Errorf("membership.leave: %w", err)
		}
		return []store.Mutation{{
			Table: "joined_spaces",
			PK: map[string]any{
				"user_id":   string(user),
				"stream_id": p.StreamId,
			},
			// Set left nil: joined_spaces rows are removed on leave, unlike
			// messages, since membership has no history requirement.
		}}, nil
	},
}

// ReadMarkerPayload is the body of a space.membership.read_marker.v0 event.
type ReadMarkerPayload struct {
	RoomId string    `json:"room_id"`
	ReadAt time.Time `json:"read_at"`
}

var readMarkerDescriptor = TypeDescriptor{
	Validate: func(ev Decoded) error {
		var p ReadMarkerPayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return fmt.Errorf("membership.read_marker: %w", err)
		}
		if p.RoomId == "" {
			return fmt.Errorf("membership.read_marker: room_id is required")
		}
		if p.ReadAt.IsZero() {
			return fmt.Errorf("membership.read_marker: read_at is required")
		}
		return nil
	},
	Transform: func(ctx TransformContext, streamID ids.StreamId, user ids.UserId, ev Decoded) ([]store.Mutation, error) {
		var p ReadMarkerPayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return nil, fmt.Errorf("membership.read_marker: %w", err)
		}
		return []store.Mutation{{
			Table: "read_markers",
			PK: map[string]any{
				"user_id":   string(user),
				"stream_id": string(streamID),
				"room_id":   p.RoomId,
			},
			Set: map[string]any{
				"read_at": p.ReadAt,
			},
		}}, nil
	},
}
