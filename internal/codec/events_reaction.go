// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package codec

import (
	"encoding/json"
	"fmt"

	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/store"
)

// ReactionPayload is the body of both reaction event types.
type ReactionPayload struct {
	TargetId string `json:"target_id"`
	Emoji    string `json:"emoji"`
}

func (p ReactionPayload) validate(kind string) error {
	if p.TargetId == "" {
		return fmt.Errorf("reaction.%s: target_id is required", kind)
	}
	if p.Emoji == "" {
		return fmt.Errorf("reaction.%s: emoji is required", kind)
	}
	return nil
}

func reactionDependsOn(ev Decoded) []ids.EventId {
	var p ReactionPayload
	if err := json.Unmarshal(ev.Body, &p); err != nil {
		return nil
	}
	target, err := ids.ParseEventId(p.TargetId)
	if err != nil {
		return nil
	}
	return []ids.EventId{target}
}

var reactionAddDescriptor = TypeDescriptor{
	Validate: func(ev Decoded) error {
		var p ReactionPayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return fmt.Errorf("reaction.add: %w", err)
		}
		return p.validate("add")
	},
	DependsOn: reactionDependsOn,
	Transform: func(ctx TransformContext, streamID ids.StreamId, user ids.UserId, ev Decoded) ([]store.Mutation, error) {
		var p ReactionPayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return nil, fmt.Errorf("reaction.add: %w", err)
		}
		return []store.Mutation{{
			Table: "message_reactions",
			PK: map[string]any{
				"message_id": p.TargetId,
				"user_id":    string(user),
				"emoji":      p.Emoji,
			},
			Set: map[string]any{
				"added_at": ctx.EventId.Time(),
			},
		}}, nil
	},
}

var reactionRemoveDescriptor = TypeDescriptor{
	Validate: func(ev Decoded) error {
		var p ReactionPayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return fmt.Errorf("reaction.remove: %w", err)
		}
		return p.validate("remove")
	},
	DependsOn: reactionDependsOn,
	Transform: func(ctx TransformContext, streamID ids.StreamId, user ids.UserId, ev Decoded) ([]store.Mutation, error) {
		var p ReactionPayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return nil, fmt.Errorf("reaction.remove: %w", err)
		}
		return []store.Mutation{{
			Table: "message_reactions",
			PK: map[string]any{
				"message_id": p.TargetId,
				"user_id":    string(user),
				"emoji":      p.Emoji,
			},
		}}, nil
	},
}
