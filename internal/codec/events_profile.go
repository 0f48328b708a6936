// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package codec

import (
	"encoding/json"
	"fmt"

	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/store"
)

// ProfileUpdatePayload is the body of a space.profile.update.v0 event.
type ProfileUpdatePayload struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

var profileUpdateDescriptor = TypeDescriptor{
	Validate: func(ev Decoded) error {
		var p ProfileUpdatePayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return fmt.Errorf("profile.update: %w", err)
		}
		if p.DisplayName == "" {
			return fmt.Errorf("profile.update: display_name is required")
		}
		return nil
	},
	Transform: func(ctx TransformContext, streamID ids.StreamId, user ids.UserId, ev Decoded) ([]store.Mutation, error) {
		var p ProfileUpdatePayload
		if err := json.Unmarshal(ev.Body, &p); err != nil {
			return nil, fmt.Errorf("profile.update: %w", err)
		}
		return []store.Mutation{{
			Table: "profiles",
			PK:    map[string]any{"user_id": string(user)},
			Set: map[string]any{
				"display_name": p.DisplayName,
				"avatar_url":   p.AvatarURL,
			},
		}}, nil
	},
}
