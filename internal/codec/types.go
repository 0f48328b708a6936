// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package codec

// Type tags for the event types the registry knows about. "v0" suffixes
// mark schema version the same way a wire protocol would; a future
// breaking change to a payload ships as a new tag (space.room.message.create.v1),
// never a silent shape change to v0.
const (
	TypeProfileUpdate      = "space.profile.update.v0"
	TypeMembershipJoin     = "space.membership.join.v0"
	TypeMembershipLeave    = "space.membership.leave.v0"
	TypeMembershipReadMark = "space.membership.read_marker.v0"
	TypeMessageCreate      = "space.room.message.create.v0"
	TypeMessageEdit        = "space.room.message.edit.v0"
	TypeMessageDelete      = "space.room.message.delete.v0"
	TypeMessageReorder     = "space.room.message.reorder.v0"
	TypeReactionAdd        = "space.room.reaction.add.v0"
	TypeReactionRemove     = "space.room.reaction.remove.v0"
)
