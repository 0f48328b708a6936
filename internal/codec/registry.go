// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package codec

// Registry maps an event type tag to the functions that validate,
// order, and materialize it. Built as a package-level map literal the
// way the teacher declares its EventType constants in one block
// (internal/core/event.go) -- here the "constants" are behaviors rather
// than string values, since the set of event types is open at runtime.
var Registry = map[string]TypeDescriptor{
	TypeProfileUpdate:       profileUpdateDescriptor,
	TypeMembershipJoin:      membershipJoinDescriptor,
	TypeMembershipLeave:     membershipLeaveDescriptor,
	TypeMembershipReadMark:  readMarkerDescriptor,
	TypeMessageCreate:       messageCreateDescriptor,
	TypeMessageEdit:         messageEditDescriptor,
	TypeMessageDelete:       messageDeleteDescriptor,
	TypeMessageReorder:      messageReorderDescriptor,
	TypeReactionAdd:         reactionAddDescriptor,
	TypeReactionRemove:      reactionRemoveDescriptor,
}

// Lookup returns the descriptor for a type tag, and whether one exists.
func Lookup(typ string) (TypeDescriptor, bool) {
	d, ok := Registry[typ]
	return d, ok
}
