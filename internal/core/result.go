// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package core

import "github.com/spacewire/sync/internal/ids"

// ResultKind reports what happened to one event during a materializer
// batch. Closed set, modeled as a const block the way the teacher closes
// EventType/ActorKind (internal/core/event.go).
type ResultKind uint8

const (
	ResultApplied ResultKind = iota
	ResultStashed
	ResultErrored
	ResultInvalid
)

func (k ResultKind) String() string {
	switch k {
	case ResultApplied:
		return "applied"
	case ResultStashed:
		return "stashed"
	case ResultErrored:
		return "errored"
	case ResultInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// EventResult records the outcome of attempting to apply one event's
// bundle within a batch.
type EventResult struct {
	EventId ids.EventId
	Kind    ResultKind
	Err     error // non-nil when Kind is ResultErrored or ResultInvalid
}
