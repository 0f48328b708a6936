// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package streamconn

import (
	"errors"

	"github.com/spacewire/sync/internal/ids"
)

// ErrNotImplemented is returned by any ConnectedStream operation asked to
// honor a RoomsPin. Reserved for a future partial-materialization mode;
// every ConnectedStream constructed today carries a SpacePin.
var ErrNotImplemented = errors.New("room-scoped pin not implemented")

// PinState is a closed sum describing how much of a stream's history a
// ConnectedStream keeps materialized locally.
type PinState interface {
	pin()
}

// SpacePin materializes the whole stream. The only PinState in active use.
type SpacePin struct{}

func (SpacePin) pin() {}

// RoomsPin would materialize only the named rooms' history, pruning the
// rest. Reserved: selecting it returns ErrNotImplemented wherever a
// ConnectedStream checks its pin before acting.
type RoomsPin struct {
	RoomIds []ids.RoomId
}

func (RoomsPin) pin() {}
