// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package streamconn

import (
	"context"

	"github.com/spacewire/sync/internal/core"
	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/transport"
)

// FetchRoom retrieves up to limit events, ending just before before (nil
// means up to the current tail). The transport has no per-room query, so
// rows are not filtered by room: every event in the window is returned
// tagged with room. Always calls through to the transport; LazyLoadRoom
// is the cursor-caching variant callers should prefer for repeated
// scrollback requests.
func (c *Conn) FetchRoom(ctx context.Context, room ids.RoomId, limit int, before *ids.StreamIndex) ([]core.Event, error) {
	if _, ok := c.pin.(RoomsPin); ok {
		return nil, ErrNotImplemented
	}

	q := transport.Query{}
	if before != nil && limit > 0 && uint64(*before) > uint64(limit)+1 {
		q.After = *before - ids.StreamIndex(limit) - 1
	}
	rows, err := c.server.Query(ctx, c.streamID, q)
	if err != nil {
		return nil, err
	}

	events := make([]core.Event, 0, len(rows))
	for _, r := range rows {
		if before != nil && r.Idx >= *before {
			continue
		}
		events = append(events, core.Event{
			ID:          ids.NewEventId(),
			Stream:      c.streamID,
			Room:        &room,
			User:        r.User,
			StreamIndex: r.Idx,
			Body:        r.Payload,
		})
	}
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// LazyLoadRoom is FetchRoom with a per-room cursor cache: a request
// whose window is already covered by a prior fetch short-circuits
// without calling the transport at all. The cache records the oldest
// StreamIndex already fetched for room; a new request is satisfied
// locally when its `before` bound falls at or after that cursor.
func (c *Conn) LazyLoadRoom(ctx context.Context, room ids.RoomId, limit int, before *ids.StreamIndex) ([]core.Event, error) {
	c.mu.Lock()
	cached, seen := c.lazyRoomCur[room]
	c.mu.Unlock()

	if seen && before != nil && *before >= cached {
		return nil, nil
	}

	events, err := c.FetchRoom(ctx, room, limit, before)
	if err != nil {
		return nil, err
	}

	oldest := cached
	for _, ev := range events {
		if !seen || ev.StreamIndex < oldest {
			oldest = ev.StreamIndex
			seen = true
		}
	}
	if seen {
		c.mu.Lock()
		c.lazyRoomCur[room] = oldest
		c.mu.Unlock()
	}
	return events, nil
}
