// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package streamconn

import (
	"context"

	"github.com/spacewire/sync/internal/core"
	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/transport"
)

// Subscribe issues a backfill-then-live-tail subscription starting just
// after start, invoking cb with each page of decoded events. The
// subscription's BackfillState flips Started->Finished the moment the
// server reports hasMore=false; cb continues to be invoked for live
// events delivered afterward without a state change.
func (c *Conn) Subscribe(ctx context.Context, cb BatchCallback, start ids.StreamIndex) (Subscription, error) {
	return c.subscribe(ctx, cb, start, false)
}

// SubscribeMetadata is the same subscription but restricted to rows the
// transport tags as metadata-only -- an optional optimization some
// transports support (nil-checked by callers, never required). This
// implementation delegates to the same path since
// transport.RemoteEventServer does not distinguish metadata rows at the
// interface level; a transport that wants the distinction filters inside
// its own SubscribeEvents.
func (c *Conn) SubscribeMetadata(ctx context.Context, cb BatchCallback, start ids.StreamIndex) (Subscription, error) {
	return c.subscribe(ctx, cb, start, true)
}

func (c *Conn) subscribe(ctx context.Context, cb BatchCallback, start ids.StreamIndex, metadataOnly bool) (Subscription, error) {
	if err := c.backfill.start(); err != nil {
		return nil, err
	}

	rowCB := func(rows []transport.Row, hasMore bool) error {
		events := make([]core.Event, len(rows))
		for i, r := range rows {
			events[i] = core.Event{
				ID:          ids.NewEventId(),
				Stream:      c.streamID,
				User:        r.User,
				StreamIndex: r.Idx,
				Body:        r.Payload,
			}
		}

		// A fresh BatchId per page, not per subscription: BatchId groups
		// the events delivered together in one callback invocation for
		// bookkeeping (materializer reports, logs, traces), and a
		// long-running subscription delivers many pages over its life.
		// An empty page that ends backfill replays nothing, so it is
		// already the live tail (an empty stream's only callback).
		meta := BatchMeta{
			IsBackfill: stillBackfilling(c) && (hasMore || len(rows) > 0),
			BatchId:    ids.NewBatchId(),
			StreamId:   c.streamID,
		}
		if err := cb(events, meta); err != nil {
			return err
		}
		if !hasMore {
			return c.backfill.finish()
		}
		return nil
	}

	sub, err := c.server.SubscribeEvents(ctx, c.streamID, transport.Query{After: start}, rowCB)
	if err != nil {
		c.backfill.fail(err)
		return nil, err
	}

	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	return sub, nil
}

// stillBackfilling reports whether the connection has not yet reached
// the live tail. Checked before the callback flips state, so a batch
// that arrives exactly as hasMore turns false is still correctly
// tagged IsBackfill=true -- the page itself is still replay, only
// pages delivered *after* this one are live.
func stillBackfilling(c *Conn) bool {
	state, _ := c.backfill.snapshot()
	return state == BackfillStarted
}
