// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package mailbox is the two-priority channel between connected
// streams and the materializer: a foreground queue for the personal
// stream and freshly-joined spaces, a background queue for everything
// else, always drained foreground-first. Neither queue has a capacity
// limit: Push never blocks and never turns an item away while the
// mailbox is open. Locking discipline mirrors the
// teacher's Broadcaster (internal/core/broadcaster.go): one mutex guards
// both queues plus the waiting-consumer handoff, no separate per-queue
// locks to avoid ordering bugs between them.
package mailbox

import (
	"context"
	"sync"

	"github.com/spacewire/sync/internal/core"
	"github.com/spacewire/sync/internal/ids"
)

// Mailbox is the async event channel between stream connections and the
// materializer.
type Mailbox interface {
	Push(item core.Batch, p core.Priority)
	Close()
	// Consume blocks until an item is available, ctx is cancelled, or the
	// mailbox is closed and drained. ok is false in the last two cases.
	Consume(ctx context.Context) (item core.Batch, ok bool)
	// DropStream discards queued items belonging to stream, used when a
	// ConnectedStream unsubscribes so stale batches are never applied.
	DropStream(stream ids.StreamId)
}

type queued struct {
	batch  core.Batch
	stream ids.StreamId
}

// FIFO is the production Mailbox: two slice-backed ring-buffer-style
// queues guarded by one mutex, with waiting consumers parked on a
// sync.Cond rather than busy-polling.
type FIFO struct {
	mu     sync.Mutex
	cond   *sync.Cond
	fg     []queued
	bg     []queued
	closed bool
}

// New creates an empty, open Mailbox.
func New() *FIFO {
	m := &FIFO{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Push enqueues item on the queue selected by p. Safe to call after
// Close; pushes after Close are silently dropped since nothing will ever
// Consume them.
func (m *FIFO) Push(item core.Batch, p core.Priority) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	q := queued{batch: item, stream: streamOf(item)}
	if p == core.PriorityForeground {
		m.fg = append(m.fg, q)
	} else {
		m.bg = append(m.bg, q)
	}
	m.cond.Signal()
}

// Close marks the mailbox closed and wakes any blocked Consume calls.
// Already-queued items are still delivered; Consume only returns
// ok=false once both queues are empty.
func (m *FIFO) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
}

// Consume returns the next item, always preferring the foreground queue
// over the background one when both are non-empty at the moment of the
// call -- no aging, matching the spec's deliberate choice of strict
// preemption over fairness.
func (m *FIFO) Consume(ctx context.Context) (core.Batch, bool) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.cond.Broadcast()
			m.mu.Unlock()
		case <-done:
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if len(m.fg) > 0 {
			q := m.fg[0]
			m.fg = m.fg[1:]
			return q.batch, true
		}
		if len(m.bg) > 0 {
			q := m.bg[0]
			m.bg = m.bg[1:]
			return q.batch, true
		}
		if m.closed {
			return nil, false
		}
		if ctx.Err() != nil {
			return nil, false
		}
		m.cond.Wait()
	}
}

// DropStream removes all queued items belonging to stream from both
// queues, swept under the same mutex as Push so a concurrent Push for
// the same stream can never race past a DropStream call.
func (m *FIFO) DropStream(stream ids.StreamId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fg = dropStream(m.fg, stream)
	m.bg = dropStream(m.bg, stream)
}

func dropStream(items []queued, stream ids.StreamId) []queued {
	out := items[:0]
	for _, it := range items {
		if it.stream != stream {
			out = append(out, it)
		}
	}
	return out
}

func streamOf(b core.Batch) ids.StreamId {
	switch v := b.(type) {
	case core.FetchedBatch:
		return v.StreamId
	case core.LiveBatch:
		return v.StreamId
	case core.TransformedBatch:
		return v.StreamId
	default:
		return ""
	}
}
