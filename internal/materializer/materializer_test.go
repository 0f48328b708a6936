// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package materializer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacewire/sync/internal/codec"
	"github.com/spacewire/sync/internal/core"
	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/mailbox"
	"github.com/spacewire/sync/internal/materializer"
	"github.com/spacewire/sync/internal/store"
	"github.com/spacewire/sync/internal/store/memory"
)

func envelope(t *testing.T, typ string, body string) []byte {
	t.Helper()
	return []byte(`{"type":"` + typ + `","body":` + body + `}`)
}

func newMaterializer(t *testing.T) (*materializer.Materializer, *memory.Store) {
	t.Helper()
	st := memory.New()
	m := materializer.New(st, codec.Registry, codec.JSONDecoder{}, nil)
	return m, st
}

func waitReport(t *testing.T, m *materializer.Materializer) materializer.Report {
	t.Helper()
	select {
	case r := <-m.Reports():
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a materializer report")
		return materializer.Report{}
	}
}

func TestRun_AppliesValidEvent(t *testing.T) {
	m, st := newMaterializer(t)
	mb := mailbox.New()

	stream := ids.StreamId("space-1")
	user := ids.UserId("u1")
	ev := core.Event{
		ID:     ids.NewEventId(),
		Stream: stream,
		User:   user,
		Body:   envelope(t, codec.TypeProfileUpdate, `{"display_name":"Ada","avatar_url":""}`),
	}
	mb.Push(core.LiveBatch{BatchId: ids.NewBatchId(), StreamId: stream, Events: []core.Event{ev}, Prio: core.PriorityForeground}, core.PriorityForeground)

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx, mb)
	defer cancel()

	report := waitReport(t, m)
	assert.Equal(t, 1, report.Summary.Applied)
	assert.Equal(t, 0, report.Summary.Errored)

	row, ok := st.Row("profiles", map[string]any{"user_id": "u1"})
	require.True(t, ok)
	assert.Equal(t, "Ada", row["display_name"])
}

func TestRun_UnknownEventTypeIsInvalidNotFatal(t *testing.T) {
	m, _ := newMaterializer(t)
	mb := mailbox.New()

	stream := ids.StreamId("space-1")
	ev := core.Event{
		ID:     ids.NewEventId(),
		Stream: stream,
		User:   "u1",
		Body:   envelope(t, "space.example.future.v0", `{}`),
	}
	mb.Push(core.LiveBatch{BatchId: ids.NewBatchId(), StreamId: stream, Events: []core.Event{ev}, Prio: core.PriorityForeground}, core.PriorityForeground)

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx, mb)
	defer cancel()

	report := waitReport(t, m)
	assert.Equal(t, 0, report.Summary.Applied)
	assert.Equal(t, 1, report.Summary.Errored)
	assert.Len(t, report.Warnings.FailedEvents, 1)
}

func TestRun_MissingDependencyIsStashedThenAppliedOnceResolved(t *testing.T) {
	m, st := newMaterializer(t)
	mb := mailbox.New()
	stream := ids.StreamId("space-1")

	targetID := ids.NewEventId()
	editEv := core.Event{
		ID:     ids.NewEventId(),
		Stream: stream,
		User:   "u1",
		Body:   envelope(t, codec.TypeMessageEdit, `{"target_id":"`+targetID.String()+`","body":"edited"}`),
	}
	mb.Push(core.LiveBatch{BatchId: ids.NewBatchId(), StreamId: stream, Events: []core.Event{editEv}, Prio: core.PriorityForeground}, core.PriorityForeground)

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx, mb)
	defer cancel()

	report := waitReport(t, m)
	assert.Equal(t, 1, report.Summary.Stashed)
	assert.Equal(t, 0, report.Summary.Applied)

	createEv := core.Event{
		ID:     targetID,
		Stream: stream,
		User:   "u1",
		Body:   envelope(t, codec.TypeMessageCreate, `{"room_id":"room-1","body":"hi"}`),
	}
	mb.Push(core.LiveBatch{BatchId: ids.NewBatchId(), StreamId: stream, Events: []core.Event{createEv}, Prio: core.PriorityForeground}, core.PriorityForeground)

	report = waitReport(t, m)
	assert.Equal(t, 1, report.Summary.Applied) // message.create itself

	// The edit was re-queued as a synthetic TransformedBatch (step 7) once
	// its dependency resolved; it lands in its own, third report.
	report = waitReport(t, m)
	assert.Equal(t, 1, report.Summary.Applied)

	row, ok := st.Row("messages", map[string]any{"event_id": targetID.String()})
	require.True(t, ok)
	assert.Equal(t, "edited", row["body"])
}

type stubFetcher struct {
	mutations []store.Mutation
}

func (f stubFetcher) FetchProfiles(_ context.Context, _ []ids.UserId) ([]store.Mutation, error) {
	return f.mutations, nil
}

const typeFetchProbe = "test.fetch_probe.v0"

// TestRun_ResolvedFetchBundleIsApplied exercises a TypeDescriptor whose
// Fetch is non-nil (no type in the production registry sets it today, but
// nothing should drop the resolved mutations once one does).
func TestRun_ResolvedFetchBundleIsApplied(t *testing.T) {
	st := memory.New()
	registry := map[string]codec.TypeDescriptor{
		typeFetchProbe: {
			Fetch: func(codec.Decoded) []ids.UserId { return []ids.UserId{"u1"} },
		},
	}
	fetcher := stubFetcher{mutations: []store.Mutation{{
		Table: "profiles",
		PK:    map[string]any{"user_id": "u1"},
		Set:   map[string]any{"display_name": "Fetched"},
	}}}
	m := materializer.New(st, registry, codec.JSONDecoder{}, fetcher)
	mb := mailbox.New()

	stream := ids.StreamId("space-1")
	ev := core.Event{
		ID:     ids.NewEventId(),
		Stream: stream,
		User:   "u1",
		Body:   envelope(t, typeFetchProbe, `{}`),
	}
	mb.Push(core.LiveBatch{BatchId: ids.NewBatchId(), StreamId: stream, Events: []core.Event{ev}, Prio: core.PriorityForeground}, core.PriorityForeground)

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx, mb)
	defer cancel()

	report := waitReport(t, m)
	assert.Equal(t, 1, report.Summary.Applied)
	assert.Equal(t, 0, report.Summary.Errored)

	row, ok := st.Row("profiles", map[string]any{"user_id": "u1"})
	require.True(t, ok)
	assert.Equal(t, "Fetched", row["display_name"])
}
