// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package streamconn_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacewire/sync/internal/core"
	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/streamconn"
	"github.com/spacewire/sync/internal/transport"
	"github.com/spacewire/sync/internal/transport/fake"
)

type staticToken struct{ tok string }

func (s staticToken) Token(context.Context) (string, error) { return s.tok, nil }

func TestConnect_UpgradesModuleSuccessfully(t *testing.T) {
	server := fake.New(10)
	stream, err := server.CreateStream(context.Background(), "module.v1")
	require.NoError(t, err)
	require.NoError(t, server.UploadModule(context.Background(), transport.ModuleDef{Ref: "module.v2"}))

	conn := streamconn.New(server, stream, streamconn.SpacePin{})
	require.NoError(t, conn.Connect(context.Background(), "module.v2"))

	mod, err := server.StreamInfo(context.Background(), stream)
	require.NoError(t, err)
	assert.Equal(t, streamconn.ModuleRef("module.v2"), mod)
}

// eventCollector gathers every callback invocation from Subscribe so the
// test can assert on them after the fake server's delivery goroutine
// finishes, without racing on a plain slice.
type eventCollector struct {
	mu          sync.Mutex
	total       int
	backfillSeq []bool
	done        chan struct{}
}

func newEventCollector() *eventCollector {
	return &eventCollector{done: make(chan struct{})}
}

func (c *eventCollector) add(events []core.Event, isBackfill bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total += len(events)
	c.backfillSeq = append(c.backfillSeq, isBackfill)
	if !isBackfill {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}
}

func (c *eventCollector) waitForLive(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscription to reach the live tail")
	}
}

func (c *eventCollector) sawBackfillTrue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range c.backfillSeq {
		if v {
			return true
		}
	}
	return false
}

func TestSubscribe_DeliversBackfillThenLive(t *testing.T) {
	server := fake.New(2)
	stream, err := server.CreateStream(context.Background(), "module.v1")
	require.NoError(t, err)

	for range 5 {
		require.NoError(t, server.SendEvent(context.Background(), stream, []byte(`{}`)))
	}

	conn := streamconn.New(server, stream, streamconn.SpacePin{})

	collector := newEventCollector()
	sub, err := conn.Subscribe(context.Background(), func(events []core.Event, meta streamconn.BatchMeta) error {
		collector.add(events, meta.IsBackfill)
		return nil
	}, ids.ZeroIndex)
	require.NoError(t, err)
	require.NotNil(t, sub)

	collector.waitForLive(t)
	assert.True(t, collector.sawBackfillTrue())
	assert.Equal(t, 5, collector.total)

	require.NoError(t, sub.Unsubscribe())
	require.ErrorIs(t, sub.Unsubscribe(), transport.ErrAlreadyUnsubscribed)
}

func TestSubscribe_EachPageGetsADistinctBatchId(t *testing.T) {
	server := fake.New(2)
	stream, err := server.CreateStream(context.Background(), "module.v1")
	require.NoError(t, err)

	for range 5 {
		require.NoError(t, server.SendEvent(context.Background(), stream, []byte(`{}`)))
	}

	conn := streamconn.New(server, stream, streamconn.SpacePin{})

	var mu sync.Mutex
	var batchIDs []ids.BatchId
	collector := newEventCollector()
	_, err = conn.Subscribe(context.Background(), func(events []core.Event, meta streamconn.BatchMeta) error {
		mu.Lock()
		batchIDs = append(batchIDs, meta.BatchId)
		mu.Unlock()
		collector.add(events, meta.IsBackfill)
		return nil
	}, ids.ZeroIndex)
	require.NoError(t, err)

	collector.waitForLive(t)

	mu.Lock()
	defer mu.Unlock()
	require.Greater(t, len(batchIDs), 1, "fake server with page size 2 must deliver more than one page for 5 events")
	seen := make(map[ids.BatchId]struct{}, len(batchIDs))
	for _, id := range batchIDs {
		_, dup := seen[id]
		assert.False(t, dup, "BatchId %s reused across pages", id)
		seen[id] = struct{}{}
	}
}

func TestLazyLoadRoom_SkipsRefetchWithinCachedWindow(t *testing.T) {
	server := fake.New(10)
	stream, err := server.CreateStream(context.Background(), "module.v1")
	require.NoError(t, err)
	require.NoError(t, server.SendEvent(context.Background(), stream, []byte(`{}`)))
	require.NoError(t, server.SendEvent(context.Background(), stream, []byte(`{}`)))

	conn := streamconn.New(server, stream, streamconn.SpacePin{})
	room := ids.NewRoomId()

	first, err := conn.LazyLoadRoom(context.Background(), room, 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	oldest := first[0].StreamIndex
	for _, ev := range first {
		if ev.StreamIndex < oldest {
			oldest = ev.StreamIndex
		}
	}

	before := oldest
	second, err := conn.LazyLoadRoom(context.Background(), room, 10, &before)
	require.NoError(t, err)
	assert.Empty(t, second, "request fully covered by the cached cursor must not hit the transport")
}

func TestFetchRoom_RejectsRoomsPin(t *testing.T) {
	server := fake.New(10)
	stream, err := server.CreateStream(context.Background(), "module.v1")
	require.NoError(t, err)

	conn := streamconn.New(server, stream, streamconn.RoomsPin{RoomIds: []ids.RoomId{ids.NewRoomId()}})
	_, err = conn.FetchRoom(context.Background(), ids.NewRoomId(), 10, nil)
	require.ErrorIs(t, err, streamconn.ErrNotImplemented)
}
