// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package fake_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/transport"
	"github.com/spacewire/sync/internal/transport/fake"
)

type staticToken struct{ tok string }

func (s staticToken) Token(context.Context) (string, error) { return s.tok, nil }

func TestSendEvent_AssignsIncreasingIndex(t *testing.T) {
	s := fake.New(0)
	ctx := context.Background()
	stream := ids.StreamId("space:1")

	require.NoError(t, s.SendEvent(ctx, stream, []byte("one")))
	require.NoError(t, s.SendEvent(ctx, stream, []byte("two")))

	rows, err := s.Query(ctx, stream, transport.Query{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ids.StreamIndex(1), rows[0].Idx)
	assert.Equal(t, ids.StreamIndex(2), rows[1].Idx)
}

func TestQuery_AfterExcludesUpToIndex(t *testing.T) {
	s := fake.New(0)
	ctx := context.Background()
	stream := ids.StreamId("space:1")
	require.NoError(t, s.SendEvents(ctx, stream, [][]byte{[]byte("a"), []byte("b"), []byte("c")}))

	rows, err := s.Query(ctx, stream, transport.Query{After: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ids.StreamIndex(2), rows[0].Idx)
	assert.Equal(t, ids.StreamIndex(3), rows[1].Idx)
}

func TestSubscribeEvents_PaginatesThenSignalsCaughtUp(t *testing.T) {
	s := fake.New(2)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stream := ids.StreamId("space:1")
	require.NoError(t, s.SendEvents(ctx, stream, [][]byte{[]byte("a"), []byte("b"), []byte("c")}))

	var mu sync.Mutex
	var pages [][]transport.Row
	var hasMoreFlags []bool
	done := make(chan struct{})

	sub, err := s.SubscribeEvents(ctx, stream, transport.Query{}, func(rows []transport.Row, hasMore bool) error {
		mu.Lock()
		pages = append(pages, rows)
		hasMoreFlags = append(hasMoreFlags, hasMore)
		caughtUp := !hasMore
		mu.Unlock()
		if caughtUp {
			close(done)
		}
		return nil
	})
	require.NoError(t, err)
	defer sub.Unsubscribe() //nolint:errcheck

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for subscription to catch up")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, pages)
	assert.False(t, hasMoreFlags[len(hasMoreFlags)-1], "final callback must report hasMore=false")
}

func TestUnsubscribe_IsIdempotentError(t *testing.T) {
	s := fake.New(0)
	ctx := context.Background()
	sub, err := s.SubscribeEvents(ctx, "space:1", transport.Query{}, func([]transport.Row, bool) error { return nil })
	require.NoError(t, err)

	require.NoError(t, sub.Unsubscribe())
	assert.ErrorIs(t, sub.Unsubscribe(), transport.ErrAlreadyUnsubscribed)
}

func TestUpdateModule_RequiresUpload(t *testing.T) {
	s := fake.New(0)
	ctx := context.Background()
	stream, err := s.CreateStream(ctx, "base-module")
	require.NoError(t, err)

	err = s.UpdateModule(ctx, stream, "unknown-module")
	assert.ErrorIs(t, err, transport.ErrModuleNotFound)

	require.NoError(t, s.UploadModule(ctx, transport.ModuleDef{Ref: "known-module", Body: []byte("{}")}))
	require.NoError(t, s.UpdateModule(ctx, stream, "known-module"))

	module, err := s.StreamInfo(ctx, stream)
	require.NoError(t, err)
	assert.Equal(t, transport.ModuleRef("known-module"), module)
}

func TestAuthenticate_UsesTokenProvider(t *testing.T) {
	s := fake.New(0)
	hs, err := s.Authenticate(context.Background(), staticToken{tok: "abc"})
	require.NoError(t, err)
	assert.NotEmpty(t, hs.User)
}
