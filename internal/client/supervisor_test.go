// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package client_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacewire/sync/internal/client"
	"github.com/spacewire/sync/internal/codec"
	identitymemory "github.com/spacewire/sync/internal/identity/memory"
	"github.com/spacewire/sync/internal/materializer"
	"github.com/spacewire/sync/internal/store"
	"github.com/spacewire/sync/internal/store/memory"
	"github.com/spacewire/sync/internal/transport"
	"github.com/spacewire/sync/internal/transport/fake"
)

type staticToken struct{}

func (staticToken) Token(context.Context) (string, error) { return "tok", nil }

func newSupervisor(t *testing.T) (*client.Supervisor, *fake.Server, *memory.Store) {
	t.Helper()
	server := fake.New(0)
	require.NoError(t, server.UploadModule(context.Background(), transport.ModuleDef{Ref: "space.v1"}))
	st := memory.New()
	profiles := identitymemory.New()

	sup := client.New("fake-user", client.Deps{
		Server:   server,
		Store:    st,
		Tokens:   staticToken{},
		Module:   "space.v1",
		Profiles: profiles,
	})
	return sup, server, st
}

func TestStart_CreatesPersonalStreamAndGoesOnline(t *testing.T) {
	sup, _, _ := newSupervisor(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, sup.Start(ctx))
	assert.Equal(t, client.StatusOnline, sup.Status().Current())
}

func TestStart_SubscribesJoinedSpaces(t *testing.T) {
	sup, server, st := newSupervisor(t)

	spaceID, err := server.CreateStream(context.Background(), "space.v1")
	require.NoError(t, err)
	require.NoError(t, st.Apply(context.Background(), store.Mutation{
		Table: "joined_spaces",
		PK: map[string]any{
			"user_id":   "fake-user",
			"stream_id": string(spaceID),
		},
		Set: map[string]any{"joined_at": time.Now()},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sup.Start(ctx))

	_, ok := sup.Stream(spaceID)
	assert.True(t, ok)
}

func TestStart_FailsOnAuthMismatch(t *testing.T) {
	server := fake.New(0)
	st := memory.New()
	profiles := identitymemory.New()

	sup := client.New("someone-else", client.Deps{
		Server:   server,
		Store:    st,
		Tokens:   staticToken{},
		Module:   "space.v1",
		Profiles: profiles,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.Error(t, sup.Start(ctx))
}

type fakeMetrics struct {
	mu       sync.Mutex
	observed []materializer.Report
}

func (f *fakeMetrics) Observe(r materializer.Report) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observed = append(f.observed, r)
}

func (f *fakeMetrics) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.observed)
}

// TestWorker_ForwardsReportsToMetrics proves Worker forwards every
// materializer report to an attached Metrics from within its own
// report loop -- Reports() is single-consumer (spec §5), so this must
// not be implemented as a second reader of the channel.
func TestWorker_ForwardsReportsToMetrics(t *testing.T) {
	sup, server, st := newSupervisor(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sup.Start(ctx))

	require.NoError(t, server.SendEvents(context.Background(), sup.PersonalStreamId(), [][]byte{
		envelope(t, codec.TypeProfileUpdate, codec.ProfileUpdatePayload{DisplayName: "Alice", AvatarURL: "https://example/a.png"}),
	}))

	m := materializer.New(st, codec.Registry, codec.JSONDecoder{}, nil)
	metrics := &fakeMetrics{}
	w := client.NewWorker(sup, m).WithMetrics(metrics)
	w.Run(ctx)

	require.Eventually(t, func() bool {
		return metrics.len() >= 1
	}, time.Second, 10*time.Millisecond, "worker must forward the batch report to metrics")
}

func TestWorker_FlipsStatusOfflineOnDisconnect(t *testing.T) {
	sup, server, st := newSupervisor(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sup.Start(ctx))

	m := materializer.New(st, codec.Registry, codec.JSONDecoder{}, nil)
	w := client.NewWorker(sup, m)
	w.Run(ctx)

	server.InjectDisconnect(transport.ErrStreamNotFound)

	require.Eventually(t, func() bool {
		return sup.Status().Current() == client.StatusOffline
	}, time.Second, 10*time.Millisecond)
}
