// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package client_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/spacewire/sync/internal/client"
	"github.com/spacewire/sync/internal/codec"
	identitymemory "github.com/spacewire/sync/internal/identity/memory"
	"github.com/spacewire/sync/internal/materializer"
	"github.com/spacewire/sync/internal/store/memory"
	"github.com/spacewire/sync/internal/transport"
	"github.com/spacewire/sync/internal/transport/fake"
)

func envelope(t *testing.T, eventType string, body any) []byte {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	wire, err := json.Marshal(struct {
		Type string          `json:"type"`
		Body json.RawMessage `json:"body"`
	}{Type: eventType, Body: raw})
	require.NoError(t, err)
	return wire
}

// TestFreshInstallHappyPath drives spec.md §8 scenario 1 end to end:
// a client with no local store state logs in, Start finds the personal
// stream its profile record already points to and subscribes it, and the
// worker materializes every
// batch the server delivers -- a profile update and two space joins
// with a read marker, interleaved with no-op (unrecognized) events --
// into the expected final store state.
func TestFreshInstallHappyPath(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	server := fake.New(3) // 3-row pages so the 7-event fixture spans multiple batches
	require.NoError(t, server.UploadModule(context.Background(), transport.ModuleDef{Ref: "space.v1"}))
	st := memory.New()
	profiles := identitymemory.New()

	sup := client.New("alice", client.Deps{
		Server:   server,
		Store:    st,
		Tokens:   staticToken{},
		Module:   "space.v1",
		Profiles: profiles,
	})

	// Pre-seed the personal stream's event log before Start so identity.Ensure
	// finds and reuses it rather than minting a new one -- the fixture events
	// below are addressed to this id.
	personalID, err := server.CreateStream(context.Background(), "space.v1")
	require.NoError(t, err)
	require.NoError(t, profiles.Put(context.Background(), "alice", personalID))

	spaceOne, err := server.CreateStream(context.Background(), "space.v1")
	require.NoError(t, err)
	spaceTwo, err := server.CreateStream(context.Background(), "space.v1")
	require.NoError(t, err)

	require.NoError(t, server.SendEvents(context.Background(), personalID, [][]byte{
		envelope(t, codec.TypeProfileUpdate, codec.ProfileUpdatePayload{DisplayName: "Alice", AvatarURL: "https://example/a.png"}),
		envelope(t, "space.example.future.v0", map[string]any{"noop": 1}),
		envelope(t, codec.TypeMembershipJoin, codec.MembershipJoinPayload{StreamId: string(spaceOne)}),
		envelope(t, codec.TypeMembershipJoin, codec.MembershipJoinPayload{StreamId: string(spaceTwo)}),
		envelope(t, "space.example.future.v0", map[string]any{"noop": 2}),
		envelope(t, codec.TypeMembershipReadMark, codec.ReadMarkerPayload{RoomId: "R1", ReadAt: time.Unix(1700000000, 0).UTC()}),
		envelope(t, "space.example.future.v0", map[string]any{"noop": 3}),
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, sup.Start(ctx))
	assert.Equal(t, client.StatusOnline, sup.Status().Current())

	m := materializer.New(st, codec.Registry, codec.JSONDecoder{}, nil)
	reports := m.Reports()
	worker := client.NewWorker(sup, m)
	worker.Run(ctx)

	require.Eventually(t, func() bool {
		idx, err := st.Cursor(ctx, personalID)
		return err == nil && idx == 7
	}, 3*time.Second, 10*time.Millisecond, "personal stream cursor must reach 7")

	row, ok := st.Row("profiles", map[string]any{"user_id": "alice"})
	require.True(t, ok)
	assert.Equal(t, "Alice", row["display_name"])

	_, ok = st.Row("joined_spaces", map[string]any{"user_id": "alice", "stream_id": string(spaceOne)})
	assert.True(t, ok)
	_, ok = st.Row("joined_spaces", map[string]any{"user_id": "alice", "stream_id": string(spaceTwo)})
	assert.True(t, ok)

	marker, ok := st.Row("read_markers", map[string]any{"user_id": "alice", "stream_id": string(personalID), "room_id": "R1"})
	require.True(t, ok)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), marker["read_at"])

	require.Eventually(t, func() bool {
		_, ok := sup.Stream(spaceOne)
		return ok
	}, 3*time.Second, 10*time.Millisecond, "joining a space must open a new ConnectedStream")
	require.Eventually(t, func() bool {
		_, ok := sup.Stream(spaceTwo)
		return ok
	}, 3*time.Second, 10*time.Millisecond, "joining a space must open a new ConnectedStream")

	drain := make([]materializer.Report, 0)
	for len(drain) < 1 {
		select {
		case r := <-reports:
			drain = append(drain, r)
		case <-ctx.Done():
			t.Fatal("timed out waiting for a materialization report")
		}
	}
}
