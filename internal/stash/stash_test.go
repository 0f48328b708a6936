// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package stash_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacewire/sync/internal/core"
	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/stash"
)

func TestStash_ResolveSingleDependency(t *testing.T) {
	s := stash.New()
	dep := ids.NewEventId()
	bundle := core.ReadyBundle{EventId: ids.NewEventId(), DependsOn: []ids.EventId{dep}}
	s.Add(bundle, []ids.EventId{dep})
	require.Equal(t, 1, s.Len())

	ready := s.Resolve([]ids.EventId{ids.NewEventId()})
	assert.Empty(t, ready, "resolving an unrelated id must not unblock anything")
	assert.Equal(t, 1, s.Len())

	ready = s.Resolve([]ids.EventId{dep})
	require.Len(t, ready, 1)
	assert.Equal(t, bundle.EventId, ready[0].EventId)
	assert.Equal(t, 0, s.Len())
}

func TestStash_RekeysOnSecondDependency(t *testing.T) {
	s := stash.New()
	dep1 := ids.NewEventId()
	dep2 := ids.NewEventId()
	bundle := core.ReadyBundle{EventId: ids.NewEventId(), DependsOn: []ids.EventId{dep1, dep2}}
	s.Add(bundle, []ids.EventId{dep1, dep2})

	ready := s.Resolve([]ids.EventId{dep1})
	assert.Empty(t, ready, "bundle still waits on dep2")
	assert.Equal(t, 1, s.Len())

	ready = s.Resolve([]ids.EventId{dep2})
	require.Len(t, ready, 1)
	assert.Equal(t, bundle.EventId, ready[0].EventId)
}

func TestStash_RekeysWhenLaterDependencyResolvesFirst(t *testing.T) {
	s := stash.New()
	dep1 := ids.NewEventId()
	dep2 := ids.NewEventId()
	bundle := core.ReadyBundle{EventId: ids.NewEventId(), DependsOn: []ids.EventId{dep1, dep2}}
	s.Add(bundle, []ids.EventId{dep1, dep2})

	// dep2 lands before dep1: the bundle is still keyed on dep1, so this
	// resolve pass does not touch it yet.
	ready := s.Resolve([]ids.EventId{dep2})
	assert.Empty(t, ready, "bundle still waits on dep1")
	assert.Equal(t, 1, s.Len())

	// dep1 arrives next; re-keying to dep2 must notice dep2 was already
	// recorded rather than filing the bundle under a key that will never
	// be revisited.
	ready = s.Resolve([]ids.EventId{dep1})
	require.Len(t, ready, 1, "bundle must unblock once its last outstanding dependency is satisfied, regardless of arrival order")
	assert.Equal(t, bundle.EventId, ready[0].EventId)
	assert.Equal(t, 0, s.Len())
}

func TestStash_MultipleBundlesOnSameDependency(t *testing.T) {
	s := stash.New()
	dep := ids.NewEventId()
	b1 := core.ReadyBundle{EventId: ids.NewEventId(), DependsOn: []ids.EventId{dep}}
	b2 := core.ReadyBundle{EventId: ids.NewEventId(), DependsOn: []ids.EventId{dep}}
	s.Add(b1, []ids.EventId{dep})
	s.Add(b2, []ids.EventId{dep})

	ready := s.Resolve([]ids.EventId{dep})
	assert.Len(t, ready, 2)
}
