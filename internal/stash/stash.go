// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package stash holds bundles the materializer could not apply yet
// because one or more dependency events have not been recorded, keyed by
// the first unmet dependency so a newly-applied event can cheaply find
// everything it unblocks without scanning the whole stash.
package stash

import (
	"sync"

	"github.com/spacewire/sync/internal/core"
	"github.com/spacewire/sync/internal/ids"
)

// entry tracks one stashed bundle and the dependency ids it is still
// waiting on, in the order the codec returned them.
type entry struct {
	bundle    core.ReadyBundle
	remaining []ids.EventId
}

// Stash is safe for concurrent use; the materializer is single-consumer
// today (spec §5) but Stash does not assume that.
type Stash struct {
	mu    sync.Mutex
	byKey map[ids.EventId][]*entry

	// resolved accumulates every event id ever passed to Resolve, so a
	// bundle re-keyed to its next dependency can notice that dependency
	// was already recorded -- e.g. the second of two out-of-order
	// dependencies lands before the first -- instead of filing itself
	// under a key that will never be revisited.
	resolved map[ids.EventId]struct{}
}

// New creates an empty Stash.
func New() *Stash {
	return &Stash{
		byKey:    make(map[ids.EventId][]*entry),
		resolved: make(map[ids.EventId]struct{}),
	}
}

// Add stashes bundle, blocked on the ids in missing (the subset of its
// DependsOn list that internal/store.Store.HasEvent reported as not yet
// recorded). missing must be non-empty; a bundle with no missing
// dependencies should be applied directly, never stashed.
func (s *Stash) Add(bundle core.ReadyBundle, missing []ids.EventId) {
	if len(missing) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &entry{bundle: bundle, remaining: append([]ids.EventId{}, missing...)}
	s.keyLocked(e, nil)
}

// Resolve reports which stashed bundles are now unblocked given that the
// events in applied were just durably recorded. A bundle blocked on
// multiple dependencies is re-keyed to its next unmet one until none
// remain, at which point it is returned and removed from the stash.
func (s *Stash) Resolve(applied []ids.EventId) []core.ReadyBundle {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range applied {
		s.resolved[id] = struct{}{}
	}

	var ready []core.ReadyBundle
	for _, id := range applied {
		entries := s.byKey[id]
		if len(entries) == 0 {
			continue
		}
		delete(s.byKey, id)
		for _, e := range entries {
			e.remaining = removeFirst(e.remaining, id)
			s.keyLocked(e, &ready)
		}
	}
	return ready
}

// keyLocked drops every dependency of e already present in s.resolved,
// then either appends e's bundle to ready (remaining now empty) or files
// e under its first still-unresolved dependency. Must hold s.mu.
func (s *Stash) keyLocked(e *entry, ready *[]core.ReadyBundle) {
	for len(e.remaining) > 0 {
		if _, done := s.resolved[e.remaining[0]]; !done {
			break
		}
		e.remaining = e.remaining[1:]
	}
	if len(e.remaining) == 0 {
		if ready != nil {
			*ready = append(*ready, e.bundle)
		}
		return
	}
	key := e.remaining[0]
	s.byKey[key] = append(s.byKey[key], e)
}

// Len reports how many bundles are currently stashed, for metrics and
// tests.
func (s *Stash) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, entries := range s.byKey {
		n += len(entries)
	}
	return n
}

func removeFirst(list []ids.EventId, target ids.EventId) []ids.EventId {
	for i, id := range list {
		if id == target {
			return append(append([]ids.EventId{}, list[:i]...), list[i+1:]...)
		}
	}
	return list
}
