// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package identity

import (
	"context"

	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/store"
)

// ProfileFetcher resolves the remote profile data a codec transform
// deferred (core.ProfileFetchBundle) into the mutations that materialize
// it. Implemented by the same collaborator that backs the transport
// connection in production; tests supply a stub.
type ProfileFetcher interface {
	FetchProfiles(ctx context.Context, users []ids.UserId) ([]store.Mutation, error)
}

// ProfileLookup batches and deduplicates the user ids collapsed out of a
// materializer batch's ProfileFetchBundles into one call to fetcher,
// matching the teacher's batched-lookup style for reducing round trips
// (internal/world/events.go groups emits per entity rather than per call).
// A fetch failure is never fatal to the batch: it is returned so the
// materializer can downgrade it to a warning and continue applying every
// mutation that did not depend on the fetch.
func ProfileLookup(ctx context.Context, fetcher ProfileFetcher, users []ids.UserId) ([]store.Mutation, error) {
	seen := make(map[ids.UserId]struct{}, len(users))
	deduped := make([]ids.UserId, 0, len(users))
	for _, u := range users {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		deduped = append(deduped, u)
	}
	if len(deduped) == 0 {
		return nil, nil
	}
	return fetcher.FetchProfiles(ctx, deduped)
}
