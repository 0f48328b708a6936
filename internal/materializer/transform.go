// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package materializer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/spacewire/sync/internal/codec"
	"github.com/spacewire/sync/internal/core"
	"github.com/spacewire/sync/internal/identity"
	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/pkg/errutil"
)

// runFullPipeline is the entry point for a batch fresh off the wire:
// decode/validate (step 1), dependency gate (step 2), profile fetch
// (step 3), then the same apply stage (steps 4-6) a re-queued
// TransformedBatch uses.
func (m *Materializer) runFullPipeline(ctx context.Context, batchID ids.BatchId, stream ids.StreamId, events []core.Event, _ core.Priority, start time.Time) {
	bundles, invalid := m.transformEvents(stream, events)

	var profileUsers []ids.UserId
	var fetchBundles []*core.ProfileFetchBundle
	ready := make([]core.ReadyBundle, 0, len(bundles))
	for i := range bundles {
		switch b := bundles[i].(type) {
		case core.ProfileFetchBundle:
			fetchBundles = append(fetchBundles, &b)
			profileUsers = append(profileUsers, b.UserIds...)
		case core.ReadyBundle:
			ready = append(ready, b)
		}
	}

	var profileWarning error
	if len(profileUsers) > 0 && m.fetcher != nil {
		mutations, err := identity.ProfileLookup(ctx, m.fetcher, profileUsers)
		if err != nil {
			profileWarning = err
			slog.WarnContext(ctx, "profile fetch failed, continuing without profile mutations",
				"stream", stream, "users", len(profileUsers), "error", err)
		} else {
			for _, fb := range fetchBundles {
				fb.Mutations = mutations
			}
		}
	}

	// A resolved fetch carries its own event identity, so it folds back
	// into `ready` and goes through the same gate/apply steps as any other
	// bundle. A failed fetch (profileWarning != nil) drops these events
	// silently; RecordEvent is never called for them so a later batch
	// redelivering the same event will retry the fetch.
	if profileWarning == nil {
		for _, fb := range fetchBundles {
			ready = append(ready, core.ReadyBundle{
				EventId:     fb.EventId,
				StreamIndex: fb.StreamIndex,
				Mutations:   fb.Mutations,
			})
		}
	}

	gated, stashed := m.gateDependencies(ctx, stream, ready)

	result := m.applyReady(ctx, stream, gated)
	for _, r := range stashed {
		result.results = append(result.results, core.EventResult{EventId: r, Kind: core.ResultStashed})
	}
	idxOf := make(map[ids.EventId]ids.StreamIndex, len(events))
	for _, ev := range events {
		idxOf[ev.ID] = ev.StreamIndex
	}
	var maxInvalid ids.StreamIndex
	for _, iv := range invalid {
		eventID := ids.EventId{}
		if iv.EventId != nil {
			eventID = *iv.EventId
			maxInvalid = max(maxInvalid, idxOf[eventID])
		}
		result.results = append(result.results, core.EventResult{
			EventId: eventID,
			Kind:    core.ResultInvalid,
			Err:     errors.New(iv.Message),
		})
	}

	// A skipped (invalid) event still moves the cursor past its index.
	if maxInvalid > 0 {
		if err := m.store.InTransaction(ctx, func(ctx context.Context) error {
			return m.store.AdvanceCursor(ctx, stream, maxInvalid)
		}); err != nil {
			slog.ErrorContext(ctx, "failed to advance cursor past skipped events", "stream", stream, "error", err)
		}
	}

	m.advanceAndReport(ctx, batchID, stream, result, profileWarning, start)
}

// transformEvents runs step 1 (decode, registry lookup, validate) and
// produces a Bundle per event: ReadyBundle, ProfileFetchBundle, or
// InvalidEventBundle collected separately for reporting.
func (m *Materializer) transformEvents(stream ids.StreamId, events []core.Event) (bundles []core.Bundle, invalid []core.InvalidEventBundle) {
	for _, ev := range events {
		decoded, err := m.decoder.Decode(ev.Body)
		if err != nil {
			id := ev.ID
			protoErr := oops.Code("PROTOCOL_DECODE_FAILED").With("event", ev.ID.String()).Wrap(err)
			errutil.LogError(slog.Default(), "protocol error decoding event", protoErr)
			invalid = append(invalid, core.InvalidEventBundle{EventId: &id, Message: protoErr.Error()})
			continue
		}

		descriptor, ok := m.registry[decoded.Type]
		if !ok {
			id := ev.ID
			protoErr := oops.Code("PROTOCOL_UNKNOWN_TYPE").With("event", ev.ID.String()).With("type", decoded.Type).
				Errorf("unknown event type: %s", decoded.Type)
			errutil.LogError(slog.Default(), "protocol error decoding event", protoErr)
			invalid = append(invalid, core.InvalidEventBundle{EventId: &id, Message: protoErr.Error()})
			continue
		}

		if descriptor.Validate != nil {
			if err := descriptor.Validate(decoded); err != nil {
				id := ev.ID
				invalid = append(invalid, core.InvalidEventBundle{EventId: &id, Message: err.Error()})
				continue
			}
		}

		var dependsOn []ids.EventId
		if descriptor.DependsOn != nil {
			dependsOn = descriptor.DependsOn(decoded)
		}

		if descriptor.Fetch != nil {
			bundles = append(bundles, core.ProfileFetchBundle{
				EventId:     ev.ID,
				StreamIndex: ev.StreamIndex,
				UserIds:     descriptor.Fetch(decoded),
			})
			continue
		}

		mutations, err := descriptor.Transform(codec.TransformContext{EventId: ev.ID, Room: ev.Room}, stream, ev.User, decoded)
		if err != nil {
			id := ev.ID
			invalid = append(invalid, core.InvalidEventBundle{EventId: &id, Message: err.Error()})
			continue
		}

		bundles = append(bundles, core.ReadyBundle{
			EventId:     ev.ID,
			StreamIndex: ev.StreamIndex,
			Mutations:   mutations,
			DependsOn:   dependsOn,
		})
	}
	return bundles, invalid
}

// gateDependencies is step 2: a ready bundle whose DependsOn ids are not
// all already recorded in event_log is moved to the stash instead of
// being applied this round.
func (m *Materializer) gateDependencies(ctx context.Context, stream ids.StreamId, ready []core.ReadyBundle) (gated []core.ReadyBundle, stashedIds []ids.EventId) {
	for _, rb := range ready {
		var missing []ids.EventId
		for _, dep := range rb.DependsOn {
			has, err := m.store.HasEvent(ctx, stream, dep)
			if err != nil || !has {
				missing = append(missing, dep)
			}
		}
		if len(missing) == 0 {
			gated = append(gated, rb)
			continue
		}
		m.stash.Add(rb, missing)
		stashedIds = append(stashedIds, rb.EventId)
	}
	return gated, stashedIds
}
