// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package materializer

import (
	"context"
	"sort"
	"time"

	"github.com/spacewire/sync/internal/core"
	"github.com/spacewire/sync/internal/ids"
)

// pipelineResult accumulates what happened to every event the apply
// stage touched, plus the highest StreamIndex that was successfully
// applied (the commit-boundary cursor value, step 6).
type pipelineResult struct {
	results     []core.EventResult
	maxApplied  ids.StreamIndex
	anyApplied  bool
	failedStmts []FailedStatement
}

// applyAndReport is the entry point for a batch whose bundles are
// already transformed (a stash re-resolution, core.TransformedBatch) --
// only steps 4-6 run.
func (m *Materializer) applyAndReport(ctx context.Context, batchID ids.BatchId, stream ids.StreamId, bundles []core.Bundle, start time.Time) {
	ready := make([]core.ReadyBundle, 0, len(bundles))
	for _, b := range bundles {
		if rb, ok := b.(core.ReadyBundle); ok {
			ready = append(ready, rb)
		}
	}
	result := m.applyReady(ctx, stream, ready)
	m.advanceAndReport(ctx, batchID, stream, result, nil, start)
}

// applyReady is steps 4-6: open one store transaction scoped to the
// batch, apply every ready bundle in ascending StreamIndex order (ties
// broken by EventId), each under its own savepoint so one failing
// statement marks only that event errored, then advance the cursor to
// the highest successfully-applied index -- all inside the same
// transaction so cursor and mutation rows commit atomically.
func (m *Materializer) applyReady(ctx context.Context, stream ids.StreamId, ready []core.ReadyBundle) pipelineResult {
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].StreamIndex != ready[j].StreamIndex {
			return ready[i].StreamIndex < ready[j].StreamIndex
		}
		return ready[i].EventId.Compare(ready[j].EventId) < 0
	})

	result := pipelineResult{}
	var appliedIds []ids.EventId

	err := m.store.InTransaction(ctx, func(ctx context.Context) error {
		for _, rb := range ready {
			kind, stmtErr := m.applyEvent(ctx, stream, rb)
			switch kind {
			case core.ResultApplied:
				result.anyApplied = true
				if rb.StreamIndex > result.maxApplied {
					result.maxApplied = rb.StreamIndex
				}
				appliedIds = append(appliedIds, rb.EventId)
			case core.ResultErrored:
				result.failedStmts = append(result.failedStmts, FailedStatement{
					EventId: rb.EventId,
					Err:     stmtErr,
				})
			}
			result.results = append(result.results, core.EventResult{EventId: rb.EventId, Kind: kind, Err: stmtErr})
		}

		if result.anyApplied {
			return m.store.AdvanceCursor(ctx, stream, result.maxApplied)
		}
		return nil
	})
	if err != nil {
		// A catastrophic transaction failure (not a per-event savepoint
		// failure, which applyEvent already contained): the whole batch
		// is aborted, the cursor is not advanced, nothing in `ready` is
		// considered applied. Supervisor-level reconnect will redeliver
		// this batch (spec §4.4 "Store-transaction failure").
		for i := range result.results {
			result.results[i].Kind = core.ResultErrored
			result.results[i].Err = err
		}
		return pipelineResult{results: result.results}
	}

	resolved := m.stash.Resolve(appliedIds)
	if len(resolved) > 0 && m.mb != nil {
		bundles := make([]core.Bundle, len(resolved))
		var latest ids.StreamIndex
		for i, rb := range resolved {
			bundles[i] = rb
			if rb.StreamIndex > latest {
				latest = rb.StreamIndex
			}
		}
		// Re-queued through the mailbox for the next Consume iteration
		// (step 7), never applied inline here, so one batch's apply step
		// never blocks on another's -- keeps "one batch at a time" simple.
		m.mb.Push(core.TransformedBatch{
			BatchId:     ids.NewBatchId(),
			StreamId:    stream,
			Bundles:     bundles,
			LatestIndex: latest,
			Prio:        core.PriorityForeground,
		}, core.PriorityForeground)
	}

	return result
}

// applyEvent runs one ready bundle's mutations inside a savepoint
// nested in the caller's transaction. A duplicate RecordEvent (already
// in event_log) is treated as a no-op success, matching the idempotent
// replay requirement (spec §4.4 step 5, "on conflict, skip silently").
func (m *Materializer) applyEvent(ctx context.Context, stream ids.StreamId, rb core.ReadyBundle) (core.ResultKind, error) {
	var stmtErr error
	err := m.store.InSavepoint(ctx, func(ctx context.Context) error {
		inserted, err := m.store.RecordEvent(ctx, stream, rb.EventId, rb.StreamIndex)
		if err != nil {
			return err
		}
		if !inserted {
			return nil // duplicate replay: already applied, nothing left to do
		}
		for _, mut := range rb.Mutations {
			if err := m.store.Apply(ctx, mut); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		stmtErr = err
		return core.ResultErrored, stmtErr
	}
	return core.ResultApplied, nil
}
