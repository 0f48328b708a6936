// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package materializer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacewire/sync/internal/core"
	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/pkg/errutil"
)

// FailedStatement records one event whose apply step failed, truncated
// the way internal/store/postgres truncates its own error context so a
// report never balloons with a full mutation dump.
type FailedStatement struct {
	EventId ids.EventId
	Err     error
}

// MaterializationSummary is the per-batch scoreboard: how many events
// landed in each terminal state, and how long the batch took.
type MaterializationSummary struct {
	Applied  int
	Stashed  int
	Errored  int
	Duration time.Duration
}

// MaterializationWarnings carries the detail behind a summary's
// non-Applied counts: which events are still waiting on a dependency,
// which statements failed and why, and which events were invalid.
type MaterializationWarnings struct {
	Stashed      []ids.EventId
	Failed       []FailedStatement
	FailedEvents []ids.EventId
	ProfileFetch error
}

// Report is one Materializer.Reports() channel item: a completed
// batch's summary plus its warnings (zero value if none).
type Report struct {
	BatchId  ids.BatchId
	StreamId ids.StreamId
	Summary  MaterializationSummary
	Warnings MaterializationWarnings
}

// IsEmpty reports whether there is nothing worth logging.
func (w MaterializationWarnings) IsEmpty() bool {
	return len(w.Stashed) == 0 && len(w.Failed) == 0 && len(w.FailedEvents) == 0 && w.ProfileFetch == nil
}

// Summary implements errutil.Warning.
func (w MaterializationWarnings) Summary() string {
	return fmt.Sprintf("stashed=%d failed=%d invalid=%d profileFetchErr=%v",
		len(w.Stashed), len(w.Failed), len(w.FailedEvents), w.ProfileFetch != nil)
}

func (m *Materializer) advanceAndReport(_ context.Context, batchID ids.BatchId, stream ids.StreamId, result pipelineResult, profileWarning error, start time.Time) {
	summary := MaterializationSummary{Duration: time.Since(start)}
	warnings := MaterializationWarnings{ProfileFetch: profileWarning}

	for _, r := range result.results {
		switch r.Kind {
		case core.ResultApplied:
			summary.Applied++
		case core.ResultStashed:
			summary.Stashed++
			warnings.Stashed = append(warnings.Stashed, r.EventId)
		case core.ResultErrored:
			summary.Errored++
			warnings.FailedEvents = append(warnings.FailedEvents, r.EventId)
		case core.ResultInvalid:
			summary.Errored++
			warnings.FailedEvents = append(warnings.FailedEvents, r.EventId)
		}
	}
	warnings.Failed = result.failedStmts

	report := Report{BatchId: batchID, StreamId: stream, Summary: summary, Warnings: warnings}
	if !warnings.IsEmpty() {
		errutil.AssertWarning(slog.Default(), warnings, "batch", batchID, "stream", stream)
	}

	select {
	case m.reports <- report:
	default:
		slog.Warn("materializer report channel full, dropping report", "batch", batchID, "stream", stream)
	}
}
