// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package materializer is the single-consumer loop that applies batches
// pulled from internal/mailbox to the local store: decode, dependency
// gate, apply, advance cursor, re-resolve the stash, report. Grounded on
// the teacher's transaction and savepoint plumbing
// (internal/world/postgres/transactor.go, exit_repo.go's per-row
// savepoint nesting), generalized from "insert an exit" to "apply an
// arbitrary codec-produced mutation set".
package materializer

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/spacewire/sync/internal/codec"
	"github.com/spacewire/sync/internal/core"
	"github.com/spacewire/sync/internal/identity"
	"github.com/spacewire/sync/internal/mailbox"
	"github.com/spacewire/sync/internal/stash"
	"github.com/spacewire/sync/internal/store"
)

var tracer = otel.Tracer("spacewire/materializer")

// Materializer owns the store-writing side of the pipeline. One
// Materializer serves every ConnectedStream in a process (spec §5:
// batches from different streams never interleave, but they do share
// one consumer loop and one stash).
type Materializer struct {
	store    store.Store
	registry map[string]codec.TypeDescriptor
	decoder  codec.Decoder
	fetcher  identity.ProfileFetcher // nil when no registered type uses Fetch
	stash    *stash.Stash

	mb      mailbox.Mailbox // set by Run; used to re-queue stash resolutions
	reports chan Report
}

// New constructs a Materializer. fetcher may be nil; it is only
// consulted when a TypeDescriptor's Fetch field is non-nil, which no
// type in the current registry sets.
func New(st store.Store, registry map[string]codec.TypeDescriptor, decoder codec.Decoder, fetcher identity.ProfileFetcher) *Materializer {
	return &Materializer{
		store:    st,
		registry: registry,
		decoder:  decoder,
		fetcher:  fetcher,
		stash:    stash.New(),
		reports:  make(chan Report, 16),
	}
}

// Reports exposes the per-batch summary/warnings stream. It is
// single-consumer: client.Worker reads it and forwards each report to
// an attached Metrics (observability.Metrics.Observe), which populates
// the spacewire_materializer_* metrics.
func (m *Materializer) Reports() <-chan Report { return m.reports }

// Run consumes batches from mb until it is closed or ctx is done. Each
// batch runs to completion before the next is pulled, matching the
// "one batch at a time" simplification in spec §5.
func (m *Materializer) Run(ctx context.Context, mb mailbox.Mailbox) {
	m.mb = mb
	for {
		if ctx.Err() != nil {
			return
		}
		batch, ok := mb.Consume(ctx)
		if !ok {
			return
		}
		m.processBatch(ctx, batch)
	}
}

func (m *Materializer) processBatch(ctx context.Context, batch core.Batch) {
	start := time.Now()

	var kind string
	switch batch.(type) {
	case core.FetchedBatch:
		kind = "fetched"
	case core.LiveBatch:
		kind = "live"
	case core.TransformedBatch:
		kind = "transformed"
	default:
		slog.Error("materializer received an unrecognized batch shape", "type", batch)
		return
	}

	ctx, span := tracer.Start(ctx, "materializer.process_batch",
		trace.WithAttributes(attribute.String("batch.kind", kind)))
	defer span.End()

	switch b := batch.(type) {
	case core.FetchedBatch:
		span.SetAttributes(attribute.String("stream.id", string(b.StreamId)))
		m.runFullPipeline(ctx, b.BatchId, b.StreamId, b.Events, b.Prio, start)
	case core.LiveBatch:
		span.SetAttributes(attribute.String("stream.id", string(b.StreamId)))
		m.runFullPipeline(ctx, b.BatchId, b.StreamId, b.Events, b.Prio, start)
	case core.TransformedBatch:
		// A stash re-resolution re-queues already-transformed bundles
		// (step 7); only the apply stage (steps 4-6) runs again.
		span.SetAttributes(attribute.String("stream.id", string(b.StreamId)))
		m.applyAndReport(ctx, b.BatchId, b.StreamId, b.Bundles, start)
	}
	span.SetStatus(codes.Ok, "")
}

