// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package client

import (
	"context"
	"log/slog"
	"sync"

	"github.com/spacewire/sync/internal/materializer"
)

// Metrics is the subset of observability.Metrics that Worker forwards
// materializer reports to. Defined here rather than imported directly so
// internal/client does not take a hard dependency on internal/observability.
type Metrics interface {
	Observe(r materializer.Report)
}

// Worker is the lifecycle glue between a Supervisor and a Materializer:
// it starts the materializer's single consumer loop exactly once per
// process (sync.Once, mirroring the teacher's sync.OnceFunc use for
// subscription cleanup), and reacts to the remote server disconnecting
// by flipping Supervisor's status to offline while leaving every
// ConnectedStream in place for spec §4.5's "Disconnection" behavior:
// reconnection is the caller's job (e.g. a retry loop around Start),
// Worker only tracks and surfaces the signal.
type Worker struct {
	supervisor   *Supervisor
	materializer *materializer.Materializer
	metrics      Metrics

	once sync.Once
}

// NewWorker binds supervisor to m. Call Run to start the pipeline.
func NewWorker(supervisor *Supervisor, m *materializer.Materializer) *Worker {
	return &Worker{supervisor: supervisor, materializer: m}
}

// WithMetrics attaches metrics to receive every materializer report
// Worker's report loop observes. Reports() is single-consumer, so this
// must be called before Run, not used to add an independent reader.
func (w *Worker) WithMetrics(metrics Metrics) *Worker {
	w.metrics = metrics
	return w
}

// Run starts the materializer's consumer loop against the supervisor's
// mailbox and watches the remote server's disconnect signal, both until
// ctx is cancelled. Safe to call more than once; only the first call
// does anything.
func (w *Worker) Run(ctx context.Context) {
	w.once.Do(func() {
		go w.materializer.Run(ctx, w.supervisor.Mailbox())
		go w.watchDisconnect(ctx)
		go w.watchJoins(ctx)
	})
}

// watchJoins is the materializer's sole report consumer (Reports() is
// single-consumer, spec §5): every report is first forwarded to metrics,
// then, for reports against the personal stream, used to react to spec
// §4.5's "Join" behavior -- a joinSpace event materialized there must
// open the new space's ConnectedStream without requiring the host
// application to call Join itself, by diffing the store's joined-spaces
// list against the streams Supervisor already has open.
func (w *Worker) watchJoins(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case report, ok := <-w.materializer.Reports():
			if !ok {
				return
			}
			if w.metrics != nil {
				w.metrics.Observe(report)
			}
			if report.StreamId != w.supervisor.PersonalStreamId() {
				continue
			}
			w.reconcileJoins(ctx)
		}
	}
}

func (w *Worker) reconcileJoins(ctx context.Context) {
	joined, err := w.supervisor.LocalStore().ListJoinedSpaces(ctx, w.supervisor.session.User)
	if err != nil {
		slog.Error("failed to list joined spaces while reconciling", "err", err)
		return
	}
	for _, streamID := range joined {
		if _, ok := w.supervisor.Stream(streamID); ok {
			continue
		}
		if err := w.supervisor.Join(ctx, streamID); err != nil {
			slog.Error("failed to join newly materialized space", "stream", streamID, "err", err)
		}
	}
}

func (w *Worker) watchDisconnect(ctx context.Context) {
	disconnected := w.supervisor.server.Disconnected()
	if disconnected == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-disconnected:
			if !ok {
				return
			}
			slog.Warn("remote event server disconnected", "err", err)
			w.supervisor.Status().Set(StatusOffline)
		}
	}
}
