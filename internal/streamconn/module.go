// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package streamconn

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/transport"
)

// ensureModuleWithRetry attempts to put stream on module, retrying
// transient failures with exponential backoff. Grounded on the teacher's
// internal/world/events.go emitWithRetry: same 3-retry exponential
// backoff shape, same cancellation-vs-exhaustion log split. A
// permission-denied failure is never retried and never escalated to an
// error -- a stream the caller cannot administer simply keeps running
// whatever module it already has.
func ensureModuleWithRetry(ctx context.Context, server transport.RemoteEventServer, stream ids.StreamId, module ModuleRef) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))
	attempt := 0

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := server.UpdateModule(ctx, stream, module)
		if err == nil {
			return nil
		}
		if errors.Is(err, transport.ErrPermissionDenied) {
			return err // not retryable, not an error path either -- see below
		}
		slog.Debug("module update failed, will retry",
			"stream", stream, "module", module, "attempt", attempt, "error", err)
		return retry.RetryableError(err)
	})

	if errors.Is(err, transport.ErrPermissionDenied) {
		slog.Warn("module upgrade denied, continuing with stream's current module",
			"stream", stream, "module", module)
		return nil
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.Warn("module update cancelled",
			"stream", stream, "module", module, "attempts", attempt, "reason", err)
	} else {
		slog.Error("module update failed after all retries",
			"stream", stream, "module", module, "attempts", attempt, "error", err)
	}
	return oops.Code("MODULE_UPDATE_FAILED").With("stream", stream).With("module", module).Wrap(err)
}
