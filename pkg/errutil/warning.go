// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package errutil

import "log/slog"

// Warning is anything with a one-line summary worth logging at warn
// level without aborting the caller, e.g. a materializer report's
// per-event warning detail.
type Warning interface {
	Summary() string
}

// AssertWarning logs w at warn level if it is non-nil, attaching ctx as
// structured fields. It never returns an error -- the caller has already
// decided the condition is recoverable, this just makes it visible.
func AssertWarning(logger *slog.Logger, w Warning, ctx ...any) {
	if w == nil {
		return
	}
	attrs := append([]any{"warning", w.Summary()}, ctx...)
	logger.Warn("materialization warning", attrs...)
}
