// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package streamconn

import (
	"fmt"
	"sync"
)

// BackfillState is one state of the backfill-then-live-tail lifecycle a
// subscription walks through. Grounded on the playback-then-live-copy
// handoff in the indigo-backfill-fix events.go Subscribe path, adapted
// from its sequence cursor to ids.StreamIndex.
type BackfillState int

const (
	BackfillPending BackfillState = iota
	BackfillStarted
	BackfillFinished
	BackfillErrored
)

func (s BackfillState) String() string {
	switch s {
	case BackfillPending:
		return "pending"
	case BackfillStarted:
		return "started"
	case BackfillFinished:
		return "finished"
	case BackfillErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// backfillStatus tracks one subscription's progress through
// Pending -> Started -> Finished, with a side exit to Errored and an
// explicit Finished -> Started transition on resubscribe-from-cursor.
type backfillStatus struct {
	mu    sync.Mutex
	state BackfillState
	err   error
}

func newBackfillStatus() *backfillStatus {
	return &backfillStatus{state: BackfillPending}
}

func (b *backfillStatus) snapshot() (BackfillState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.err
}

// start transitions Pending->Started or Finished->Started (resubscribe).
func (b *backfillStatus) start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BackfillPending, BackfillFinished:
		b.state = BackfillStarted
		b.err = nil
		return nil
	default:
		return fmt.Errorf("cannot start backfill from state %s", b.state)
	}
}

// finish transitions Started->Finished, reached when the server reports
// HasMore=false.
func (b *backfillStatus) finish() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BackfillStarted {
		return fmt.Errorf("cannot finish backfill from state %s", b.state)
	}
	b.state = BackfillFinished
	return nil
}

// fail transitions Started->Errored, reached on a transport failure
// during backfill; the caller (internal/client.Supervisor) is
// responsible for reconnect/backoff.
func (b *backfillStatus) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BackfillErrored
	b.err = err
}
