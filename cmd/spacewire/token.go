// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package main

import (
	"context"

	"github.com/spacewire/sync/internal/ids"
)

// staticTokenProvider hands back a placeholder credential. Real token
// acquisition is the identity provider's job (spec's login flow is an
// interface, no OAuth implementation), so the in-process fake.Server only
// ever checks that Token succeeds, never its value.
type staticTokenProvider struct{}

func (staticTokenProvider) Token(context.Context) (string, error) { return "cli-session", nil }

func clientUserID(user string) ids.UserId { return ids.UserId(user) }
