// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package main is the entry point for the spacewire CLI, a thin
// boundary over internal/client.Supervisor.
package main

import (
	"log/slog"
	"os"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		slog.Error("spacewire error", "error", err)
		os.Exit(1)
	}
}
