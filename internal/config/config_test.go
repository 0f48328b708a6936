// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacewire/sync/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "localhost:7777", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9090", cfg.MetricsAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectMinBackoff)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_addr: example.com:9999\nlog_level: debug\n"), 0o600))

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "example.com:9999", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat) // untouched default survives
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_addr: example.com:9999\n"), 0o600))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("server_addr", "", "")
	require.NoError(t, flags.Set("server_addr", "override.example:1111"))

	cfg, err := config.Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "override.example:1111", cfg.ServerAddr)
}

func TestLoad_ExplicitMissingFileErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestSessionStore_LoginCurrentLogout(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	store, err := config.NewSessionStore()
	require.NoError(t, err)

	_, ok, err := store.Current()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Login("alice"))
	user, ok, err := store.Current()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", string(user))

	require.NoError(t, store.Logout())
	_, ok, err = store.Current()
	require.NoError(t, err)
	assert.False(t, ok)
}
