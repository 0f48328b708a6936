// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

// Package config loads the CLI boundary's configuration: server address,
// local store DSN, log format/level, and reconnect backoff caps. Layered
// with knadh/koanf the way the rest of the example pack does it --
// defaults, then an optional YAML file, then cobra flag overrides, each
// layer merging over the last.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the CLI boundary's resolved configuration.
type Config struct {
	ServerAddr string `koanf:"server_addr"`
	LocalDSN   string `koanf:"local_dsn"`

	LogFormat string `koanf:"log_format"`
	LogLevel  string `koanf:"log_level"`

	// MetricsAddr is the listen address for the observability server's
	// /metrics and /healthz endpoints. Empty disables the server.
	MetricsAddr string `koanf:"metrics_addr"`

	ReconnectMinBackoff time.Duration `koanf:"reconnect_min_backoff"`
	ReconnectMaxBackoff time.Duration `koanf:"reconnect_max_backoff"`
}

func defaults() map[string]any {
	return map[string]any{
		"server_addr":           "localhost:7777",
		"local_dsn":             "postgres://localhost:5432/spacewire_client",
		"log_format":            "text",
		"log_level":             "info",
		"metrics_addr":          "127.0.0.1:9090",
		"reconnect_min_backoff": 500 * time.Millisecond,
		"reconnect_max_backoff": 30 * time.Second,
	}
}

// Load resolves a Config from, in increasing precedence: built-in
// defaults, the YAML file at path (skipped if path is empty; a non-empty
// path whose file is missing or unreadable is an error), then any
// matching flags set on flags.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_DEFAULTS_FAILED").Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_LOAD_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}
	return &cfg, nil
}
