// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"

	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/xdg"
)

// SessionStore persists the single piece of boundary state the CLI keeps
// across invocations: which user `login` last authenticated as. One row,
// removed by Clear; no CLI command calls Clear.
type SessionStore struct {
	mu   sync.Mutex
	path string
}

type sessionFile struct {
	User ids.UserId `json:"user"`
}

// NewSessionStore opens the session file under the spacewire config
// directory, creating the directory if needed.
func NewSessionStore() (*SessionStore, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return nil, oops.Code("CONFIG_SESSION_DIR_FAILED").Wrap(err)
	}
	if err := xdg.EnsureDir(dir); err != nil {
		return nil, oops.Code("CONFIG_SESSION_DIR_FAILED").Wrap(err)
	}
	return &SessionStore{path: filepath.Join(dir, "session.json")}, nil
}

// Current returns the logged-in user, or ("", false) if nobody is
// logged in.
func (s *SessionStore) Current() (ids.UserId, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, oops.Code("CONFIG_SESSION_READ_FAILED").Wrap(err)
	}

	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return "", false, oops.Code("CONFIG_SESSION_DECODE_FAILED").Wrap(err)
	}
	if sf.User == "" {
		return "", false, nil
	}
	return sf.User, true, nil
}

// Login persists user as the logged-in session, overwriting any prior one.
func (s *SessionStore) Login(user ids.UserId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(sessionFile{User: user})
	if err != nil {
		return oops.Code("CONFIG_SESSION_ENCODE_FAILED").Wrap(err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return oops.Code("CONFIG_SESSION_WRITE_FAILED").Wrap(err)
	}
	return nil
}

// Logout clears the persisted session.
func (s *SessionStore) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return oops.Code("CONFIG_SESSION_CLEAR_FAILED").Wrap(err)
	}
	return nil
}
