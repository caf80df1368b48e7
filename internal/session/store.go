// Package session persists the single Kite session (access token plus
// metadata) and answers expiry checks. Two backends exist: a JSON file on
// local disk (default) and a Redis key for deployments without a stable
// volume.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kitetrader/internal/model"
)

// ErrNoSession is returned by Load when no session has been saved yet.
var ErrNoSession = errors.New("no saved session")

// Store persists and retrieves the one live session.
type Store interface {
	Load() (model.Session, error)
	Save(model.Session) error
	Clear() error
}

// IsExpired reports whether the session is unusable: missing its token,
// or aged maxAge or more. The boundary is inclusive — a session aged
// exactly maxAge is expired.
func IsExpired(s model.Session, now time.Time, maxAge time.Duration) bool {
	if s.AccessToken == "" || s.CreatedAt.IsZero() {
		return true
	}
	return s.Age(now) >= maxAge
}

// FileStore keeps the session in a single JSON document on disk.
// Single-process, low-frequency access; no locking beyond the atomic
// rename on save.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path, creating parent
// directories as needed.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("session dir: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

// Load reads the saved session. A missing file is ErrNoSession, not an
// IO error.
func (fs *FileStore) Load() (model.Session, error) {
	raw, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return model.Session{}, ErrNoSession
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("read session file: %w", err)
	}
	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.Session{}, fmt.Errorf("parse session file: %w", err)
	}
	if s.AccessToken == "" {
		return model.Session{}, ErrNoSession
	}
	return s, nil
}

// Save writes the session via a temp file and rename so readers never
// observe a partial document.
func (fs *FileStore) Save(s model.Session) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("rename session file: %w", err)
	}
	return nil
}

// Clear deletes the session file. Clearing an absent session is not an
// error.
func (fs *FileStore) Clear() error {
	err := os.Remove(fs.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
