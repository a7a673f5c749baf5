// Package local persists small client values (the auth token, preferences)
// as JSON in a single file, the way a browser keeps them in localStorage.
package local

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/newthinker/stratdesk/internal/core"
	"go.uber.org/zap"
)

// Store is a JSON key/value file. Every read goes to disk so changes written
// by another process are seen.
type Store struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// New creates a store backed by path. The file is created on first write.
func New(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, core.WrapError(core.ErrConfigMissing, errors.New("storage path is empty"))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("creating storage dir: %w", err))
	}
	return &Store{path: path, logger: logger}, nil
}

// DefaultPath returns $XDG_CONFIG_HOME/stratdesk/storage.json (or the OS equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "stratdesk", "storage.json")
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Get decodes the value under key into dst. It reports false when the key is
// absent. A value that cannot be decoded into dst returns an error.
func (s *Store) Get(key string, dst any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return false, err
	}
	raw, ok := entries[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, core.WrapError(core.ErrStorageFailed, fmt.Errorf("decoding %q: %w", key, err))
	}
	return true, nil
}

// Set stores v under key.
func (s *Store) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("encoding %q: %w", key, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		// A corrupt file is replaced rather than blocking every write.
		s.logger.Warn("discarding unreadable storage file", zap.String("path", s.path), zap.Error(err))
		entries = map[string]json.RawMessage{}
	}
	entries[key] = raw
	return s.save(entries)
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.save(entries)
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	if len(data) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	entries := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("parsing %s: %w", s.path, err))
	}
	return entries, nil
}

// save writes through a temp file and rename so readers never see a partial file.
func (s *Store) save(entries map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".storage-*.json")
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}
