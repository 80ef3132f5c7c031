/*
Package store provides the on-device key-value store backing the companion's persisted session.

It holds the authentication token and the serialized identity between process runs,
mirroring the platform key-value storage the mobile shells use. Writes are atomic
(temp file + rename) so a crash mid-write never corrupts the previous state.
*/
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Well-known keys used by the session manager.
const (
	// KeyAuthToken holds the opaque session token.
	KeyAuthToken = "authToken"

	// KeyUserData holds the serialized Identity.
	KeyUserData = "userData"
)

// Store is the persisted key-value contract the session manager depends on.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// Set writes the value for key.
	Set(key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}

// FileStore is a Store backed by a single JSON file on disk.
type FileStore struct {
	path string

	mu   sync.Mutex
	data map[string]string
}

// OpenFileStore loads (or initializes) the JSON state file at path.
// A missing file yields an empty store; a corrupt file yields an error so the
// caller can decide to treat it as "no session".
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path: path,
		data: make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fs.data); err != nil {
			return nil, fmt.Errorf("state file %s is corrupt: %w", path, err)
		}
	}

	return fs, nil
}

// Get returns the value for key and whether it was present.
func (fs *FileStore) Get(key string) (string, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	value, ok := fs.data[key]
	return value, ok, nil
}

// Set writes the value for key and persists the store to disk.
func (fs *FileStore) Set(key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.data[key] = value
	return fs.flushLocked()
}

// Delete removes key and persists the store to disk.
func (fs *FileStore) Delete(key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.data[key]; !ok {
		return nil
	}

	delete(fs.data, key)
	return fs.flushLocked()
}

// flushLocked serializes the store to a temp file and renames it over the state file.
// Callers must hold fs.mu.
func (fs *FileStore) flushLocked() error {
	raw, err := json.MarshalIndent(fs.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	dir := filepath.Dir(fs.path)
	tmp, err := os.CreateTemp(dir, ".companion_state_*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}
