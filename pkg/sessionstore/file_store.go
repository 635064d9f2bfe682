package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore persists session entries as a single JSON document on disk.
// The file is written with 0600 permissions inside a 0700 directory.
type FileStore struct {
	mutex sync.Mutex
	path  string
}

// NewFileStore creates a store backed by the JSON file at path.
func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("session_store.file.open: %w", errEmptyFilePath)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("session_store.file.mkdir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path reports the backing file location.
func (store *FileStore) Path() string {
	return store.path
}

// Get returns the value stored under key.
func (store *FileStore) Get(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrEmptyKey
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	entries, err := store.readLocked()
	if err != nil {
		return "", err
	}
	value, ok := entries[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

// Set stores value under key.
func (store *FileStore) Set(ctx context.Context, key string, value string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	entries, err := store.readLocked()
	if err != nil {
		return err
	}
	entries[key] = value
	return store.writeLocked(entries)
}

// Remove deletes key from the document.
func (store *FileStore) Remove(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	entries, err := store.readLocked()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return store.writeLocked(entries)
}

func (store *FileStore) readLocked() (map[string]string, error) {
	data, err := os.ReadFile(store.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("session_store.file.read: %w", err)
	}
	entries := make(map[string]string)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt document cannot be repaired; start over.
		_ = os.Remove(store.path)
		return make(map[string]string), nil
	}
	return entries, nil
}

func (store *FileStore) writeLocked(entries map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(store.path), 0o700); err != nil {
		return fmt.Errorf("session_store.file.mkdir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("session_store.file.encode: %w", err)
	}
	if err := os.WriteFile(store.path, data, 0o600); err != nil {
		return fmt.Errorf("session_store.file.write: %w", err)
	}
	return nil
}
