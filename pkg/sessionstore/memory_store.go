package sessionstore

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps session entries in process memory. Intended for tests and dev.
type MemoryStore struct {
	mutex   sync.Mutex
	entries map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

// Get returns the value stored under key.
func (store *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrEmptyKey
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	value, ok := store.entries[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (store *MemoryStore) Set(ctx context.Context, key string, value string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.entries[key] = value
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (store *MemoryStore) Remove(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	delete(store.entries, key)
	return nil
}

// Keys returns the stored keys in no particular order.
func (store *MemoryStore) Keys() []string {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	keys := make([]string, 0, len(store.entries))
	for key := range store.entries {
		keys = append(keys, key)
	}
	return keys
}
