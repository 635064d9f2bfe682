package sessionstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Store is the key-value facility backing client sessions.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, key string) error
}

// Open resolves storeURL into a Store. Supported schemes are memory://,
// file://<path>, sqlite://<dsn>, and postgres://.
func Open(ctx context.Context, storeURL string) (Store, error) {
	trimmed := strings.TrimSpace(storeURL)
	if trimmed == "" {
		return nil, fmt.Errorf("session_store.open: %w", errEmptyStoreURL)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("session_store.parse_url: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "":
		return nil, fmt.Errorf("session_store.open: %w", errNoScheme)
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		path := parsed.Path
		if parsed.Host != "" {
			path = parsed.Host + parsed.Path
		}
		if parsed.Opaque != "" {
			path = parsed.Opaque
		}
		return NewFileStore(path)
	case "sqlite", "sqlite3", "postgres", "postgresql":
		return NewDatabaseStore(ctx, trimmed)
	default:
		return nil, fmt.Errorf("session_store.open.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedScheme)
	}
}
