package sessionstore

import "errors"

var (
	// ErrKeyNotFound indicates no value is stored under the requested key.
	ErrKeyNotFound = errors.New("session_store.not_found")
	// ErrEmptyKey indicates the caller supplied a blank key.
	ErrEmptyKey = errors.New("session_store.empty_key")
	// ErrUnsupportedScheme indicates that no store implementation handles the URL scheme.
	ErrUnsupportedScheme = errors.New("session_store.unsupported_scheme")

	errEmptyStoreURL   = errors.New("session_store.empty_url")
	errNoScheme        = errors.New("session_store.no_scheme")
	errEmptyFilePath   = errors.New("session_store.file.empty_path")
	errSQLiteEmptyPath = errors.New("session_store.sqlite.empty_path")
	errSQLiteInvalid   = errors.New("session_store.sqlite.invalid_url")
)
