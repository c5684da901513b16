package storage

import "errors"

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("storage key not found")

// Provider is a keyed blob store that holds the local state. Values are
// opaque bytes; callers own the encoding.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error

	GetConfigPath() string
}
