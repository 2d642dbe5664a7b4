package statestore

import (
	"context"
	"time"
)

// Store persists opaque state blobs by key.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores data under key. An existing entry is overwritten.
	// A zero expiresAt means the entry does not expire.
	Save(ctx context.Context, key string, data []byte, expiresAt time.Time) error

	// Load returns the data stored under key.
	// Returns (nil, nil) if the entry doesn't exist or has expired.
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes an entry. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// ErrStoreClosed is returned when operations are attempted on a closed store.
type ErrStoreClosed struct{}

func (e ErrStoreClosed) Error() string {
	return "state store is closed"
}
