package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultKeyPrefix namespaces state entries inside a shared Store.
const DefaultKeyPrefix = "@@History/"

// Storage saves and reads history state objects. State is JSON-encoded, so
// a value read back has JSON's shape (objects become map[string]any,
// numbers float64).
type Storage struct {
	store  Store
	prefix string
	ttl    time.Duration
}

// StorageOption configures Storage.
type StorageOption func(*Storage)

// WithPrefix sets the key prefix. Default: DefaultKeyPrefix.
func WithPrefix(prefix string) StorageOption {
	return func(s *Storage) {
		s.prefix = prefix
	}
}

// WithTTL makes saved entries expire after d. Zero (the default) keeps them
// until deleted.
func WithTTL(d time.Duration) StorageOption {
	return func(s *Storage) {
		s.ttl = d
	}
}

// NewStorage wraps store.
func NewStorage(store Store, opts ...StorageOption) *Storage {
	s := &Storage{
		store:  store,
		prefix: DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveState stores state under key.
func (s *Storage) SaveState(ctx context.Context, key string, state any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}

	var expiresAt time.Time
	if s.ttl > 0 {
		expiresAt = time.Now().Add(s.ttl)
	}
	return s.store.Save(ctx, s.prefix+key, data, expiresAt)
}

// ReadState returns the state saved under key, or nil if there is none.
// An entry that is not valid JSON is treated as missing.
func (s *Storage) ReadState(ctx context.Context, key string) (any, error) {
	data, err := s.store.Load(ctx, s.prefix+key)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var state any
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, nil
	}
	return state, nil
}

// Store returns the underlying store.
func (s *Storage) Store() Store {
	return s.store
}
