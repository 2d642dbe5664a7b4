package statestore

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory, the equivalent of a tab's
// sessionStorage. It is the default store.
//
// Expired entries are invisible to Load and are dropped lazily on access
// and by a periodic sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	closed  bool

	now           func() time.Time
	sweepInterval time.Duration
	stopSweep     context.CancelFunc
}

type memEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e memEntry) live(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often expired entries are swept.
// Default: 1 minute. Zero disables the sweep goroutine.
func WithCleanupInterval(d time.Duration) MemoryStoreOption {
	return func(m *MemoryStore) {
		m.sweepInterval = d
	}
}

// WithClock replaces time.Now when deciding expiry.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(m *MemoryStore) {
		m.now = now
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	m := &MemoryStore{
		entries:       make(map[string]memEntry),
		now:           time.Now,
		sweepInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.sweepInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		m.stopSweep = cancel
		go m.sweepEvery(ctx, m.sweepInterval)
	}
	return m
}

// Save stores a copy of data.
func (m *MemoryStore) Save(ctx context.Context, key string, data []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}
	m.entries[key] = memEntry{data: bytes.Clone(data), expiresAt: expiresAt}
	return nil
}

// Load returns a copy of the stored data, or nil for a missing or expired
// key.
func (m *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStoreClosed{}
	}
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	if !e.live(m.now()) {
		delete(m.entries, key)
		return nil, nil
	}
	return bytes.Clone(e.data), nil
}

// Delete removes an entry.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}
	delete(m.entries, key)
	return nil
}

// Close stops the sweep and drops all entries. Closing twice is a no-op.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		m.entries = nil
		if m.stopSweep != nil {
			m.stopSweep()
		}
	}
	return nil
}

// Len returns the number of entries held, including expired entries not
// yet swept.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore) sweepEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep drops every expired entry.
func (m *MemoryStore) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, e := range m.entries {
		if !e.live(now) {
			delete(m.entries, key)
		}
	}
}
