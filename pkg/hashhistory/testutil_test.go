package hashhistory

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vango-dev/hashhistory/pkg/browser"
	"github.com/vango-dev/hashhistory/pkg/location"
)

// mapStorage is a StateStorage that keeps states as-is.
type mapStorage struct {
	mu     sync.Mutex
	states map[string]any
	saves  int
	err    error
}

func newMapStorage() *mapStorage {
	return &mapStorage{states: make(map[string]any)}
}

func (s *mapStorage) SaveState(ctx context.Context, key string, state any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saves++
	s.states[key] = state
	return nil
}

func (s *mapStorage) ReadState(ctx context.Context, key string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.states[key], nil
}

var errStorage = errors.New("storage unavailable")

// syncBuffer is a bytes.Buffer safe for the logger.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	win     *browser.Memory
	storage *mapStorage
	logs    *syncBuffer
	p       *Protocol
}

func newFixture(t *testing.T, win *browser.Memory, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		win:     win,
		storage: newMapStorage(),
		logs:    &syncBuffer{},
	}
	logger := slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	base := []Option{
		WithStorage(f.storage),
		WithLogger(logger),
		WithTracer(noop.NewTracerProvider().Tracer("test")),
	}
	f.p = New(win, append(base, opts...)...)
	return f
}

// recorder collects delivered locations.
type recorder struct {
	mu   sync.Mutex
	locs []location.Location
}

func (r *recorder) listen(loc location.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locs = append(r.locs, loc)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locs)
}

func (r *recorder) last() location.Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locs[len(r.locs)-1]
}
