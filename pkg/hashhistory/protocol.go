package hashhistory

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/hashhistory/pkg/browser"
	"github.com/vango-dev/hashhistory/pkg/pathcoder"
	"github.com/vango-dev/hashhistory/pkg/statestore"
)

// DefaultQueryKey is the query parameter that carries a state key.
const DefaultQueryKey = "_k"

const tracerName = "github.com/vango-dev/hashhistory"

// StateStorage persists location state by key.
// *statestore.Storage implements it.
type StateStorage interface {
	SaveState(ctx context.Context, key string, state any) error
	ReadState(ctx context.Context, key string) (any, error)
}

// Protocol synchronizes locations with one window's URL fragment.
//
// A Protocol is meant to be driven from a single event loop, but its shared
// state is guarded so windows that deliver events on their own goroutine
// are safe too.
type Protocol struct {
	win      browser.Window
	coder    pathcoder.Coder
	queryKey string
	storage  StateStorage
	tracker  *Tracker
	writer   writer
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithPathCoder sets the fragment encoding. Default: pathcoder.Slash.
func WithPathCoder(c pathcoder.Coder) Option {
	return func(p *Protocol) {
		p.coder = c
	}
}

// WithQueryKey sets the query parameter carrying state keys.
// Default: DefaultQueryKey.
func WithQueryKey(key string) Option {
	return func(p *Protocol) {
		p.queryKey = key
	}
}

// WithStorage sets where state is persisted when the window has no
// pushState. Default: an in-memory store private to the Protocol.
func WithStorage(s StateStorage) Option {
	return func(p *Protocol) {
		p.storage = s
	}
}

// WithTracker shares a last-known-location slot between protocols.
func WithTracker(t *Tracker) Option {
	return func(p *Protocol) {
		p.tracker = t
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Protocol) {
		p.logger = logger
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Protocol) {
		p.metrics = m
	}
}

// WithTracer sets the tracer. Default: the global provider's tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Protocol) {
		p.tracer = t
	}
}

// New creates a Protocol for win. The writing strategy is chosen here by
// probing win for a usable history state API.
func New(win browser.Window, opts ...Option) *Protocol {
	p := &Protocol{
		win:      win,
		coder:    pathcoder.Slash,
		queryKey: DefaultQueryKey,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.storage == nil {
		p.storage = statestore.NewStorage(statestore.NewMemoryStore(statestore.WithCleanupInterval(0)))
	}
	if p.tracker == nil {
		p.tracker = NewTracker()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}
	p.logger = p.logger.With("component", "hashhistory")
	p.writer = newWriter(win)

	return p
}

// NativeState reports whether state travels with history entries (true) or
// through StateStorage (false).
func (p *Protocol) NativeState() bool {
	return p.writer.native()
}

// Tracker returns the last-known-location slot.
func (p *Protocol) Tracker() *Tracker {
	return p.tracker
}

// QueryKey returns the query parameter carrying state keys.
func (p *Protocol) QueryKey() string {
	return p.queryKey
}

// Window returns the window the protocol drives.
func (p *Protocol) Window() browser.Window {
	return p.win
}
