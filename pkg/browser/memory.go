package browser

import (
	"strings"
	"sync"
)

// DefaultURL is the document URL a Memory browser starts on.
const DefaultURL = "http://localhost/"

// Memory is an in-memory browser tab. It keeps a history stack and models
// the single event loop: writes take effect immediately, but the hashchange
// notifications they cause are queued and only delivered by Flush or
// RunNext, i.e. on a later turn of the loop.
//
// Memory is safe for concurrent use. Event handlers run without any lock
// held and may call back into the browser.
type Memory struct {
	mu        sync.Mutex
	entries   []entry
	index     int
	stateAPI  bool
	confirm   func(message string) bool
	listeners map[string][]listener
	nextID    int
	queue     []func()
	stats     Stats
}

type entry struct {
	url   string
	state any
}

type listener struct {
	id      int
	handler func()
}

// Stats counts the writes a Memory browser has received.
type Stats struct {
	PushState    int
	ReplaceState int
	SetHash      int
	Replace      int
	Go           int
}

// Writes returns the number of URL-changing calls.
func (s Stats) Writes() int {
	return s.PushState + s.ReplaceState + s.SetHash + s.Replace
}

// MemoryOption configures a Memory browser.
type MemoryOption func(*Memory)

// WithURL sets the initial document URL, fragment included.
func WithURL(url string) MemoryOption {
	return func(m *Memory) {
		m.entries[0].url = url
	}
}

// WithState sets the history state of the initial entry.
func WithState(state any) MemoryOption {
	return func(m *Memory) {
		m.entries[0].state = state
	}
}

// WithoutStateAPI makes the browser report that pushState/replaceState are
// unavailable, like a legacy browser.
func WithoutStateAPI() MemoryOption {
	return func(m *Memory) {
		m.stateAPI = false
	}
}

// WithConfirm sets the function answering Confirm. The default answers true.
func WithConfirm(fn func(message string) bool) MemoryOption {
	return func(m *Memory) {
		m.confirm = fn
	}
}

// NewMemory creates a browser with a single history entry.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:   []entry{{url: DefaultURL}},
		stateAPI:  true,
		listeners: make(map[string][]listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Href returns the current URL.
func (m *Memory) Href() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.index].url
}

// HistoryState returns the state of the current entry.
func (m *Memory) HistoryState() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.index].state
}

// SupportsHistoryState reports whether PushState/ReplaceState are available.
func (m *Memory) SupportsHistoryState() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateAPI
}

// SetHash assigns the fragment. Assigning the current fragment is a no-op;
// anything else adds a history entry and queues a hashchange.
func (m *Memory) SetHash(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.SetHash++
	cur := m.entries[m.index].url
	base, _, _ := SplitHref(cur)
	next := base + "#" + strings.TrimPrefix(hash, "#")
	if next == cur {
		return
	}
	m.pushEntryLocked(entry{url: next})
	m.queueHashChangeLocked(cur, next)
}

// Replace swaps the current entry's URL and clears its state.
func (m *Memory) Replace(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Replace++
	cur := m.entries[m.index].url
	next := m.resolveLocked(url)
	m.entries[m.index] = entry{url: next}
	m.queueHashChangeLocked(cur, next)
}

// PushState adds an entry. It never fires hashchange.
func (m *Memory) PushState(state any, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.PushState++
	m.pushEntryLocked(entry{url: m.resolveLocked(url), state: state})
}

// ReplaceState overwrites the current entry. It never fires hashchange.
func (m *Memory) ReplaceState(state any, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.ReplaceState++
	m.entries[m.index] = entry{url: m.resolveLocked(url), state: state}
}

// Go moves n entries through history. Out of range moves are ignored.
func (m *Memory) Go(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Go++
	target := m.index + n
	if n == 0 || target < 0 || target >= len(m.entries) {
		return
	}
	cur := m.entries[m.index].url
	m.index = target
	m.queueHashChangeLocked(cur, m.entries[target].url)
}

// Back is Go(-1).
func (m *Memory) Back() { m.Go(-1) }

// Forward is Go(1).
func (m *Memory) Forward() { m.Go(1) }

// Confirm answers a confirmation prompt.
func (m *Memory) Confirm(message string) bool {
	m.mu.Lock()
	fn := m.confirm
	m.mu.Unlock()

	if fn == nil {
		return true
	}
	return fn(message)
}

// AddEventListener subscribes handler to event.
func (m *Memory) AddEventListener(event string, handler func()) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[event] = append(m.listeners[event], listener{id: id, handler: handler})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		ls := m.listeners[event]
		for i, l := range ls {
			if l.id == id {
				m.listeners[event] = append(ls[:i:i], ls[i+1:]...)
				return
			}
		}
	}
}

// ListenerCount returns the number of handlers subscribed to event.
func (m *Memory) ListenerCount(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners[event])
}

// Dispatch queues event as if the browser fired it, e.g. a spurious repeat.
func (m *Memory) Dispatch(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueEventLocked(event)
}

// Pending returns the number of queued tasks.
func (m *Memory) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// RunNext runs one queued task and reports whether there was one.
func (m *Memory) RunNext() bool {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.mu.Unlock()
		return false
	}
	task := m.queue[0]
	m.queue = m.queue[1:]
	m.mu.Unlock()

	task()
	return true
}

// Flush runs queued tasks, including tasks queued while flushing, until the
// queue is empty. It returns the number of tasks run.
func (m *Memory) Flush() int {
	n := 0
	for m.RunNext() {
		n++
	}
	return n
}

// Stats returns the write counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Len returns the number of history entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) pushEntryLocked(e entry) {
	m.entries = append(m.entries[:m.index+1], e)
	m.index = len(m.entries) - 1
}

// resolveLocked resolves a fragment-only url against the current document.
func (m *Memory) resolveLocked(url string) string {
	if strings.HasPrefix(url, "#") {
		base, _, _ := SplitHref(m.entries[m.index].url)
		return base + url
	}
	return url
}

func (m *Memory) queueHashChangeLocked(from, to string) {
	_, fromHash, _ := SplitHref(from)
	_, toHash, _ := SplitHref(to)
	if fromHash == toHash {
		return
	}
	m.queueEventLocked(EventHashChange)
}

func (m *Memory) queueEventLocked(event string) {
	m.queue = append(m.queue, func() {
		m.mu.Lock()
		ls := append([]listener(nil), m.listeners[event]...)
		m.mu.Unlock()

		for _, l := range ls {
			l.handler()
		}
	})
}
