package wsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/hashhistory/pkg/browser"
)

// ErrClosed is returned by writes on a closed RemoteWindow.
var ErrClosed = errors.New("wsbridge: window closed")

// WindowConfig configures a RemoteWindow.
type WindowConfig struct {
	// HandshakeTimeout bounds the wait for the client's hello.
	// Default: 10s
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each command write. Default: 10s
	WriteTimeout time.Duration

	// PingInterval is how often the server pings the client. The read
	// deadline is twice this value. Zero disables pings and deadlines.
	// Default: 30s
	PingInterval time.Duration

	// MaxMessageSize caps incoming messages. Default: 64KB
	MaxMessageSize int64

	// DisableStateAPI makes the window report no history state support even
	// when the tab has one.
	DisableStateAPI bool

	// Logger receives connection diagnostics. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultWindowConfig returns the default configuration.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   64 * 1024,
	}
}

type listener struct {
	id      uint64
	handler func()
}

// RemoteWindow is a browser.Window backed by a websocket client.
// It implements browser.StateHistory, browser.StateSupport,
// browser.Traverser and browser.Confirmer.
type RemoteWindow struct {
	conn   *websocket.Conn
	config WindowConfig
	logger *slog.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	href      string
	state     any
	stateAPI  bool
	listeners map[string][]listener
	nextID    uint64
	confirms  map[uint64]chan bool

	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ browser.Window       = (*RemoteWindow)(nil)
	_ browser.StateHistory = (*RemoteWindow)(nil)
	_ browser.StateSupport = (*RemoteWindow)(nil)
	_ browser.Traverser    = (*RemoteWindow)(nil)
	_ browser.Confirmer    = (*RemoteWindow)(nil)
)

// NewRemoteWindow waits for the client's hello on conn and returns the
// mirrored window. Call Run to start receiving notifications.
func NewRemoteWindow(conn *websocket.Conn, config WindowConfig) (*RemoteWindow, error) {
	def := DefaultWindowConfig()
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = def.HandshakeTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = def.MaxMessageSize
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn.SetReadLimit(config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(config.HandshakeTimeout))

	var hello Message
	if err := conn.ReadJSON(&hello); err != nil {
		return nil, fmt.Errorf("read hello: %w", err)
	}
	if hello.Type != TypeHello {
		return nil, fmt.Errorf("expected %s message, got %q", TypeHello, hello.Type)
	}
	state, err := decodeState(hello.State)
	if err != nil {
		return nil, fmt.Errorf("decode hello state: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	w := &RemoteWindow{
		conn:      conn,
		config:    config,
		logger:    logger.With("remote", conn.RemoteAddr().String()),
		href:      hello.Href,
		state:     state,
		stateAPI:  hello.StateAPI && !config.DisableStateAPI,
		listeners: make(map[string][]listener),
		confirms:  make(map[uint64]chan bool),
		done:      make(chan struct{}),
	}
	return w, nil
}

// Run reads client messages and dispatches hashchange notifications until
// the connection closes or ctx is done. Listeners run on Run's goroutine.
func (w *RemoteWindow) Run(ctx context.Context) error {
	defer w.Close()

	stop := context.AfterFunc(ctx, func() { w.Close() })
	defer stop()

	if w.config.PingInterval > 0 {
		w.conn.SetReadDeadline(time.Now().Add(2 * w.config.PingInterval))
		w.conn.SetPongHandler(func(string) error {
			return w.conn.SetReadDeadline(time.Now().Add(2 * w.config.PingInterval))
		})
		go w.pingLoop()
	}

	for {
		var msg Message
		if err := w.conn.ReadJSON(&msg); err != nil {
			select {
			case <-w.done:
				return nil
			default:
			}
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				w.logger.Error("read error", "error", err)
				return err
			}
			return nil
		}

		if w.config.PingInterval > 0 {
			w.conn.SetReadDeadline(time.Now().Add(2 * w.config.PingInterval))
		}
		w.handle(msg)
	}
}

func (w *RemoteWindow) handle(msg Message) {
	switch msg.Type {
	case TypeHashChange:
		state, err := decodeState(msg.State)
		if err != nil {
			w.logger.Error("decode state failed", "error", err)
		}
		w.mu.Lock()
		w.href = msg.Href
		w.state = state
		w.mu.Unlock()
		w.dispatch(browser.EventHashChange)

	case TypeConfirmed:
		w.mu.Lock()
		ch, ok := w.confirms[msg.ID]
		delete(w.confirms, msg.ID)
		w.mu.Unlock()
		if ok {
			ch <- msg.OK
		}

	default:
		w.logger.Warn("unknown message type", "type", msg.Type)
	}
}

func (w *RemoteWindow) dispatch(event string) {
	w.mu.Lock()
	ls := append([]listener(nil), w.listeners[event]...)
	w.mu.Unlock()

	for _, l := range ls {
		l.handler()
	}
}

func (w *RemoteWindow) pingLoop() {
	ticker := time.NewTicker(w.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.writeMu.Lock()
			err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.config.WriteTimeout))
			w.writeMu.Unlock()
			if err != nil {
				w.logger.Debug("ping failed", "error", err)
				w.Close()
				return
			}
		}
	}
}

// Href returns the mirrored URL.
func (w *RemoteWindow) Href() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.href
}

// HistoryState returns the mirrored history state.
func (w *RemoteWindow) HistoryState() any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// SupportsHistoryState reports whether the tab announced pushState support.
func (w *RemoteWindow) SupportsHistoryState() bool {
	return w.stateAPI
}

// SetHash assigns the tab's fragment. The tab answers with a hashchange.
func (w *RemoteWindow) SetHash(hash string) {
	hash = strings.TrimPrefix(hash, "#")

	w.mu.Lock()
	base, _, _ := browser.SplitHref(w.href)
	next := base + "#" + hash
	if next == w.href {
		w.mu.Unlock()
		return
	}
	w.href = next
	w.state = nil
	w.mu.Unlock()

	w.send(Message{Type: TypeSetHash, Hash: hash})
}

// Replace replaces the tab's URL. A fragment-only url resolves against the
// current document.
func (w *RemoteWindow) Replace(url string) {
	w.mu.Lock()
	url = w.resolveLocked(url)
	w.href = url
	w.state = nil
	w.mu.Unlock()

	w.send(Message{Type: TypeReplace, URL: url})
}

// PushState adds a history entry in the tab.
func (w *RemoteWindow) PushState(state any, url string) {
	w.writeState(TypePushState, state, url)
}

// ReplaceState overwrites the tab's current history entry.
func (w *RemoteWindow) ReplaceState(state any, url string) {
	w.writeState(TypeReplaceState, state, url)
}

func (w *RemoteWindow) writeState(typ MessageType, state any, url string) {
	raw, err := encodeState(state)
	if err != nil {
		w.logger.Error("encode state failed", "type", typ, "error", err)
		return
	}

	w.mu.Lock()
	url = w.resolveLocked(url)
	w.href = url
	w.state = state
	w.mu.Unlock()

	w.send(Message{Type: typ, State: raw, URL: url})
}

// Go asks the tab to move n entries through its history. The mirror is
// updated when the tab reports the resulting hashchange.
func (w *RemoteWindow) Go(n int) {
	if n == 0 {
		return
	}
	w.send(Message{Type: TypeGo, Delta: n})
}

// Confirm shows message in the tab and waits for the answer. It returns
// false if the connection closes first.
//
// The answer is delivered by Run, so Confirm must not be called from an
// event listener.
func (w *RemoteWindow) Confirm(message string) bool {
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	ch := make(chan bool, 1)
	w.confirms[id] = ch
	w.mu.Unlock()

	if err := w.send(Message{Type: TypeConfirm, ID: id, Text: message}); err != nil {
		w.mu.Lock()
		delete(w.confirms, id)
		w.mu.Unlock()
		return false
	}

	select {
	case ok := <-ch:
		return ok
	case <-w.done:
		return false
	}
}

// AddEventListener subscribes handler to event.
func (w *RemoteWindow) AddEventListener(event string, handler func()) func() {
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.listeners[event] = append(w.listeners[event], listener{id: id, handler: handler})
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		ls := w.listeners[event]
		for i, l := range ls {
			if l.id == id {
				w.listeners[event] = append(ls[:i:i], ls[i+1:]...)
				return
			}
		}
	}
}

// Done is closed when the window is closed.
func (w *RemoteWindow) Done() <-chan struct{} {
	return w.done
}

// Close sends a close frame and closes the connection. Safe to call more
// than once.
func (w *RemoteWindow) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.writeMu.Lock()
		w.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		w.writeMu.Unlock()
		err = w.conn.Close()
	})
	return err
}

func (w *RemoteWindow) send(msg Message) error {
	select {
	case <-w.done:
		w.logger.Debug("dropped command on closed window", "type", msg.Type)
		return ErrClosed
	default:
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		w.logger.Error("write failed", "type", msg.Type, "error", err)
		return err
	}
	return nil
}

func (w *RemoteWindow) resolveLocked(url string) string {
	if strings.HasPrefix(url, "#") {
		base, _, _ := browser.SplitHref(w.href)
		return base + url
	}
	return url
}
