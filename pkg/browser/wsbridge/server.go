package wsbridge

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ConnectFunc is called once per connected tab, after the hello. The
// returned cleanup, if any, runs when the tab disconnects.
type ConnectFunc func(ctx context.Context, win *RemoteWindow) (cleanup func())

// ServerConfig configures a Server.
type ServerConfig struct {
	// WSPath is the websocket endpoint. Default: "/ws"
	WSPath string

	// Window configures each RemoteWindow.
	// Default: DefaultWindowConfig()
	Window WindowConfig

	// Gatherer is served at /metrics when set.
	Gatherer prometheus.Gatherer

	// CheckOrigin validates the websocket Origin header. Default: same
	// host only (gorilla's default).
	CheckOrigin func(r *http.Request) bool

	// Logger receives lifecycle logs. Default: slog.Default()
	Logger *slog.Logger
}

// Server serves the bridge endpoints:
//
//	GET /            demo page loading the client
//	GET /client.js   the bridge client
//	GET <WSPath>     websocket upgrade
//	GET /healthz     liveness
//	GET /metrics     Prometheus metrics, when a Gatherer is configured
type Server struct {
	config    ServerConfig
	onConnect ConnectFunc
	router    chi.Router
	upgrader  websocket.Upgrader
	logger    *slog.Logger
	conns     atomic.Int64
}

// NewServer creates a bridge server calling onConnect for every tab.
func NewServer(onConnect ConnectFunc, config ServerConfig) *Server {
	if config.WSPath == "" {
		config.WSPath = "/ws"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Window == (WindowConfig{}) {
		config.Window = DefaultWindowConfig()
	}
	if config.Window.Logger == nil {
		config.Window.Logger = logger
	}

	s := &Server{
		config:    config,
		onConnect: onConnect,
		logger:    logger.With("component", "wsbridge"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleIndex)
	r.Get("/client.js", s.handleClient)
	r.Get("/healthz", s.handleHealth)
	r.Get(config.WSPath, s.handleWebSocket)
	if config.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{}))
	}
	s.router = r

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the chi router for mounting extra routes.
func (s *Server) Router() chi.Router {
	return s.router
}

// Connections returns the number of connected tabs.
func (s *Server) Connections() int {
	return int(s.conns.Load())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.logger.Debug("upgrade failed", "error", err)
		return
	}

	win, err := NewRemoteWindow(conn, s.config.Window)
	if err != nil {
		s.logger.Error("handshake failed", "remote", r.RemoteAddr, "error", err)
		conn.Close()
		return
	}

	s.conns.Add(1)
	defer s.conns.Add(-1)
	s.logger.Info("tab connected", "remote", r.RemoteAddr, "href", win.Href(), "stateApi", win.SupportsHistoryState())

	// r.Context() is canceled when the handler returns, which is when the
	// tab goes away.
	ctx := r.Context()
	var cleanup func()
	if s.onConnect != nil {
		cleanup = s.onConnect(ctx, win)
	}

	err = win.Run(ctx)
	if cleanup != nil {
		cleanup()
	}
	s.logger.Info("tab disconnected", "remote", r.RemoteAddr, "error", err)
}

func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(ClientScript))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage(s.config.WSPath)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
