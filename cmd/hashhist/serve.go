package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/hashhistory/internal/config"
	"github.com/vango-dev/hashhistory/internal/errors"
	"github.com/vango-dev/hashhistory/pkg/browser"
	"github.com/vango-dev/hashhistory/pkg/browser/wsbridge"
	"github.com/vango-dev/hashhistory/pkg/hashhistory"
	"github.com/vango-dev/hashhistory/pkg/location"
)

const shutdownTimeout = 5 * time.Second

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Bridge browser tabs to the hash history protocol",
		Long: `Start the websocket bridge.

Every connected tab gets its own protocol instance. Location changes are
logged, and state saved for hash-only tabs goes to the configured storage
backend. Open the server's root page in a browser to try it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if addr != "" {
				env.cfg.Server.Addr = addr
			}
			return runServe(env)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides server.addr)")

	return cmd
}

func runServe(env *runtimeEnv) error {
	cfg := env.cfg

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := hashhistory.NewMetrics(
		hashhistory.WithNamespace(cfg.Metrics.Namespace),
		hashhistory.WithRegistry(registry),
	)

	windowConfig := wsbridge.DefaultWindowConfig()
	windowConfig.DisableStateAPI = cfg.StateAPI == config.StateAPIOff
	windowConfig.Logger = env.logger

	serverConfig := wsbridge.ServerConfig{
		WSPath: cfg.Server.WSPath,
		Window: windowConfig,
		Logger: env.logger,
	}
	if cfg.Server.Metrics {
		serverConfig.Gatherer = registry
	}

	opts := append(env.protocolOptions(), hashhistory.WithMetrics(metrics))
	bridge := wsbridge.NewServer(func(ctx context.Context, win *wsbridge.RemoteWindow) func() {
		return attachTab(ctx, env, win, opts)
	}, serverConfig)

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return errors.New("E400").
			WithDetailf("Cannot listen on %s", cfg.Server.Addr).
			WithSuggestion("Pick another address with --addr or server.addr").
			Wrap(err)
	}

	srv := &http.Server{
		Handler:           bridge,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			fmt.Println()
			info("Shutting down...")
		case <-ctx.Done():
		}
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			env.logger.Warn("shutdown", "error", err)
		}
	}()

	printBanner()
	success("Bridge listening on http://%s", displayAddr(ln.Addr()))
	info("WebSocket: %s", cfg.Server.WSPath)
	info("Storage:   %s", cfg.Storage.Backend)
	if cfg.Server.Metrics {
		info("Metrics:   /metrics")
	}
	if cfg.StateAPI == config.StateAPIOff {
		warn("State API disabled; all state goes through %s storage", cfg.Storage.Backend)
	}

	if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return errors.New("E400").Wrap(err)
	}
	return nil
}

// attachTab wires a protocol to a newly connected tab and returns its
// cleanup. The initial location is logged after Listen has corrected a
// malformed fragment.
func attachTab(ctx context.Context, env *runtimeEnv, win browser.Window, opts []hashhistory.Option) func() {
	p := hashhistory.New(win, opts...)
	logger := env.logger

	if env.cfg.StateAPI == config.StateAPIOn && !p.NativeState() {
		logger.Warn("tab has no history state API; falling back to storage", "href", win.Href())
	}

	detach := p.Listen(ctx, func(loc location.Location) {
		logLocation(logger, "location changed", loc)
	})

	loc, err := p.CurrentLocation(ctx)
	if err != nil {
		logger.Error("resolve initial location", "href", win.Href(), "error", err)
	} else {
		logLocation(logger.With("href", win.Href()), "initial location", loc)
	}
	return detach
}

func logLocation(logger *slog.Logger, msg string, loc location.Location) {
	logger.Info(msg,
		"path", loc.Path(),
		"key", loc.Key,
		"action", string(loc.Action),
		"state", loc.State,
	)
}

// displayAddr turns a wildcard listen address into something a browser
// can open.
func displayAddr(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
