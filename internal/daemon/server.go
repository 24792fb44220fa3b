package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/texttoaction/tta/internal/app"
	"github.com/texttoaction/tta/internal/config"
	turnrpc "github.com/texttoaction/tta/internal/rpc/turn"
	"github.com/texttoaction/tta/internal/version"
)

// Server hosts the health, metrics, capabilities and turn endpoints.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	app    *app.App
	runner turnrpc.Runner
}

// NewServer constructs a daemon around an already wired runtime.
func NewServer(cfg *config.Config, rt *app.App, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		app:    rt,
		runner: &turnrpc.AgentRunner{Agent: rt.Agent, Logger: logger.Named("turn")},
	}
}

// Handler returns the daemon's HTTP handler. Unless the transport is ndjson
// it also accepts cleartext HTTP/2 for Connect streams.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.Handle("/capabilities", turnrpc.CapabilitiesHandler{Capabilities: s.app.Capabilities})
	mux.Handle("/turn", turnrpc.NewHandler(s.runner, s.app.Metrics))

	if s.transport() == "ndjson" {
		return mux
	}
	path, handler := turnrpc.NewConnectHandler(s.runner, s.app.Metrics)
	mux.Handle(path, handler)
	return h2c.NewHandler(mux, &http2.Server{})
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting tta daemon",
			zap.String("addr", ln.Addr().String()),
			zap.String("transport", s.transport()),
			zap.String("model", s.app.Model),
			zap.String("version", version.Full()),
		)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down tta daemon")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) transport() string {
	t := strings.ToLower(strings.TrimSpace(s.cfg.Server.Transport))
	if t == "" {
		return "connect"
	}
	return t
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"model":   s.app.Model,
		"version": version.Version,
	})
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled {
		http.NotFound(w, r)
		return
	}

	promhttp.HandlerFor(s.app.Metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
