package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/antwort-dev/auskunft/pkg/storage"
	"github.com/antwort-dev/auskunft/pkg/transport"
)

// Server wraps an http.Server with the transport adapter and manages
// the full lifecycle including startup and graceful shutdown. Besides
// the /v1 API it mounts /healthz (liveness) and /readyz (readiness,
// running the configured checks).
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	config     ServerConfig
	logger     *slog.Logger

	readiness  []ReadinessCheck
	httpMW     []func(http.Handler) http.Handler
	extraPaths map[string]http.Handler
}

// ReadinessCheck verifies one dependency for /readyz. A non-nil error
// marks the server not ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// ServerConfig holds configuration for the transport server.
type ServerConfig struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		MaxBodySize:     10 << 20, // 10 MB
		ShutdownTimeout: 30 * time.Second,
		Logger:          slog.Default(),
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// WithReadinessChecks adds dependency checks behind /readyz, typically
// the provider's model listing and the store's health check.
func WithReadinessChecks(checks ...ReadinessCheck) ServerOption {
	return func(s *Server) { s.readiness = append(s.readiness, checks...) }
}

// WithHTTPMiddleware wraps the whole handler (API plus health endpoints)
// with HTTP-level middleware, outermost first. Auth and metrics
// middleware attach here.
func WithHTTPMiddleware(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) { s.httpMW = append(s.httpMW, mw...) }
}

// WithHandler mounts an additional handler at the given pattern, e.g.
// the Prometheus exposition handler at GET /metrics.
func WithHandler(pattern string, h http.Handler) ServerOption {
	return func(s *Server) { s.extraPaths[pattern] = h }
}

// NewServer creates a new transport server with the given service and
// options. The store is optional (pass nil for stateless-only
// deployments). Default middleware (recovery, request ID, logging) is
// applied to answer creation automatically.
func NewServer(service transport.Service, store storage.Store, opts ...ServerOption) *Server {
	s := &Server{
		config:     DefaultServerConfig(),
		logger:     slog.Default(),
		extraPaths: make(map[string]http.Handler),
	}

	for _, opt := range opts {
		opt(s)
	}

	adapterCfg := Config{
		Addr:            s.config.Addr,
		MaxBodySize:     s.config.MaxBodySize,
		ShutdownTimeout: int(s.config.ShutdownTimeout.Seconds()),
	}

	defaultMW := []transport.Middleware{
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(s.logger),
	}

	s.adapter = NewAdapter(service, store, adapterCfg, defaultMW...)

	mux := http.NewServeMux()
	mux.Handle("/", s.adapter.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	for pattern, h := range s.extraPaths {
		mux.Handle(pattern, h)
	}

	var handler http.Handler = mux
	for i := len(s.httpMW) - 1; i >= 0; i-- {
		handler = s.httpMW[i](handler)
	}

	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: handler,
	}

	return s
}

// Handler returns the fully assembled http.Handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// handleReadyz runs the readiness checks with a short deadline.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, c := range s.readiness {
		if err := c.Check(ctx); err != nil {
			s.logger.Warn("readiness check failed", "check", c.Name, "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(c.Name + ": not ready\n"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}

// ListenAndServe starts the server and blocks until a shutdown signal
// (SIGINT or SIGTERM) is received. It then gracefully shuts down,
// waiting for in-flight requests to complete within the configured timeout.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.listenAndServeWithContext(ctx)
}

func (s *Server) listenAndServeWithContext(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", s.config.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

// ServeOn starts the server on the given listener. Used for testing.
func (s *Server) ServeOn(ln net.Listener) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
