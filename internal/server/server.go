// Package server exposes the pricer over HTTP: POST /price prices a grid,
// GET /health reports liveness and GET /metrics serves Prometheus metrics.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/agbru/rbergomi/internal/config"
	apperrors "github.com/agbru/rbergomi/internal/errors"
	"github.com/agbru/rbergomi/internal/spectral"
)

// Server represents the HTTP server of the pricing API.
// It wraps the standard http.Server and adds application-specific configuration
// and graceful shutdown capabilities.
type Server struct {
	pricer         Pricer
	cfg            config.AppConfig
	backend        spectral.Backend
	httpServer     *http.Server
	logger         zerolog.Logger
	shutdownSignal chan os.Signal
	rateLimiter    *RateLimiter
	securityConfig SecurityConfig
	metrics        *Metrics
	timeouts       Timeouts
	cacheSize      int
	cache          *responseCache
	maxRuns        int64
	runSlots       *semaphore.Weighted
}

// NewServer creates a new Server instance with the given configuration.
// It initializes the HTTP server with timeouts and a request multiplexer.
//
// Parameters:
//   - cfg: The application configuration (port, defaults, work limit).
//   - opts: Optional functional options for customizing the server (e.g., WithLogger).
//
// Returns:
//   - *Server: A pointer to the initialized Server.
func NewServer(cfg config.AppConfig, opts ...Option) *Server {
	s := &Server{
		cfg:            cfg,
		backend:        spectral.Gonum,
		logger:         zerolog.New(os.Stderr).With().Timestamp().Str("component", "server").Logger(),
		shutdownSignal: make(chan os.Signal, 1),
		securityConfig: DefaultSecurityConfig(),
		metrics:        NewMetrics(),
		timeouts:       DefaultServerTimeouts(),
		cacheSize:      DefaultCacheSize,
	}
	if cfg.MaxWork > 0 {
		s.securityConfig.MaxWork = cfg.MaxWork
	}
	if b, err := spectral.ParseBackend(cfg.FFT); err == nil {
		s.backend = b
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.pricer == nil {
		s.pricer = EnginePricer{}
	}
	if s.rateLimiter == nil {
		s.rateLimiter = NewRateLimiter(DefaultRateLimiterConfig())
	}
	s.cache = newResponseCache(s.cacheSize)
	if s.maxRuns <= 0 {
		s.maxRuns = int64(max(1, runtime.GOMAXPROCS(0)/max(cfg.Workers, 1)))
	}
	s.runSlots = semaphore.NewWeighted(s.maxRuns)

	mux := http.NewServeMux()

	// Apply middleware chain: Security -> RateLimit -> Tracing -> RequestID -> Logging -> Metrics -> Handler
	mux.HandleFunc("/price", s.wrapWithMiddleware("/price", s.handlePrice))
	mux.HandleFunc("/health", s.wrapWithMiddleware("/health", s.handleHealth))
	mux.HandleFunc("/metrics", s.wrapWithMiddleware("/metrics", s.handleMetrics))

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  s.timeouts.ReadTimeout,
		WriteTimeout: s.timeouts.WriteTimeout,
		IdleTimeout:  s.timeouts.IdleTimeout,
	}

	return s
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// wrapWithMiddleware applies the full middleware chain to a handler.
func (s *Server) wrapWithMiddleware(route string, handler http.HandlerFunc) http.HandlerFunc {
	wrapped := s.metricsMiddleware(route, handler)
	wrapped = s.loggingMiddleware(wrapped)
	wrapped = requestIDMiddleware(wrapped)
	wrapped = tracingMiddleware(route, wrapped)
	wrapped = RateLimitMiddleware(s.rateLimiter, wrapped)
	wrapped = SecurityMiddleware(s.securityConfig, wrapped)
	return wrapped
}

// Start listens on the configured port and serves until SIGINT or SIGTERM,
// then shuts down gracefully.
//
// Returns:
//   - error: An error if the server fails to start or shuts down unexpectedly.
func (s *Server) Start() error {
	signal.Notify(s.shutdownSignal, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(s.shutdownSignal)

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return apperrors.NewServerError("server failed to start", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.shutdownSignal:
			s.logger.Info().Msg("shutdown signal received, initiating graceful shutdown")
			cancel()
		case <-ctx.Done():
		}
	}()

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then drains in-flight
// requests within the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.rateLimiter.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("addr", ln.Addr().String()).
			Int("steps", s.cfg.Steps).
			Int64("samples", s.cfg.Samples).
			Int("workers", s.cfg.Workers).
			Str("fft", string(s.backend)).
			Int64("max_work", s.securityConfig.MaxWork).
			Msg("starting server; endpoints: POST /price, GET /health, GET /metrics")

		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			return apperrors.NewServerError("server failed", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeouts.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return apperrors.NewServerError("failed to gracefully shutdown server", err)
	}

	s.logger.Info().Msg("server stopped gracefully")
	return nil
}
