package server

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agbru/rbergomi/internal/spectral"
)

// Option defines a functional option for configuring a Server.
type Option func(*Server)

// WithLogger sets the server logger.
//
// Parameters:
//   - logger: The zerolog logger to use.
//
// Returns:
//   - Option: A functional option that configures the server's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithPricer sets a custom pricer for the server.
// This enables dependency injection for testing with stub pricers.
//
// Parameters:
//   - p: The pricer implementation to use.
//
// Returns:
//   - Option: A functional option that configures the server's pricer.
func WithPricer(p Pricer) Option {
	return func(s *Server) {
		if p != nil {
			s.pricer = p
		}
	}
}

// WithCacheSize sets how many seeded responses are kept. Zero or a
// negative size disables the response cache.
func WithCacheSize(size int) Option {
	return func(s *Server) {
		s.cacheSize = size
	}
}

// WithMaxConcurrentRuns bounds how many simulations run at once; further
// requests wait for a slot until their timeout. The default fits
// GOMAXPROCS / workers runs.
func WithMaxConcurrentRuns(n int64) Option {
	return func(s *Server) {
		s.maxRuns = n
	}
}

// WithBackend sets the FFT backend used when a request leaves "fft" empty
// or asks for "auto".
func WithBackend(b spectral.Backend) Option {
	return func(s *Server) {
		if b != "" {
			s.backend = b
		}
	}
}

// WithRateLimiter sets a custom rate limiter for the server.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) {
		s.rateLimiter = rl
	}
}

// WithSecurityConfig sets a custom security configuration for the server.
func WithSecurityConfig(config SecurityConfig) Option {
	return func(s *Server) {
		s.securityConfig = config
	}
}

// WithMaxWork sets the largest steps x samples x rows product a single
// request may ask for.
func WithMaxWork(maxWork int64) Option {
	return func(s *Server) {
		s.securityConfig.MaxWork = maxWork
	}
}

// WithTimeouts sets custom timeout configuration for the server.
// This allows fine-tuning server behavior for different deployment scenarios.
//
// Parameters:
//   - timeouts: The timeout configuration.
//
// Returns:
//   - Option: A functional option that configures the server's timeouts.
func WithTimeouts(timeouts Timeouts) Option {
	return func(s *Server) {
		s.timeouts = timeouts
	}
}

// Timeouts holds timeout configuration for the HTTP server.
// These can be customized via functional options for testing or deployment needs.
type Timeouts struct {
	// RequestTimeout is the maximum duration for a single pricing request.
	RequestTimeout time.Duration
	// ShutdownTimeout is the maximum duration allowed for graceful shutdown.
	ShutdownTimeout time.Duration
	// ReadTimeout is the maximum duration for reading the entire request, including the body.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
	// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration
}

// DefaultServerTimeouts returns the timeouts used when none are configured.
func DefaultServerTimeouts() Timeouts {
	return Timeouts{
		RequestTimeout:  5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Minute,
		IdleTimeout:     2 * time.Minute,
	}
}
