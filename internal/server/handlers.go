package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/agbru/rbergomi/internal/errors"
	"github.com/agbru/rbergomi/internal/grid"
	"github.com/agbru/rbergomi/internal/rbergomi"
	"github.com/agbru/rbergomi/internal/spectral"
)

// handleHealth responds to health check requests.
// It returns a 200 OK status with a JSON payload indicating the service is healthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	response := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}

	s.writeJSONResponse(w, http.StatusOK, response)
}

// handlePrice prices the grid of a PriceRequest.
//
// Parameters:
//   - w: The HTTP response writer.
//   - r: The HTTP request.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req PriceRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	g, job, err := s.parsePriceRequest(req)
	if err != nil {
		var reqErr RequestError
		if errors.As(err, &reqErr) {
			s.writeErrorResponse(w, reqErr.StatusCode, reqErr.Message)
		} else {
			s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	var key uint64
	cacheable := req.Seed != nil
	if cacheable {
		key = cacheKey(req, job, req.Ordered == nil || *req.Ordered)
		if resp, ok := s.cache.get(key); ok {
			w.Header().Set("X-Cache", "hit")
			s.writeJSONResponse(w, http.StatusOK, resp)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeouts.RequestTimeout)
	defer cancel()

	start := time.Now()
	if err := s.runSlots.Acquire(ctx, 1); err != nil {
		s.writePricingError(w, r, err, time.Since(start))
		return
	}
	rows, err := s.pricer.Price(ctx, g, job)
	s.runSlots.Release(1)
	duration := time.Since(start)
	if err != nil {
		s.writePricingError(w, r, err, duration)
		return
	}

	resp := PriceResponse{
		Rows:     rows,
		Steps:    job.Options.Steps,
		Samples:  job.Options.Samples,
		Seed:     job.Seed,
		Payoff:   job.Options.Mode.String(),
		Sampler:  job.Sampler,
		Backend:  string(job.Options.Backend),
		Duration: duration.String(),
	}
	if cacheable {
		s.cache.add(key, resp)
	}
	s.writeJSONResponse(w, http.StatusOK, resp)
}

// writePricingError maps a failed run to an HTTP status.
func (s *Server) writePricingError(w http.ResponseWriter, r *http.Request, err error, duration time.Duration) {
	// exit_code is what the CLI would have returned for the same failure.
	event := s.logger.Error()
	if apperrors.IsContextError(err) {
		event = s.logger.Warn()
	}
	event.Err(err).
		Str("request_id", requestIDFrom(r.Context())).
		Int("exit_code", apperrors.ExitCodeFor(err)).
		Dur("duration", duration).
		Msg("pricing failed")
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, http.StatusGatewayTimeout, "Pricing exceeded the request timeout")
	case errors.Is(err, context.Canceled):
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "Pricing was canceled")
	default:
		s.writeErrorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

// parsePriceRequest validates a request and fills its defaults from the
// server configuration.
//
// Returns:
//   - *grid.Grid: The grid to price.
//   - Job: The run settings.
//   - error: A RequestError or a grid/validation error, all client errors.
func (s *Server) parsePriceRequest(req PriceRequest) (*grid.Grid, Job, error) {
	steps := firstPositive(req.Steps, s.cfg.Steps, rbergomi.DefaultSteps)
	samples := firstPositive(req.Samples, s.cfg.Samples, rbergomi.DefaultSamples)
	if req.Steps < 0 || req.Samples < 0 {
		return nil, Job{}, RequestError{Message: "'steps' and 'samples' must be positive", StatusCode: http.StatusBadRequest}
	}

	mode, err := rbergomi.ParsePayoffMode(firstNonEmpty(req.Payoff, s.cfg.Payoff, "conditional"))
	if err != nil {
		return nil, Job{}, RequestError{Message: err.Error(), StatusCode: http.StatusBadRequest}
	}

	sampler := firstNonEmpty(req.Sampler, s.cfg.Sampler, "prng")
	if sampler != "prng" && sampler != "halton" {
		return nil, Job{}, RequestError{Message: fmt.Sprintf("unknown sampler %q (want prng or halton)", sampler), StatusCode: http.StatusBadRequest}
	}

	backend := s.backend
	if req.FFT != "" && req.FFT != "auto" {
		if backend, err = spectral.ParseBackend(req.FFT); err != nil {
			return nil, Job{}, RequestError{Message: err.Error(), StatusCode: http.StatusBadRequest}
		}
	}

	ordered := req.Ordered == nil || *req.Ordered
	var g *grid.Grid
	if ordered {
		g, err = grid.NewOrdered(req.H, req.Eta, req.Rho, req.T, req.K, req.Xi)
	} else {
		g, err = grid.New(req.H, req.Eta, req.Rho, req.T, req.K, req.Xi)
	}
	if err != nil {
		return nil, Job{}, err
	}
	if err := g.Validate(); err != nil {
		return nil, Job{}, err
	}

	// Compared in float64: the product can overflow int64.
	if work := float64(steps) * float64(samples) * float64(g.Len()); work > float64(s.securityConfig.MaxWork) {
		return nil, Job{}, RequestError{
			Message: fmt.Sprintf("Requested work (steps x samples x rows = %.0f) exceeds maximum allowed (%d). This limit prevents resource exhaustion.",
				work, s.securityConfig.MaxWork),
			StatusCode: http.StatusBadRequest,
		}
	}

	seed := uint64(time.Now().UnixNano())
	if req.Seed != nil {
		seed = *req.Seed
	}

	return g, Job{
		Sampler: sampler,
		Seed:    seed,
		Options: rbergomi.Options{
			Steps:         steps,
			Samples:       samples,
			Workers:       s.cfg.Workers,
			Mode:          mode,
			Backend:       backend,
			FullRecompute: req.FullRecompute,
			Verify:        req.Verify,
			Logger:        s.logger,
		},
	}, nil
}

func firstPositive[T int | int64](values ...T) T {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// writeJSONResponse helper function to write a JSON response with the correct content type.
func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("error encoding JSON response")
	}
}

// writeErrorResponse helper function to write a standardized error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	errResp := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	s.writeJSONResponse(w, statusCode, errResp)
}
