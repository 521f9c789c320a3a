package server

import (
	"github.com/agbru/rbergomi/internal/rbergomi"
)

// PriceRequest is the JSON body of POST /price. The six parameter arrays are
// co-indexed; every other field falls back to the server configuration.
type PriceRequest struct {
	H   []float64 `json:"H"`
	Eta []float64 `json:"eta"`
	Rho []float64 `json:"rho"`
	T   []float64 `json:"T"`
	K   []float64 `json:"K"`
	Xi  []float64 `json:"xi"`

	Steps         int     `json:"steps,omitempty"`
	Samples       int64   `json:"samples,omitempty"`
	Payoff        string  `json:"payoff,omitempty"`
	Sampler       string  `json:"sampler,omitempty"`
	FFT           string  `json:"fft,omitempty"`
	Seed          *uint64 `json:"seed,omitempty"`
	Ordered       *bool   `json:"ordered,omitempty"`
	FullRecompute bool    `json:"full_recompute,omitempty"`
	Verify        bool    `json:"verify,omitempty"`
}

// PriceResponse is the JSON body of a successful POST /price.
type PriceResponse struct {
	// Rows holds one result per input row, in input order.
	Rows []rbergomi.Result `json:"rows"`
	// Steps and Samples are the N and M actually used.
	Steps   int   `json:"steps"`
	Samples int64 `json:"samples"`
	// Seed is the master seed, so the run can be reproduced.
	Seed    uint64 `json:"seed"`
	Payoff  string `json:"payoff"`
	Sampler string `json:"sampler"`
	Backend string `json:"fft"`
	// Duration is the formatted execution time string.
	Duration string `json:"duration"`
}

// ErrorResponse represents the standardized JSON response for an API error.
type ErrorResponse struct {
	// Error is the short error code or status text.
	Error string `json:"error"`
	// Message is a descriptive error message.
	Message string `json:"message,omitempty"`
}

// RequestError represents a request validation error with HTTP status.
type RequestError struct {
	Message    string
	StatusCode int
}

// Error implements the error interface.
func (e RequestError) Error() string {
	return e.Message
}
