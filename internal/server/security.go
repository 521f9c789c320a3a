package server

import (
	"net/http"
	"slices"
	"strings"
)

// DefaultMaxBodyBytes bounds the size of a /price request body.
const DefaultMaxBodyBytes = 1 << 20

// SecurityConfig holds the CORS policy and the request limits.
type SecurityConfig struct {
	// EnableCORS enables Cross-Origin Resource Sharing headers.
	EnableCORS bool
	// AllowedOrigins lists the accepted origins; "*" accepts any.
	AllowedOrigins []string
	// AllowedMethods is sent in Access-Control-Allow-Methods.
	AllowedMethods []string
	// MaxWork is the largest steps x samples x rows a request may ask for.
	MaxWork int64
	// MaxBodyBytes bounds the request body.
	MaxBodyBytes int64
}

// DefaultSecurityConfig returns the default security configuration.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		MaxWork:        5_000_000_000,
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
}

// staticHeaders are set on every response. The API only serves JSON.
var staticHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Cache-Control", "no-store"},
}

// allowedOrigin returns the value of Access-Control-Allow-Origin for origin.
func (c SecurityConfig) allowedOrigin(origin string) (string, bool) {
	if slices.Contains(c.AllowedOrigins, "*") {
		return "*", true
	}
	if origin != "" && slices.Contains(c.AllowedOrigins, origin) {
		return origin, true
	}
	return "", false
}

// SecurityMiddleware sets the static security headers, answers CORS
// preflights with 204 and bounds the request body to MaxBodyBytes.
func SecurityMiddleware(config SecurityConfig, next http.HandlerFunc) http.HandlerFunc {
	methods := strings.Join(config.AllowedMethods, ", ")
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range staticHeaders {
			h.Set(kv[0], kv[1])
		}

		if config.EnableCORS {
			if origin, ok := config.allowedOrigin(r.Header.Get("Origin")); ok {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", "Content-Type, Accept, "+RequestIDHeader)
				h.Set("Access-Control-Expose-Headers", RequestIDHeader+", X-Cache")
				h.Set("Access-Control-Max-Age", "86400")
				if origin != "*" {
					h.Add("Vary", "Origin")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}

		if config.MaxBodyBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, config.MaxBodyBytes)
		}
		next(w, r)
	}
}
