package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestSecurityMiddleware(t *testing.T) {
	t.Parallel()
	h := SecurityMiddleware(DefaultSecurityConfig(), okHandler)

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	h(w, req)

	headers := map[string]string{
		"X-Content-Type-Options":      "nosniff",
		"X-Frame-Options":             "DENY",
		"Access-Control-Allow-Origin": "*",
	}
	for k, v := range headers {
		if got := w.Header().Get(k); got != v {
			t.Errorf("Header %s: expected %q, got %q", k, v, got)
		}
	}
}

func TestSecurityMiddlewarePreflight(t *testing.T) {
	t.Parallel()
	called := false
	h := SecurityMiddleware(DefaultSecurityConfig(), func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodOptions, "/price", http.NoBody)
	w := httptest.NewRecorder()
	h(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}
	if called {
		t.Error("Expected preflight not to reach the handler")
	}
}

func TestSecurityMiddlewareDisallowedOrigin(t *testing.T) {
	t.Parallel()
	cfg := DefaultSecurityConfig()
	cfg.AllowedOrigins = []string{"https://allowed.example"}
	h := SecurityMiddleware(cfg, okHandler)

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	h(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no CORS header, got %q", got)
	}
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 3})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("Request %d: expected allowed", i)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("Expected fourth request to be limited")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("Expected another client to be allowed")
	}
	rl.Stop() // second Stop must not panic
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 1})
	defer rl.Stop()
	h := RateLimitMiddleware(rl, okHandler)

	codes := make([]int, 2)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h(w, req)
		codes[i] = w.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("Expected [200 429], got %v", codes)
	}
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"Forwarded", map[string]string{"X-Forwarded-For": "9.9.9.9, 10.0.0.1"}, "1.1.1.1:80", "9.9.9.9"},
		{"Real IP", map[string]string{"X-Real-IP": " 8.8.8.8 "}, "1.1.1.1:80", "8.8.8.8"},
		{"IPv4 remote", nil, "1.1.1.1:80", "1.1.1.1"},
		{"IPv6 remote", nil, "[::1]:80", "::1"},
		{"No port", nil, "2.2.2.2", "2.2.2.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRateLimiterRefill(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60, Burst: 2})
	defer rl.Stop()
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("c") || !rl.Allow("c") {
		t.Fatal("Expected the burst to be allowed")
	}
	if rl.Allow("c") {
		t.Fatal("Expected the empty bucket to refuse")
	}
	now = now.Add(time.Second)
	if !rl.Allow("c") {
		t.Error("Expected one token after one second at 60/min")
	}
	if rl.Allow("c") {
		t.Error("Expected the bucket to be empty again")
	}
	if got := rl.retryAfter(); got != 1 {
		t.Errorf("Expected Retry-After 1, got %d", got)
	}

	now = now.Add(10 * time.Minute)
	rl.forgetIdle(time.Minute)
	rl.mu.Lock()
	n := len(rl.buckets)
	rl.mu.Unlock()
	if n != 0 {
		t.Errorf("Expected idle clients to be forgotten, got %d", n)
	}
}
