package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestIDGeneratesAndPropagates(t *testing.T) {
	var got string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if got == "" || rr.Header().Get("X-Request-Id") != got {
		t.Fatalf("expected generated id echoed in header, got %q / %q", got, rr.Header().Get("X-Request-Id"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got != "abc-123" {
		t.Errorf("incoming id not propagated, got %q", got)
	}
}

func TestWithRequestLogPassesThroughStatus(t *testing.T) {
	h := WithRequestLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rr.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusTeapot)
	}
}

func TestWithCORSPreflight(t *testing.T) {
	called := false
	h := WithCORS("", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/generators", nil))
	if rr.Code != http.StatusNoContent || called {
		t.Errorf("preflight should short-circuit with 204, got %d called=%v", rr.Code, called)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing allow-origin header")
	}
}

func TestWithSecurityHeaders(t *testing.T) {
	h := WithSecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	for _, k := range []string{"X-Content-Type-Options", "X-Frame-Options", "Strict-Transport-Security"} {
		if rr.Header().Get(k) == "" {
			t.Errorf("missing %s", k)
		}
	}
}

type countingLimiter struct {
	limit int
	seen  map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, key string) bool {
	l.seen[key]++
	return l.seen[key] <= l.limit
}

func TestRateLimitKeysByClientIP(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("NewTrustedProxies: %v", err)
	}
	l := &countingLimiter{limit: 1, seen: map[string]int{}}
	h := RateLimit(l, trusted, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(peer, xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = peer + ":40000"
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	if code := send("10.0.0.5", "203.0.113.1"); code != http.StatusOK {
		t.Fatalf("first request status = %d", code)
	}
	if code := send("10.0.0.6", "203.0.113.1, 10.0.0.9"); code != http.StatusTooManyRequests {
		t.Errorf("second request from same client status = %d, want 429", code)
	}
	if code := send("10.0.0.5", "203.0.113.2"); code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", code)
	}
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	l := &countingLimiter{limit: 1, seen: map[string]int{}}
	h := RateLimit(l, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for _, xff := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "9.9.9.9:51000"
		req.Header.Set("X-Forwarded-For", xff)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	want := []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("attempt %d status = %d, want %d", i+1, codes[i], want[i])
		}
	}
	if l.seen["9.9.9.9"] != 3 {
		t.Errorf("limiter keys = %v, want all attempts on the peer address", l.seen)
	}
}

func TestClientIP(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8", "192.0.2.1"})
	if err != nil {
		t.Fatalf("NewTrustedProxies: %v", err)
	}
	tests := []struct {
		name    string
		trusted *TrustedProxies
		peer    string
		xff     string
		realIP  string
		want    string
	}{
		{"no proxies trusted", nil, "198.51.100.7:5555", "203.0.113.9", "", "198.51.100.7"},
		{"untrusted peer", trusted, "198.51.100.7:5555", "203.0.113.9", "", "198.51.100.7"},
		{"trusted proxy", trusted, "10.1.2.3:5555", "203.0.113.9", "", "203.0.113.9"},
		{"rightmost untrusted hop", trusted, "10.1.2.3:5555", "6.6.6.6, 203.0.113.9, 10.4.4.4", "", "203.0.113.9"},
		{"single trusted ip", trusted, "192.0.2.1:80", "203.0.113.9", "", "203.0.113.9"},
		{"all hops trusted", trusted, "10.1.2.3:5555", "10.9.9.9", "", "10.9.9.9"},
		{"x-real-ip from proxy", trusted, "10.1.2.3:5555", "", "198.51.100.3", "198.51.100.3"},
		{"x-real-ip from client", nil, "198.51.100.7:5555", "", "1.2.3.4", "198.51.100.7"},
		{"garbage forwarded", trusted, "10.1.2.3:5555", "not-an-ip", "", "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.peer
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := ClientIP(req, tt.trusted); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewTrustedProxies(t *testing.T) {
	if tp, err := NewTrustedProxies([]string{"", " "}); err != nil || tp != nil {
		t.Errorf("blank entries = %v, %v; want nil allowlist", tp, err)
	}
	if _, err := NewTrustedProxies([]string{"10.0.0.0/33"}); err == nil {
		t.Error("expected error for bad CIDR")
	}
	if _, err := NewTrustedProxies([]string{"proxy.local"}); err == nil {
		t.Error("expected error for hostname")
	}
}
