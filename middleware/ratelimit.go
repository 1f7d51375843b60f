package middleware

import (
	"context"
	"net/http"
)

// Limiter decides whether key may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// RateLimit rejects requests over the limiter's budget with 429, keyed by
// client IP as resolved by ClientIP. A nil limiter disables the check.
func RateLimit(l Limiter, trusted *TrustedProxies, next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r, trusted)
		if !l.Allow(r.Context(), ip) {
			Logger(r.Context()).Warn("rate limited", "ip", ip, "path", r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
