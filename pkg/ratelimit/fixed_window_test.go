package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, limit int) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l, err := NewFixedWindowLimiter(client, "test:login", limit, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return l, srv
}

func TestFixedWindowLimiter(t *testing.T) {
	l, _ := newLimiter(t, 2)
	ctx := context.Background()
	if !l.Allow(ctx, "10.0.0.1") || !l.Allow(ctx, "10.0.0.1") {
		t.Fatal("first two requests should pass")
	}
	if l.Allow(ctx, "10.0.0.1") {
		t.Fatal("third request should be blocked")
	}
	if !l.Allow(ctx, "10.0.0.2") {
		t.Fatal("other keys keep their own budget")
	}
}

func TestFixedWindowLimiterNextWindow(t *testing.T) {
	l, _ := newLimiter(t, 1)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }
	ctx := context.Background()
	if !l.Allow(ctx, "ip") || l.Allow(ctx, "ip") {
		t.Fatal("expected one pass then a block")
	}
	l.now = func() time.Time { return base.Add(time.Minute) }
	if !l.Allow(ctx, "ip") {
		t.Fatal("new window should reset the budget")
	}
}

func TestFixedWindowLimiterFailsClosed(t *testing.T) {
	l, srv := newLimiter(t, 5)
	srv.Close()
	if l.Allow(context.Background(), "ip") {
		t.Fatal("limiter should fail closed on redis errors")
	}
}

func TestNewFixedWindowLimiterValidation(t *testing.T) {
	if _, err := NewFixedWindowLimiter(nil, "", 1, time.Second); err == nil {
		t.Fatal("expected error without client")
	}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	if _, err := NewFixedWindowLimiter(client, "", 0, time.Second); err == nil {
		t.Fatal("expected error for zero limit")
	}
}
