package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestAllowRequestFixedWindow(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxRequests: 3, RequestWindow: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.AllowRequest(ctx, "A@example.com", ""); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if err := l.AllowRequest(ctx, "a@example.com ", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.AllowRequest(ctx, "b@example.com", ""); err != nil {
		t.Fatalf("other email must not share the window: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.AllowRequest(ctx, "a@example.com", ""); err != nil {
		t.Fatalf("window must reset: %v", err)
	}
}

func TestAllowRequestIPThrottle(t *testing.T) {
	l, _ := newTestLimiter(t, Config{EnableIPThrottle: true, MaxRequests: 2, RequestWindow: time.Minute})
	ctx := context.Background()

	_ = l.AllowRequest(ctx, "a@example.com", "10.0.0.1")
	_ = l.AllowRequest(ctx, "b@example.com", "10.0.0.1")
	if err := l.AllowRequest(ctx, "c@example.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected per-IP limit, got %v", err)
	}
}

func TestAllowVerify(t *testing.T) {
	l, _ := newTestLimiter(t, Config{EnableIPThrottle: true, MaxVerifies: 1, VerifyWindow: time.Minute})
	ctx := context.Background()

	if err := l.AllowVerify(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("AllowVerify: %v", err)
	}
	if err := l.AllowVerify(ctx, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.AllowVerify(ctx, ""); err != nil {
		t.Fatalf("unknown IP must not be throttled: %v", err)
	}
}

func TestResetRequests(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxRequests: 1, RequestWindow: time.Minute})
	ctx := context.Background()

	_ = l.AllowRequest(ctx, "a@example.com", "")
	if err := l.ResetRequests(ctx, "a@example.com"); err != nil {
		t.Fatalf("ResetRequests: %v", err)
	}
	if err := l.AllowRequest(ctx, "a@example.com", ""); err != nil {
		t.Fatalf("expected fresh window, got %v", err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxRequests: 1, RequestWindow: time.Minute})
	mr.Close()
	if err := l.AllowRequest(context.Background(), "a@example.com", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
