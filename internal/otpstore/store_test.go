package otpstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "test:otp"), mr
}

func TestIssueAndConsume(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.Issue(ctx, " Traveler@Example.com ", "123456", 10*time.Minute); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	raw, err := mr.Get("test:otp:traveler@example.com")
	if err != nil {
		t.Fatalf("expected record: %v", err)
	}
	if len(raw) == 0 || containsCode(raw, "123456") {
		t.Fatal("record must hold only the code hash")
	}

	rec, err := s.Consume(ctx, "traveler@example.com", "123456", 5)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if rec.Email != "traveler@example.com" {
		t.Fatalf("unexpected email %q", rec.Email)
	}

	if _, err := s.Consume(ctx, "traveler@example.com", "123456", 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected single use, got %v", err)
	}
}

func containsCode(raw, code string) bool {
	for i := 0; i+len(code) <= len(raw); i++ {
		if raw[i:i+len(code)] == code {
			return true
		}
	}
	return false
}

func TestConsumeMismatchCountsAttempts(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.Issue(ctx, "a@example.com", "111111", time.Minute); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := s.Consume(ctx, "a@example.com", "000000", 3); !errors.Is(err, ErrMismatch) {
			t.Fatalf("attempt %d: expected ErrMismatch, got %v", i, err)
		}
	}
	if ttl := mr.TTL("test:otp:a@example.com"); ttl <= 0 {
		t.Fatalf("mismatch must keep the ttl, got %v", ttl)
	}
	if _, err := s.Consume(ctx, "a@example.com", "000000", 3); !errors.Is(err, ErrAttemptsExceeded) {
		t.Fatalf("expected ErrAttemptsExceeded, got %v", err)
	}
	if _, err := s.Consume(ctx, "a@example.com", "111111", 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record must be gone after lockout, got %v", err)
	}
}

func TestConsumeExpired(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.Issue(ctx, "a@example.com", "111111", time.Minute); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := s.Consume(ctx, "a@example.com", "111111", 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConsumeRespectsEmbeddedExpiry(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Issue(ctx, "a@example.com", "111111", time.Minute); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	s.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := s.Consume(ctx, "a@example.com", "111111", 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIssueReplacesPendingCode(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_ = s.Issue(ctx, "a@example.com", "111111", time.Minute)
	_ = s.Issue(ctx, "a@example.com", "222222", time.Minute)

	if _, err := s.Consume(ctx, "a@example.com", "111111", 5); !errors.Is(err, ErrMismatch) {
		t.Fatalf("old code must be replaced, got %v", err)
	}
	if _, err := s.Consume(ctx, "a@example.com", "222222", 5); err != nil {
		t.Fatalf("Consume: %v", err)
	}
}

func TestStoreRedisDown(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	if err := s.Issue(context.Background(), "a@example.com", "111111", time.Minute); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestNewCode(t *testing.T) {
	code, err := NewCode(6)
	if err != nil {
		t.Fatalf("NewCode: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 digits, got %q", code)
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			t.Fatalf("non-digit in %q", code)
		}
	}
	if _, err := NewCode(3); err == nil {
		t.Fatal("expected error for short code")
	}
}
