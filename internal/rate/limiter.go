package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters. A zero max disables that throttle.
type Config struct {
	EnableIPThrottle bool
	MaxRequests      int
	RequestWindow    time.Duration
	MaxVerifies      int
	VerifyWindow     time.Duration
}

// Limiter enforces per-email and per-IP budgets for code requests and
// verifications using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// AllowRequest counts a code request for email from ip and fails once either
// budget is exceeded.
func (l *Limiter) AllowRequest(ctx context.Context, email, ip string) error {
	if l.config.MaxRequests <= 0 {
		return nil
	}
	if err := l.enforce(ctx, requestEmailKey(email), l.config.MaxRequests, l.config.RequestWindow); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.enforce(ctx, requestIPKey(ip), l.config.MaxRequests, l.config.RequestWindow)
	}
	return nil
}

// AllowVerify counts a verification from ip.
func (l *Limiter) AllowVerify(ctx context.Context, ip string) error {
	if l.config.MaxVerifies <= 0 || !l.config.EnableIPThrottle || ip == "" {
		return nil
	}
	return l.enforce(ctx, verifyIPKey(ip), l.config.MaxVerifies, l.config.VerifyWindow)
}

// ResetRequests clears the per-email request window after a successful sign-in.
func (l *Limiter) ResetRequests(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, requestEmailKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) enforce(ctx context.Context, key string, max int, window time.Duration) error {
	count, err := l.incrementWithTTL(ctx, key, window)
	if err != nil {
		return err
	}
	if count > int64(max) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func requestEmailKey(email string) string {
	return "tro:" + strings.ToLower(strings.TrimSpace(email))
}

func requestIPKey(ip string) string {
	return "troi:" + ip
}

func verifyIPKey(ip string) string {
	return "trv:" + ip
}
