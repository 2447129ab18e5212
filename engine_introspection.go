package tripauth

import (
	"context"
	"time"

	"github.com/travelplanner/tripauth/jwt"
)

// SessionInfo is the safe introspection view of the held session.
// It excludes the token itself.
type SessionInfo struct {
	Email     string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// Remaining is zero once the token has expired.
	Remaining time.Duration
	Storage   StorageBackend
}

// HealthStatus is an on-demand dependency health result.
type HealthStatus struct {
	BackendAvailable bool
	BackendLatency   time.Duration
	BackendError     string
	// RedisConfigured is false when no Redis client is in use; the other Redis fields are then zero.
	RedisConfigured bool
	RedisAvailable  bool
	RedisLatency    time.Duration
}

// Healthy reports whether every configured dependency answered.
func (h HealthStatus) Healthy() bool {
	return h.BackendAvailable && (!h.RedisConfigured || h.RedisAvailable)
}

// GetSessionInfo describes the held session from its token claims. The token
// signature is not checked. ok is false when no session is held.
func (e *Engine) GetSessionInfo() (info SessionInfo, ok bool, err error) {
	if e == nil {
		return SessionInfo{}, false, ErrEngineNotReady
	}
	sess := e.store.Current()
	if !sess.Complete() {
		return SessionInfo{}, false, nil
	}

	claims, err := jwt.Unverified(sess.Token)
	if err != nil {
		return SessionInfo{}, true, ErrTokenDecode
	}
	info = SessionInfo{
		Email:   sess.Email,
		Issuer:  claims.Issuer,
		Storage: e.config.Storage.Backend,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
		if left := info.ExpiresAt.Sub(e.now()); left > 0 {
			info.Remaining = left
		}
	}
	return info, true, nil
}

// HealthReport pings the backend and, when one is in use, Redis. It never fails;
// problems are reported in the result.
func (e *Engine) HealthReport(ctx context.Context) HealthStatus {
	if e == nil {
		return HealthStatus{}
	}

	var status HealthStatus
	start := time.Now()
	err := e.api.Health(ctx)
	status.BackendLatency = time.Since(start)
	status.BackendAvailable = err == nil
	if err != nil {
		status.BackendError = err.Error()
	}

	if e.redis != nil {
		status.RedisConfigured = true
		start = time.Now()
		err = e.redis.Ping(ctx).Err()
		status.RedisLatency = time.Since(start)
		status.RedisAvailable = err == nil
	}
	return status
}
