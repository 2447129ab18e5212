package session

import (
	"context"
	"fmt"
	"time"

	"github.com/travelplanner/tripauth/jwt"
	"go.uber.org/zap"
)

// Outcome describes what Bootstrap found in storage.
type Outcome int

const (
	// OutcomeEmpty means token or email was missing; nothing was changed.
	OutcomeEmpty Outcome = iota
	// OutcomeRestored means the stored session was still valid and is now current.
	OutcomeRestored
	// OutcomeExpired means the stored token's exp had passed; storage was cleared.
	OutcomeExpired
	// OutcomeMalformed means the stored token could not be decoded; storage was cleared.
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeRestored:
		return "restored"
	case OutcomeExpired:
		return "expired"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// BootstrapResult is the outcome of Bootstrap together with the resulting session.
type BootstrapResult struct {
	Session   Session
	Outcome   Outcome
	ExpiresAt time.Time
}

// Bootstrap rebuilds the in-memory session from durable storage.
//
// A stored token whose exp is not strictly after now, or whose payload cannot be
// decoded, is removed from storage and leaves the session empty. Bootstrap performs
// no network I/O and may be called any number of times.
func (s *Store) Bootstrap(ctx context.Context, now time.Time) (BootstrapResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	record, err := s.backend.Load(ctx)
	if err != nil {
		s.set(Session{})
		s.logger.Warn("load session failed", zap.Error(err))
		return BootstrapResult{Outcome: OutcomeEmpty}, wrapStorage(err)
	}
	if !record.complete() {
		s.set(Session{})
		return BootstrapResult{Outcome: OutcomeEmpty}, nil
	}

	exp, err := jwt.ExpiresAt(record.Token)
	if err != nil {
		s.logger.Info("discarding stored session",
			zap.String("email", record.Email),
			zap.Error(fmt.Errorf("%w: %v", ErrTokenDecode, err)),
		)
		return s.discard(ctx, BootstrapResult{Outcome: OutcomeMalformed})
	}

	if exp.Unix() <= now.Unix() {
		s.logger.Info("stored session expired",
			zap.String("email", record.Email),
			zap.Time("expires_at", exp),
		)
		return s.discard(ctx, BootstrapResult{Outcome: OutcomeExpired, ExpiresAt: exp})
	}

	sess := Session{Email: record.Email, Token: record.Token}
	s.set(sess)
	s.logger.Debug("session restored", zap.String("email", sess.Email), zap.Time("expires_at", exp))
	return BootstrapResult{Session: sess, Outcome: OutcomeRestored, ExpiresAt: exp}, nil
}

func (s *Store) discard(ctx context.Context, result BootstrapResult) (BootstrapResult, error) {
	s.set(Session{})
	if err := s.backend.Remove(ctx); err != nil {
		s.logger.Warn("remove stale session failed", zap.Error(err))
		return result, wrapStorage(err)
	}
	return result, nil
}
