package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Store is the Token Store: the single writer of the session slot.
//
// Store methods are safe for concurrent use. Writes are serialized so that the
// in-memory session always reflects the last successful backend write.
type Store struct {
	backend Backend
	logger  *zap.Logger

	writeMu sync.Mutex

	mu      sync.RWMutex
	current Session
}

// NewStore returns a Store over backend. A nil logger is replaced by a no-op logger.
func NewStore(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		logger:  logger.Named("session"),
	}
}

// Save persists email and token, then makes them the current session.
// On failure the previous session is left untouched.
func (s *Store) Save(ctx context.Context, email, token string) error {
	email = strings.TrimSpace(email)
	token = strings.TrimSpace(token)
	if email == "" || token == "" {
		return ErrInvalidSession
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.backend.Store(ctx, Record{Token: token, Email: email}); err != nil {
		s.logger.Warn("persist session failed", zap.String("email", email), zap.Error(err))
		return wrapStorage(err)
	}

	s.set(Session{Email: email, Token: token})
	s.logger.Debug("session saved", zap.String("email", email))
	return nil
}

// Clear removes the persisted session and empties the in-memory slot.
// The slot is emptied even when the backend fails; the error is still returned.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.set(Session{})
	if err := s.backend.Remove(ctx); err != nil {
		s.logger.Warn("remove session failed", zap.Error(err))
		return wrapStorage(err)
	}
	return nil
}

// Current returns a copy of the in-memory session.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// CurrentToken returns the in-memory token, or "" when signed out.
func (s *Store) CurrentToken() string {
	return s.Current().Token
}

// CurrentEmail returns the in-memory email, or "" when signed out.
func (s *Store) CurrentEmail() string {
	return s.Current().Email
}

// Authenticated reports whether a complete session is held in memory.
func (s *Store) Authenticated() bool {
	return s.Current().Complete()
}

// BearerToken satisfies api.TokenSource.
func (s *Store) BearerToken() string {
	return s.CurrentToken()
}

func (s *Store) set(sess Session) {
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
}

func wrapStorage(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
