package session

import (
	"context"
	"errors"
)

var (
	// ErrStorageUnavailable wraps every durable storage failure.
	ErrStorageUnavailable = errors.New("session storage unavailable")
	// ErrInvalidSession is returned by Save when email or token is empty.
	ErrInvalidSession = errors.New("session requires email and token")
	// ErrTokenDecode marks a stored token whose exp claim could not be read.
	ErrTokenDecode = errors.New("stored token could not be decoded")
)

// Backend persists the session record durably.
//
// Load returns an empty Record and a nil error when nothing is stored.
// Store replaces both entries as one unit. Remove is idempotent.
type Backend interface {
	Load(ctx context.Context) (Record, error)
	Store(ctx context.Context, record Record) error
	Remove(ctx context.Context) error
}
