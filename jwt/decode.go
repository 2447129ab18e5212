package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed is returned when a token cannot be decoded at all.
	ErrMalformed = errors.New("malformed token")
	// ErrMissingExpiry is returned when a token decodes but carries no exp claim.
	ErrMissingExpiry = errors.New("token has no exp claim")
)

// Unverified decodes the payload of tokenStr without checking its signature.
func Unverified(tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrMalformed
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of tokenStr. The signature is not verified.
func ExpiresAt(tokenStr string) (time.Time, error) {
	claims, err := Unverified(tokenStr)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrMissingExpiry
	}
	return claims.ExpiresAt.Time, nil
}
