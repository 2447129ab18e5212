package devserver

import (
	"errors"
	"time"
)

// Config tunes the development backend.
type Config struct {
	JWTSecret []byte
	TokenTTL  time.Duration
	Issuer    string

	CodeDigits        int
	CodeTTL           time.Duration
	MaxVerifyAttempts int
	RedisPrefix       string

	// ThrottleByIP adds per-client-IP windows on top of the per-email one.
	ThrottleByIP         bool
	MaxRequestsPerWindow int
	RequestWindow        time.Duration
	MaxVerifiesPerWindow int
	VerifyWindow         time.Duration

	// RequireAuth guards /api/generate-itinerary with a bearer token.
	RequireAuth    bool
	AllowedOrigins []string
	MaxBodyBytes   int64
}

func DefaultConfig() Config {
	return Config{
		TokenTTL:             30 * time.Minute,
		Issuer:               "tripauth-devserver",
		CodeDigits:           6,
		CodeTTL:              10 * time.Minute,
		MaxVerifyAttempts:    5,
		RedisPrefix:          "tripauth:otp",
		ThrottleByIP:         true,
		MaxRequestsPerWindow: 5,
		RequestWindow:        10 * time.Minute,
		MaxVerifiesPerWindow: 30,
		VerifyWindow:         10 * time.Minute,
		RequireAuth:          true,
		AllowedOrigins:       []string{"*"},
		MaxBodyBytes:         8 << 20,
	}
}

func (c *Config) Validate() error {
	if len(c.JWTSecret) < 16 {
		return errors.New("devserver JWTSecret must be at least 16 bytes")
	}
	if c.TokenTTL <= 0 {
		return errors.New("devserver TokenTTL must be > 0")
	}
	if c.CodeDigits != 6 {
		return errors.New("devserver CodeDigits must be 6")
	}
	if c.CodeTTL <= 0 {
		return errors.New("devserver CodeTTL must be > 0")
	}
	if c.MaxVerifyAttempts <= 0 {
		return errors.New("devserver MaxVerifyAttempts must be > 0")
	}
	if c.MaxRequestsPerWindow > 0 && c.RequestWindow <= 0 {
		return errors.New("devserver RequestWindow must be > 0 when requests are limited")
	}
	if c.MaxVerifiesPerWindow > 0 && c.VerifyWindow <= 0 {
		return errors.New("devserver VerifyWindow must be > 0 when verifications are limited")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("devserver MaxBodyBytes must be > 0")
	}
	return nil
}
