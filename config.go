package tripauth

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full engine configuration.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	API      APIConfig
	OTP      OTPConfig
	Storage  StorageConfig
	Geocoder GeocoderConfig
	Events   EventsConfig
	Metrics  MetricsConfig
	Log      LogConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the backend gateway.
type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls the login state machine.
type OTPConfig struct {
	// ChallengeTTL is the countdown started by every successful request or resend.
	ChallengeTTL time.Duration
	// EnforceResendCooldown rejects Resend while the countdown is above zero.
	EnforceResendCooldown bool
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageBackend selects where the session is persisted.
type StorageBackend string

const (
	StorageFile   StorageBackend = "file"
	StorageRedis  StorageBackend = "redis"
	StorageMemory StorageBackend = "memory"
)

// StorageConfig selects and configures the durable session backend.
type StorageConfig struct {
	Backend StorageBackend
	// FilePath overrides session.DefaultFilePath for the file backend.
	FilePath string
	// RedisURL is used when no client is supplied through Builder.WithRedis.
	RedisURL    string
	RedisPrefix string
	// RedisTTL bounds how long a persisted session survives in Redis. 0 keeps it until logout.
	RedisTTL time.Duration
}

/*
====================================
GEOCODER CONFIG
====================================
*/

// GeocoderConfig configures activity location lookups.
type GeocoderConfig struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	Concurrency int
	// CacheTTL applies to the Redis cache only.
	CacheTTL time.Duration
}

/*
====================================
EVENTS CONFIG
====================================
*/

// EventsConfig controls delivery of session change events to the listener.
type EventsConfig struct {
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process counters read by the exporters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
LOG CONFIG
====================================
*/

// LogConfig is consumed by hosts building a logger with NewLogger.
type LogConfig struct {
	Level       string
	Development bool
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8000",
			Timeout:   60 * time.Second,
			UserAgent: "tripauth/1",
		},
		OTP: OTPConfig{
			ChallengeTTL: 10 * time.Minute,
		},
		Storage: StorageConfig{
			Backend:     StorageFile,
			RedisPrefix: "tripauth:session",
		},
		Geocoder: GeocoderConfig{
			BaseURL:     "https://nominatim.openstreetmap.org",
			UserAgent:   "tripauth/1",
			Timeout:     10 * time.Second,
			Concurrency: 4,
			CacheTTL:    24 * time.Hour,
		},
		Events: EventsConfig{
			BufferSize: 16,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := validateHTTPURL("API BaseURL", c.API.BaseURL); err != nil {
		return err
	}
	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}

	if c.OTP.ChallengeTTL < time.Second {
		return errors.New("OTP ChallengeTTL must be >= 1s")
	}

	switch c.Storage.Backend {
	case StorageFile, StorageMemory:
	case StorageRedis:
		if strings.TrimSpace(c.Storage.RedisPrefix) == "" {
			return errors.New("Storage RedisPrefix must be set for the redis backend")
		}
		if c.Storage.RedisTTL < 0 {
			return errors.New("Storage RedisTTL must be >= 0")
		}
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}

	if c.Geocoder.BaseURL != "" {
		if err := validateHTTPURL("Geocoder BaseURL", c.Geocoder.BaseURL); err != nil {
			return err
		}
	}
	if c.Geocoder.Concurrency < 0 {
		return errors.New("Geocoder Concurrency must be >= 0")
	}
	if c.Geocoder.CacheTTL < 0 {
		return errors.New("Geocoder CacheTTL must be >= 0")
	}

	if c.Events.BufferSize < 0 {
		return errors.New("Events BufferSize must be >= 0")
	}

	return nil
}

func validateHTTPURL(name, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", name)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", name)
	}
	return nil
}

/*
====================================
ENVIRONMENT
====================================
*/

// LoadConfig reads a .env file when one exists, applies TRIPAUTH_* environment
// overrides on top of DefaultConfig, and validates the result.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	cfg.API.BaseURL = getEnv("TRIPAUTH_API_URL", cfg.API.BaseURL)
	cfg.Storage.Backend = StorageBackend(strings.ToLower(getEnv("TRIPAUTH_STORAGE", string(cfg.Storage.Backend))))
	cfg.Storage.FilePath = getEnv("TRIPAUTH_STORAGE_PATH", cfg.Storage.FilePath)
	cfg.Storage.RedisURL = getEnv("TRIPAUTH_REDIS_URL", cfg.Storage.RedisURL)
	cfg.Storage.RedisPrefix = getEnv("TRIPAUTH_REDIS_PREFIX", cfg.Storage.RedisPrefix)
	cfg.Geocoder.BaseURL = getEnv("TRIPAUTH_GEOCODER_URL", cfg.Geocoder.BaseURL)
	cfg.Log.Level = getEnv("TRIPAUTH_LOG_LEVEL", cfg.Log.Level)

	var err error
	if cfg.API.Timeout, err = getEnvDuration("TRIPAUTH_API_TIMEOUT", cfg.API.Timeout); err != nil {
		return Config{}, err
	}
	if cfg.OTP.EnforceResendCooldown, err = getEnvBool("TRIPAUTH_RESEND_COOLDOWN", cfg.OTP.EnforceResendCooldown); err != nil {
		return Config{}, err
	}
	if cfg.Metrics.Enabled, err = getEnvBool("TRIPAUTH_METRICS", cfg.Metrics.Enabled); err != nil {
		return Config{}, err
	}
	if cfg.Log.Development, err = getEnvBool("TRIPAUTH_LOG_DEVELOPMENT", cfg.Log.Development); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
