package tripauth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/travelplanner/tripauth/api"
	"github.com/travelplanner/tripauth/geocode"
	"github.com/travelplanner/tripauth/internal/events"
	"github.com/travelplanner/tripauth/session"
	"go.uber.org/zap"
)

// Builder assembles an Engine.
//
// Builder instances are intended to be configured during initialization and used once.
type Builder struct {
	config     Config
	backend    session.Backend
	redis      redis.UniversalClient
	httpClient *http.Client
	logger     *zap.Logger
	listener   SessionListener
	now        func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBackend overrides Config.Storage entirely.
func (b *Builder) WithBackend(backend session.Backend) *Builder {
	b.backend = backend
	return b
}

// WithRedis supplies the client for the redis storage backend and the geocode cache.
// The caller keeps ownership of client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient replaces the client used for the backend and the geocoder.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithSessionListener registers the receiver of session change events.
func (b *Builder) WithSessionListener(listener SessionListener) *Builder {
	b.listener = listener
	return b
}

// WithClock replaces time.Now for bootstrap expiry checks and event timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the Engine. It performs no I/O.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		config:  cfg,
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
		now:     now,
	}

	// -------- SESSION STORE --------
	rdb := b.redis
	backend := b.backend
	if backend == nil {
		var err error
		backend, rdb, err = b.resolveBackend(cfg.Storage, e)
		if err != nil {
			return nil, err
		}
	}
	e.store = session.NewStore(backend, logger)
	e.redis = rdb

	// -------- API CLIENT --------
	apiOpts := []api.Option{api.WithLogger(logger)}
	if b.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(b.httpClient))
	}
	client, err := api.NewClient(api.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent,
	}, e.store, apiOpts...)
	if err != nil {
		return nil, err
	}
	e.api = client

	// -------- GEOCODER --------
	if strings.TrimSpace(cfg.Geocoder.BaseURL) != "" {
		var cache geocode.Cache = geocode.NewMemoryCache()
		if rdb != nil {
			cache = geocode.NewRedisCache(rdb, "", cfg.Geocoder.CacheTTL)
		}
		geoOpts := []geocode.Option{geocode.WithLogger(logger.Named("geocode"))}
		if b.httpClient != nil {
			geoOpts = append(geoOpts, geocode.WithHTTPClient(b.httpClient))
		}
		gc, err := geocode.NewClient(geocode.Config{
			BaseURL:     cfg.Geocoder.BaseURL,
			UserAgent:   cfg.Geocoder.UserAgent,
			Timeout:     cfg.Geocoder.Timeout,
			Concurrency: cfg.Geocoder.Concurrency,
		}, cache, geoOpts...)
		if err != nil {
			return nil, err
		}
		e.geocoder = gc
	}

	// -------- EVENTS --------
	e.events = events.NewDispatcher(events.Config{
		BufferSize: cfg.Events.BufferSize,
		DropIfFull: cfg.Events.DropIfFull,
	}, b.listener)

	b.built = true
	return e, nil
}

// resolveBackend returns the configured backend and the redis client in use, if any.
// A client created here from Storage.RedisURL is closed by Engine.Close.
func (b *Builder) resolveBackend(cfg StorageConfig, e *Engine) (session.Backend, redis.UniversalClient, error) {
	switch cfg.Backend {
	case StorageMemory:
		return session.NewMemoryBackend(), b.redis, nil
	case StorageRedis:
		rdb := b.redis
		if rdb == nil {
			if strings.TrimSpace(cfg.RedisURL) == "" {
				return nil, nil, errors.New("redis storage requires WithRedis or Storage.RedisURL")
			}
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return nil, nil, fmt.Errorf("parse redis url: %w", err)
			}
			owned := redis.NewClient(opts)
			e.closers = append(e.closers, owned.Close)
			rdb = owned
		}
		return session.NewRedisBackend(rdb, cfg.RedisPrefix, cfg.RedisTTL), rdb, nil
	default:
		path := cfg.FilePath
		if path == "" {
			var err error
			if path, err = session.DefaultFilePath(); err != nil {
				return nil, nil, err
			}
		}
		return session.NewFileBackend(path), b.redis, nil
	}
}
