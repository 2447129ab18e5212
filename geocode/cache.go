package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores resolved points by normalized location name.
type Cache interface {
	Get(ctx context.Context, name string) (Point, bool, error)
	Set(ctx context.Context, name string, p Point) error
}

func cacheKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// MemoryCache is a process-local Cache with no eviction.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Point
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Point)}
}

func (m *MemoryCache) Get(_ context.Context, name string) (Point, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.entries[cacheKey(name)]
	return p, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, name string, p Point) error {
	m.mu.Lock()
	m.entries[cacheKey(name)] = p
	m.mu.Unlock()
	return nil
}

// Len returns the number of cached names.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// RedisCache shares resolved points across processes.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache stores entries under prefix with the given TTL (0 = no expiry).
func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "tripauth:geo"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisCache) key(name string) string {
	return r.prefix + ":" + cacheKey(name)
}

func (r *RedisCache) Get(ctx context.Context, name string) (Point, bool, error) {
	raw, err := r.client.Get(ctx, r.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Point{}, false, nil
	}
	if err != nil {
		return Point{}, false, err
	}
	var p Point
	if err := json.Unmarshal(raw, &p); err != nil {
		return Point{}, false, err
	}
	return p, true, nil
}

func (r *RedisCache) Set(ctx context.Context, name string, p Point) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(name), raw, r.ttl).Err()
}
