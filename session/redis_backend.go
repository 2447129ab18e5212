package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "tripauth:session"

// RedisBackend keeps the session as two Redis string keys written in one transaction.
type RedisBackend struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisBackend returns a backend storing under prefix. A zero ttl stores without expiry.
func NewRedisBackend(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisBackend{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (b *RedisBackend) tokenKey() string {
	return b.prefix + ":token"
}

func (b *RedisBackend) emailKey() string {
	return b.prefix + ":email"
}

// Load reads both keys with a single MGET.
func (b *RedisBackend) Load(ctx context.Context) (Record, error) {
	values, err := b.redis.MGet(ctx, b.tokenKey(), b.emailKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, nil
		}
		return Record{}, err
	}

	var record Record
	if len(values) == 2 {
		record.Token, _ = values[0].(string)
		record.Email, _ = values[1].(string)
	}
	return record, nil
}

// Store writes both keys inside MULTI/EXEC.
func (b *RedisBackend) Store(ctx context.Context, record Record) error {
	_, err := b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.tokenKey(), record.Token, b.ttl)
		pipe.Set(ctx, b.emailKey(), record.Email, b.ttl)
		return nil
	})
	return err
}

// Remove deletes both keys. Missing keys are not an error.
func (b *RedisBackend) Remove(ctx context.Context) error {
	return b.redis.Del(ctx, b.tokenKey(), b.emailKey()).Err()
}
