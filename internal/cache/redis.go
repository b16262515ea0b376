package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore implements Store on Redis. Values are serialized with a Codec.
type RedisStore[T any] struct {
	client redis.UniversalClient
	codec  Codec[T]
}

// RedisOption configures a RedisStore.
type RedisOption[T any] func(*RedisStore[T])

// WithCodec replaces the default JSON codec.
func WithCodec[T any](codec Codec[T]) RedisOption[T] {
	return func(s *RedisStore[T]) {
		s.codec = codec
	}
}

// NewRedisStore wraps an existing client. The caller owns the client.
func NewRedisStore[T any](client redis.UniversalClient, opts ...RedisOption[T]) (*RedisStore[T], error) {
	if client == nil {
		return nil, ErrMissingStore
	}
	s := &RedisStore[T]{client: client, codec: JSONCodec[T]{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Has checks key existence.
func (s *RedisStore[T]) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists error: %w", err)
	}
	return n > 0, nil
}

// Get reads and decodes the value for key.
func (s *RedisStore[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, ErrKeyNotFound
		}
		return zero, fmt.Errorf("redis get error: %w", err)
	}
	v, err := s.codec.Decode(data)
	if err != nil {
		return zero, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

// Set encodes and stores value with ttl. A single SET is atomic.
func (s *RedisStore[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := s.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}
