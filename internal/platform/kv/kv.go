// Package kv provides the shared key-value store used for rate-limit
// counters, the token denylist and daily sequence numbers. The Redis
// implementation backs production; the in-memory implementation backs
// tests and local development without a Redis instance.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the key-value contract the server depends on. All counters
// are incremented atomically in the store itself so multiple server
// instances sharing one store observe the same counts.
type Store interface {
	// Incr atomically increments the counter at key and returns the
	// new value. The key never expires.
	Incr(ctx context.Context, key string) (int64, error)

	// IncrWindow atomically increments the counter at key and returns
	// the new value. The first increment starts the window: the key
	// expires window after that first increment regardless of later
	// activity.
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)

	// SetWithTTL stores value at key, expiring after ttl. A later read
	// of the same key observes the write.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Exists reports whether key holds a live value.
	Exists(ctx context.Context, key string) (bool, error)

	// TTL returns the remaining lifetime of key, or 0 when the key
	// does not exist or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Del removes the given keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

// Redis implements Store on a Redis server.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the Redis server at the given URL
// (redis://host:port/db) and verifies the connection with a ping.
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Redis{client: client}, nil
}

func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

func (r *Redis) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// NX: only the increment that creates the key starts the window.
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (r *Redis) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// PTTL reports -1 for no expiry and -2 for a missing key.
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
