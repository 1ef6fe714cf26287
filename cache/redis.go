package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the Redis storage backend.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	Namespace string        `yaml:"namespace"`
	Timeout   time.Duration `yaml:"timeout"`
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		Namespace: "attire",
		Timeout:   3 * time.Second,
	}
}

// RedisStorage is a Storage backend over Redis, for deployments where several
// processes share one feature cache.
type RedisStorage struct {
	client    *goredis.Client
	namespace string
	timeout   time.Duration
}

// NewRedisStorage connects to Redis and verifies the connection.
func NewRedisStorage(cfg RedisConfig) (*RedisStorage, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRedisConfig().Timeout
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %v", err)
	}

	return &RedisStorage{
		client:    client,
		namespace: cfg.Namespace,
		timeout:   cfg.Timeout,
	}, nil
}

// NewRedisStorageWithClient wraps an existing client; tests use this with
// miniredis.
func NewRedisStorageWithClient(client *goredis.Client, namespace string) *RedisStorage {
	return &RedisStorage{
		client:    client,
		namespace: namespace,
		timeout:   DefaultRedisConfig().Timeout,
	}
}

func (r *RedisStorage) namespaced(key string) string {
	if r.namespace == "" {
		return key
	}
	return r.namespace + ":" + key
}

// Read returns the value for a key and whether it exists.
func (r *RedisStorage) Read(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	value, err := r.client.Get(ctx, r.namespaced(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis read for %s: %v", key, err)
	}
	return value, true, nil
}

// Write stores a value under a key. Expiry is handled by the cache's own
// freshness window, not a Redis TTL, so the snapshot never vanishes mid-load.
func (r *RedisStorage) Write(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, r.namespaced(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis write for %s: %v", key, err)
	}
	return nil
}

// Delete removes a key.
func (r *RedisStorage) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.client.Del(ctx, r.namespaced(key)).Err(); err != nil {
		return fmt.Errorf("redis delete for %s: %v", key, err)
	}
	return nil
}

// Close releases the Redis connection.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
