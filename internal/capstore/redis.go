package capstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/muurk/ledble/internal/advertise"
	"github.com/muurk/ledble/internal/capability"
)

const redisKeyPrefix = "ledble:caps:"

// RedisStore caches resolved capabilities in Redis, shared across gateways.
// Entries are JSON blobs keyed by device MAC.
type RedisStore struct {
	client *redis.Client
}

var _ capability.Store = (*RedisStore)(nil)

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Load returns the cached capabilities for a device.
func (s *RedisStore) Load(ctx context.Context, mac advertise.MAC) (*capability.Capabilities, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+mac.String()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", capability.ErrNotCached, mac)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load capabilities for %s: %w", mac, err)
	}

	var caps capability.Capabilities
	if err := json.Unmarshal([]byte(raw), &caps); err != nil {
		return nil, fmt.Errorf("corrupt capability entry for %s: %w", mac, err)
	}
	return &caps, nil
}

// Save writes the capabilities for a device, replacing any prior entry.
// A publish on the same key lets other gateways invalidate local copies.
func (s *RedisStore) Save(ctx context.Context, mac advertise.MAC, caps *capability.Capabilities) error {
	raw, err := json.Marshal(caps)
	if err != nil {
		return fmt.Errorf("failed to encode capabilities for %s: %w", mac, err)
	}

	key := redisKeyPrefix + mac.String()
	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, raw, 0)
	pipe.Publish(ctx, key, raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save capabilities for %s: %w", mac, err)
	}
	return nil
}
