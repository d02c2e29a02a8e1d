// Package cache wraps the shared Redis instance used for cross-process job
// state. The cache is advisory: every key carries a TTL and may be cleared
// at any time without data loss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"

	"github.com/koelfx/koel/internal/common"
)

// ErrCacheMiss is returned when a key does not exist.
var ErrCacheMiss = errors.New("cache: key not found")

// Service provides JSON get/set, atomic counters, and pattern deletion over
// a shared Redis instance.
type Service struct {
	rdb    *redis.Client
	logger arbor.ILogger
}

// NewService connects to Redis and verifies the connection.
func NewService(ctx context.Context, cfg common.RedisConfig, logger arbor.ILogger) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Connected to Redis")
	return &Service{rdb: rdb, logger: logger}, nil
}

// NewServiceWithClient wraps an existing client. Used by tests.
func NewServiceWithClient(rdb *redis.Client, logger arbor.ILogger) *Service {
	return &Service{rdb: rdb, logger: logger}
}

// GetJSON reads a key and unmarshals it into dest. Returns ErrCacheMiss
// when the key does not exist.
func (s *Service) GetJSON(ctx context.Context, key string, dest interface{}) error {
	value, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), dest); err != nil {
		return fmt.Errorf("failed to decode cached value for %s: %w", key, err)
	}
	return nil
}

// SetJSON marshals value and stores it under key with the given TTL.
func (s *Service) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Incr atomically increments the integer at key and returns the new value.
// Missing keys start at zero, so the first increment returns 1.
func (s *Service) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment key %s: %w", key, err)
	}
	return n, nil
}

// Expire sets a TTL on an existing key.
func (s *Service) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("failed to expire key %s: %w", key, err)
	}
	return nil
}

// Delete removes the given keys.
func (s *Service) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// DeletePattern removes every key matching the glob pattern using SCAN, so
// large keyspaces are swept without blocking the server.
func (s *Service) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var deleted int
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to scan pattern %s: %w", pattern, err)
	}

	s.logger.Debug().Str("pattern", pattern).Int("deleted", deleted).Msg("Deleted cache keys")
	return deleted, nil
}

// Close releases the underlying connection pool.
func (s *Service) Close() error {
	return s.rdb.Close()
}
