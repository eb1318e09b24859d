package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/bookvision/bookvision/core"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the minimal Redis surface the store needs. Satisfied by
// *redis.Client and *redis.ClusterClient.
type RedisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisStore implements Store on a Redis backend so cached results are
// shared across processes. Values are stored as JSON.
type RedisStore struct {
	client RedisClient
	logger *slog.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client RedisClient) *RedisStore {
	return &RedisStore{
		client: client,
		logger: slog.Default().With("component", "redis-cache"),
	}
}

// NewRedisStoreURL connects to Redis using a redis:// URL and verifies the
// connection with a ping.
func NewRedisStoreURL(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewRedisStore(client), nil
}

// Get returns cached results, treating redis.Nil and undecodable values
// as misses.
func (s *RedisStore) Get(ctx context.Context, key string) ([]*core.SearchResult, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var results []*core.SearchResult
	if err := json.Unmarshal([]byte(val), &results); err != nil {
		s.logger.Debug("discarding undecodable cache entry", "key", key, "error", err)
		return nil, false, nil
	}
	return results, true, nil
}

// Put stores results as JSON with the given TTL.
func (s *RedisStore) Put(ctx context.Context, key string, results []*core.SearchResult, ttl time.Duration) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, payload, ttl).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
