package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marqode/hybridrag/history"
)

// RedisStore persists run records in a Redis list.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string        // list key holding the records
	TTL      time.Duration // 0 means no expiration
}

// NewRedisStore creates a Redis-backed history store.
func NewRedisStore(config *RedisConfig) *RedisStore {
	if config == nil {
		config = &RedisConfig{Addr: "localhost:6379"}
	}
	key := config.Key
	if key == "" {
		key = "hybridrag:history"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisStore{
		client: client,
		key:    key,
		ttl:    config.TTL,
	}
}

// Append pushes a record onto the head of the list.
func (s *RedisStore) Append(ctx context.Context, rec *history.Record) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.ID == "" {
		rec.ID = history.NewID()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := s.client.LPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("failed to store record in Redis: %w", err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, s.key, s.ttl).Err(); err != nil {
			return fmt.Errorf("failed to refresh record TTL: %w", err)
		}
	}
	return nil
}

// Recent returns up to n records, newest first.
func (s *RedisStore) Recent(ctx context.Context, n int) ([]*history.Record, error) {
	stop := int64(n - 1)
	if n <= 0 {
		stop = -1
	}

	raw, err := s.client.LRange(ctx, s.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read records from Redis: %w", err)
	}

	records := make([]*history.Record, 0, len(raw))
	for _, item := range raw {
		var rec history.Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue // skip corrupted entries
		}
		records = append(records, &rec)
	}
	return records, nil
}

// Clear removes all records.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
