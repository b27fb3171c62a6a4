package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// RedisAssignmentCache keeps resolved variants in Redis. Assignments are
// write-once, so a cached value never goes stale while its experiment lives.
type RedisAssignmentCache struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewRedisAssignmentCache(rdb *goredis.Client, ttl time.Duration) *RedisAssignmentCache {
	return &RedisAssignmentCache{rdb: rdb, ttl: ttl}
}

func assignmentCacheKey(experimentID uuid.UUID, visitorID string) string {
	return fmt.Sprintf("assign:%s:%s", experimentID, visitorID)
}

func (c *RedisAssignmentCache) Get(ctx context.Context, experimentID uuid.UUID, visitorID string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, assignmentCacheKey(experimentID, visitorID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get assignment: %w", err)
	}
	return v, true, nil
}

func (c *RedisAssignmentCache) Set(ctx context.Context, experimentID uuid.UUID, visitorID, variant string) error {
	if err := c.rdb.Set(ctx, assignmentCacheKey(experimentID, visitorID), variant, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set assignment: %w", err)
	}
	return nil
}

// Purge drops every cached assignment of an experiment.
func (c *RedisAssignmentCache) Purge(ctx context.Context, experimentID uuid.UUID) error {
	iter := c.rdb.Scan(ctx, 0, fmt.Sprintf("assign:%s:*", experimentID), 500).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == 500 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis purge assignments: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan assignments: %w", err)
	}
	if len(keys) > 0 {
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis purge assignments: %w", err)
		}
	}
	return nil
}
