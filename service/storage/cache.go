package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Cache is the shared TTL cache surface the presence and message-cache
// services depend on. Implemented by RedisCache in production and by
// in-memory fakes in tests.
type Cache interface {
	// GetJSON reads key into dest. The bool reports a hit; a miss is not
	// an error.
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error

	// ZAddMember upserts member with the given score into the sorted set.
	ZAddMember(ctx context.Context, key, member string, score float64) error
	// ZTrimKeepHighest removes everything but the n highest-scored members.
	ZTrimKeepHighest(ctx context.Context, key string, n int64) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// RedisCache implements Cache on the shared go-redis client.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "cache get")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, errors.Wrap(err, "cache unmarshal")
	}
	return true, nil
}

func (c *RedisCache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "cache marshal")
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return errors.Wrap(err, "cache set")
	}
	return nil
}

func (c *RedisCache) ZAddMember(ctx context.Context, key, member string, score float64) error {
	err := c.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
	return errors.Wrap(err, "cache zadd")
}

func (c *RedisCache) ZTrimKeepHighest(ctx context.Context, key string, n int64) error {
	// keep ranks [-n, -1], drop the rest
	err := c.client.ZRemRangeByRank(ctx, key, 0, -(n + 1)).Err()
	return errors.Wrap(err, "cache ztrim")
}

func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	err := c.client.Expire(ctx, key, ttl).Err()
	return errors.Wrap(err, "cache expire")
}
