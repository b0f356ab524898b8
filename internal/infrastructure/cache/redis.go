package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pharmatrace/trace-engine/internal/domain"
)

const (
	redisKeyPrefix = "pharma:gcp:"

	// negativeMarker is stored for prefixes no registry knows
	negativeMarker = "-"
)

// RedisCache is a PrefixCache shared by every engine instance. Expiry is
// delegated to Redis key TTLs.
type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// NewRedisClient parses url, applies poolSize when positive and pings the server
func NewRedisClient(ctx context.Context, url string, poolSize int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, prefix string) (*domain.CompanyInfo, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+prefix).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if raw == negativeMarker {
		return nil, true, nil
	}

	var info domain.CompanyInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil, false, fmt.Errorf("decode cached company info: %w", err)
	}
	return &info, true, nil
}

func (c *RedisCache) Set(ctx context.Context, prefix string, info *domain.CompanyInfo, ttl time.Duration) error {
	value := negativeMarker
	if info != nil {
		b, err := json.Marshal(info)
		if err != nil {
			return fmt.Errorf("encode company info: %w", err)
		}
		value = string(b)
	}
	return c.client.Set(ctx, redisKeyPrefix+prefix, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, prefix string) error {
	return c.client.Del(ctx, redisKeyPrefix+prefix).Err()
}
