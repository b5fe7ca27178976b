package cache

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/config"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

// RedisCache is a Cache backed by Redis, for deployments where lookup
// results should survive restarts or be shared across instances.
type RedisCache struct {
	conn *redis.Client
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, cfg *config.CacheConfig) (*RedisCache, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := conn.Ping(ctx).Err(); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConnection, "failed to connect to redis", err.Error())
	}

	return &RedisCache{conn: conn}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.conn.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, utils.NewAppError(utils.ErrCodeConnection, "redis get failed", err.Error())
	}

	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.conn.Set(ctx, key, value, ttl).Err(); err != nil {
		return utils.NewAppError(utils.ErrCodeConnection, "redis set failed", err.Error())
	}

	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.conn.Del(ctx, key).Err(); err != nil {
		return utils.NewAppError(utils.ErrCodeConnection, "redis delete failed", err.Error())
	}

	return nil
}

func (c *RedisCache) Close() error {
	return c.conn.Close()
}
