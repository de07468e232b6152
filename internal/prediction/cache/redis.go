package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/retainly/retainly/internal/config"
	"go.uber.org/zap"
)

// Redis backs the prediction cache with a shared redis instance, letting
// multiple serving replicas reuse each other's results. Redis failures
// degrade to cache misses.
type Redis struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedis(cfg config.Config, log *zap.Logger) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}),
		log: log.Named("cache.redis"),
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("redis get", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return value, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.log.Warn("redis set", zap.String("key", key), zap.Error(err))
	}
}

// Close releases the redis connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
