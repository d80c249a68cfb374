package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisKV：Redis 实现，键不设过期，由版本号决定是否失效
type RedisKV struct {
	rc *redis.Client
}

func NewRedisKV(rc *redis.Client) *RedisKV { return &RedisKV{rc: rc} }

func (k *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	s, err := k.rc.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

func (k *RedisKV) Set(ctx context.Context, key, value string) error {
	return k.rc.Set(ctx, key, value, 0).Err()
}
