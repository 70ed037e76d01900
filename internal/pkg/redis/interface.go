package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the subset of Redis the bloom filter needs.
type Cache interface {
	Exists(ctx context.Context, key string) (bool, error)

	ScriptRun(ctx context.Context, script *redis.Script, keys []string,
		args ...any) (any, error)

	Del(ctx context.Context, keys ...string) (int64, error)

	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	Close() error
}
