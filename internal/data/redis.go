package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	redis "github.com/redis/go-redis/v9"

	"videomoderation/internal/conf"
	pkgredis "videomoderation/internal/pkg/redis"
)

// NewRedisCache creates a new Redis cache from configuration. It returns nil when Redis is
// disabled.
func NewRedisCache(c *conf.Data, logger log.Logger) (pkgredis.Cache, func(), error) {
	helper := log.NewHelper(logger)
	rc := c.Redis
	if rc == nil || !rc.Enabled {
		helper.Info("redis disabled, bloom filter off")
		return nil, func() {}, nil
	}

	opts := &redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	}
	if rc.ReadTimeout > 0 {
		opts.ReadTimeout = rc.ReadTimeout.AsDuration()
	}
	if rc.WriteTimeout > 0 {
		opts.WriteTimeout = rc.WriteTimeout.AsDuration()
	}

	cache := pkgredis.NewWithClient(redis.NewClient(opts))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err != nil {
		cache.Close()
		helper.Errorf("failed to connect to Redis at %s: %v", rc.Addr, err)
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	helper.Infof("connected to Redis at %s", rc.Addr)
	cleanup := func() {
		helper.Info("closing Redis connection")
		cache.Close()
	}
	return cache, cleanup, nil
}
