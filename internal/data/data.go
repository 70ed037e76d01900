package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/jackc/pgx/v5/pgxpool"

	"videomoderation/internal/conf"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewRedisCache,
	NewFrameCacheRepo,
	NewDetector,
	NewBloomFilter,
	NewFrameModerator,
	NewOpener,
	NewSampler,
	NewVideoModerator,
	NewDatasetBuilder,
)

// Data holds the Postgres pool. Pool is nil when the database is disabled.
type Data struct {
	Pool *pgxpool.Pool
}

// NewData connects to Postgres and runs migrations when configured.
func NewData(c *conf.Data, logger log.Logger) (*Data, func(), error) {
	helper := log.NewHelper(logger)
	db := c.Database
	if db == nil || !db.Enabled {
		helper.Info("database disabled, frame cache runs without persistence")
		return &Data{}, func() {}, nil
	}

	ctx := context.Background()
	pgxConfig, err := newPgxPoolConfig(c)
	if err != nil {
		return nil, nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pgxConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	if db.Migrate {
		sqlDB, err := sql.Open(db.Driver, db.Source)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		err = RunMigrate(sqlDB)
		sqlDB.Close()
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	cleanup := func() {
		helper.Info("closing db connections")
		pool.Close()
	}
	return &Data{Pool: pool}, cleanup, nil
}

// newPgxPoolConfig creates a pgxpool.Config from conf.Data
func newPgxPoolConfig(c *conf.Data) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(c.Database.Source)
	if err != nil {
		return nil, err
	}
	pool := c.Database.Pool
	if pool == nil {
		return cfg, nil
	}
	if pool.MaxOpenConns > 0 {
		cfg.MaxConns = pool.MaxOpenConns
	}
	if pool.MinIdleConns > 0 {
		cfg.MinConns = pool.MinIdleConns
	}
	if pool.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pool.MaxConnLifetime.AsDuration()
	}
	if pool.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pool.MaxConnIdleTime.AsDuration()
	}
	return cfg, nil
}
