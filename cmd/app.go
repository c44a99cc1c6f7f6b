package cmd

import (
	"context"
	"fmt"

	"tunemux/cache"
	"tunemux/config"
	"tunemux/core/aggregator"
	"tunemux/core/library"
	"tunemux/core/provider"
	"tunemux/db"
	"tunemux/logger"
	"tunemux/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// app holds the long-lived components every command builds on.
type app struct {
	db      *gorm.DB
	redis   *redis.Client
	store   *repository.Store
	cache   *cache.ResponseCache
	agg     *aggregator.Aggregator
	library *library.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	gdb, err := db.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{db: gdb, store: repository.New(gdb)}

	switch cfg.CacheBackend {
	case "redis":
		client, err := db.ConnectRedis(ctx, cfg)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		a.cache = cache.New(cache.NewRedisBackend(client))
	default:
		a.cache = cache.NewMemory()
	}

	reg := provider.FromConfig(cfg, a.cache)
	a.agg = aggregator.New(reg,
		aggregator.WithTimeout(cfg.ProviderTimeout),
		aggregator.WithSearchRecorder(a.store))
	a.library = library.New(a.store, a.agg)
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("close redis", logger.ErrorField(err))
		}
	}
	if err := db.Close(a.db); err != nil {
		logger.Warn("close store", logger.ErrorField(err))
	}
}
