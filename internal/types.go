package internal

import (
	"context"

	"scholarsift/scholarworker/config"
	"scholarsift/scholarworker/logger"
	apperrors "scholarsift/scholarworker/pkg/errors"
	"scholarsift/scholarworker/services/cache"
	"scholarsift/scholarworker/services/publisher"
)

// Dependencies holds all service dependencies
type Dependencies struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// NewDependencies connects the cache and the configured publisher.
// An unreachable memcached is tolerated since cache errors count as misses.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{}

	memcache := cache.NewMemcacheService(cfg.MemcacheAddr)
	if err := memcache.Ping(); err != nil {
		logger.ForCache().Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unreachable, continuing without shared cache")
	} else {
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	}
	deps.Cache = memcache

	switch cfg.Publisher {
	case "file":
		filePublisher, err := publisher.NewFilePublisher(cfg.OutputPath)
		if err != nil {
			return nil, err
		}
		deps.Publisher = filePublisher
		logger.Info("Writing records to %s", cfg.OutputPath)

	case "redis":
		redisPublisher := publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(); err != nil {
			redisPublisher.Close()
			return nil, apperrors.NewPublisher(cfg.RedisAddr, "redis unreachable", err)
		}
		deps.Publisher = redisPublisher
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)

	default:
		return nil, apperrors.NewConfiguration("unknown publisher "+cfg.Publisher, nil)
	}

	return deps, nil
}

// Cleanup releases the publisher connection
func (d *Dependencies) Cleanup() {
	if d.Publisher != nil {
		if err := d.Publisher.Close(); err != nil {
			logger.LogError("publisher", err, "failed to close publisher")
		}
	}
}
