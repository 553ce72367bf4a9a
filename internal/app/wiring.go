package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/profitboard/internal/analytics"
)

// CacheKeyPrefix namespaces result cache entries in Redis.
const CacheKeyPrefix = "profitboard:cache:"

// ResultCache bundles the analytics cache with its in-process store, which is
// nil when entries live in Redis.
type ResultCache struct {
	Cache  *analytics.Cache
	Memory *analytics.MemoryStore
}

// NewResultCache builds the analytics cache for CACHE_BACKEND. The redis backend
// requires a client.
func NewResultCache(cfg *Config, client *redis.Client, reg prometheus.Registerer, logger *slog.Logger) (ResultCache, error) {
	metrics, err := analytics.NewCacheMetrics(reg)
	if err != nil {
		return ResultCache{}, err
	}
	switch cfg.CacheBackend {
	case "redis":
		if client == nil {
			return ResultCache{}, errors.New("app: redis cache backend needs a redis client")
		}
		store := analytics.NewRedisStore(client, CacheKeyPrefix)
		cache := analytics.NewCache(store, cfg.CacheTTL, metrics, logger).WithLoadTimeout(sharedLoadTimeout(cfg))
		return ResultCache{Cache: cache}, nil
	default:
		store := analytics.NewMemoryStore()
		cache := analytics.NewCache(store, cfg.CacheTTL, metrics, logger).WithLoadTimeout(sharedLoadTimeout(cfg))
		return ResultCache{Cache: cache, Memory: store}, nil
	}
}

// sharedLoadTimeout covers the longest load, the detail count plus its page.
func sharedLoadTimeout(cfg *Config) time.Duration {
	return 2 * cfg.DBStatementTimeout
}

// Shared reports whether entries are visible to other processes, which is what
// lets the worker's warm-up reach the web process.
func (rc ResultCache) Shared() bool {
	return rc.Cache != nil && rc.Memory == nil
}

// SweepLoop drops expired in-process entries every interval until ctx ends.
func (rc ResultCache) SweepLoop(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if rc.Memory == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := rc.Memory.Sweep(); removed > 0 && logger != nil {
				logger.Debug("swept result cache", slog.Int("removed", removed))
			}
		}
	}
}
