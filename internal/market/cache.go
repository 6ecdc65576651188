package market

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/pkg/config"
	"github.com/wonny/vnmarket/pkg/logger"
	"github.com/wonny/vnmarket/pkg/redis"
)

// Cache is a read-through cache layered in-process (ristretto) then Redis.
// Values are stored as JSON in both layers. A nil *Cache is valid and caches nothing.
type Cache struct {
	memory *ristretto.Cache
	remote *redis.Cache
	logger *logger.Logger
}

// NewCache creates the layered cache. remote may be nil.
func NewCache(cfg config.MemoryCacheConfig, remote *redis.Cache, log *logger.Logger) (*Cache, error) {
	c := &Cache{remote: remote, logger: log}

	if cfg.Enabled {
		maxCost := cfg.MaxCost
		if maxCost <= 0 {
			maxCost = 10000
		}
		mem, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e5,
			MaxCost:     maxCost,
			BufferItems: 64,
		})
		if err != nil {
			return nil, err
		}
		c.memory = mem
	}

	return c, nil
}

// Get loads key into dest, reporting whether a layer had it
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil {
		return false
	}

	if c.memory != nil {
		if v, ok := c.memory.Get(key); ok {
			if data, ok := v.([]byte); ok && json.Unmarshal(data, dest) == nil {
				return true
			}
		}
	}

	if c.remote == nil {
		return false
	}

	found, err := c.remote.Get(ctx, key, dest)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		return false
	}
	if found && c.memory != nil {
		if data, err := json.Marshal(dest); err == nil {
			c.memory.SetWithTTL(key, data, 1, time.Minute)
		}
	}
	return found
}

// Set stores value in every layer
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if c == nil {
		return
	}

	if c.memory != nil {
		if data, err := json.Marshal(value); err == nil {
			c.memory.SetWithTTL(key, data, 1, ttl)
		}
	}

	if c.remote != nil {
		if err := c.remote.Set(ctx, key, value, ttl); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
		}
	}
}

// InvalidateHistory drops cached ranges for one symbol and interval.
// The in-process layer cannot match patterns and is cleared entirely.
func (c *Cache) InvalidateHistory(ctx context.Context, market, symbol, interval string) {
	if c == nil {
		return
	}

	if c.memory != nil {
		c.memory.Clear()
	}

	if c.remote != nil {
		n, err := c.remote.DeletePattern(ctx, redis.HistoryPattern(market, symbol, interval))
		if err != nil {
			c.logger.WithError(err).WithField("symbol", symbol).Warn("Cache invalidation failed")
			return
		}
		c.logger.WithFields(map[string]interface{}{
			"symbol":   symbol,
			"interval": interval,
			"keys":     n,
		}).Debug("Invalidated cached history")
	}
}

// wait blocks until buffered in-process writes are applied
func (c *Cache) wait() {
	if c != nil && c.memory != nil {
		c.memory.Wait()
	}
}

// Close releases the in-process layer
func (c *Cache) Close() {
	if c != nil && c.memory != nil {
		c.memory.Close()
	}
}

// historyTTL is the cache lifetime of a candle range at interval
func historyTTL(interval contracts.Interval) time.Duration {
	switch interval {
	case contracts.Interval1m, contracts.Interval5m, contracts.Interval15m, contracts.Interval30m:
		return redis.TTLMinute
	case contracts.Interval1H, contracts.Interval4H:
		return redis.TTLShort
	case contracts.Interval1W:
		return redis.TTLDaily
	case contracts.Interval1M:
		return redis.TTLWeekly
	default:
		return redis.TTLLong
	}
}
