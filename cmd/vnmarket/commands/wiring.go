package commands

import (
	"fmt"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/internal/external/msn"
	"github.com/wonny/vnmarket/internal/external/vci"
	"github.com/wonny/vnmarket/internal/market"
	"github.com/wonny/vnmarket/pkg/config"
	"github.com/wonny/vnmarket/pkg/httputil"
	"github.com/wonny/vnmarket/pkg/logger"
	"github.com/wonny/vnmarket/pkg/redis"
)

// newMarketData is the default DataFactory
func newMarketData(cfg *config.Config, log *logger.Logger) (contracts.MarketData, func(), error) {
	svc, closeFn, err := buildService(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return svc, closeFn, nil
}

// buildService wires providers, rate limiters and the cache into a market.Service
// ⭐ SSOT: 데이터 레이어 조립은 여기서만
func buildService(cfg *config.Config, log *logger.Logger) (*market.Service, func(), error) {
	// 1. Redis (optional): a failed connection degrades to no shared cache
	rdb, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without shared cache")
		rdb = redis.Disabled()
	}

	// 2. HTTP clients, one per provider so headers and limits stay separate
	vciHTTP := httputil.New(cfg, log)
	msnHTTP := httputil.New(cfg, log)
	if rdb.Enabled() {
		limiter := redis.NewRateLimiter(rdb, "vnmarket")
		vciHTTP.WithRateLimiter(limiter, redis.VCIRateLimit)
		msnHTTP.WithRateLimiter(limiter, redis.MSNRateLimit)
	}

	// 3. Provider clients
	vciClient := vci.NewClient(vciHTTP, cfg.VCI, log)
	msnClient := msn.NewClient(msnHTTP, cfg.MSN, log)

	// 4. Cache
	cache, err := market.NewCache(cfg.MemoryCache, redis.NewCache(rdb, "vnmarket"), log)
	if err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("create cache: %w", err)
	}

	svc := market.NewService(vciClient, msnClient, cache, log)

	closeFn := func() {
		cache.Close()
		if err := rdb.Close(); err != nil {
			log.WithError(err).Warn("Failed to close redis")
		}
	}
	return svc, closeFn, nil
}
