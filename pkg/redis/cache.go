package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides typed caching utilities
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Get retrieves a cached value
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	data, err := c.client.Redis().Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// Key not found is not an error
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Set(ctx, fullKey, data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Del(ctx, fullKey).Err()
}

// DeletePattern removes every cached key matching pattern (glob, without prefix)
func (c *Cache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if !c.client.Enabled() {
		return 0, nil
	}

	rdb := c.client.Redis()
	iter := rdb.Scan(ctx, 0, fmt.Sprintf("%s:cache:%s", c.prefix, pattern), 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("cache scan failed: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("cache delete failed: %w", err)
	}
	return len(keys), nil
}

// Predefined TTLs
const (
	TTLMinute = 1 * time.Minute    // 분봉
	TTLShort  = 5 * time.Minute    // 시간봉
	TTLMedium = 10 * time.Minute   // 종목 목록
	TTLLong   = 1 * time.Hour      // 일봉, 기업 정보
	TTLDaily  = 24 * time.Hour     // 주봉
	TTLWeekly = 7 * 24 * time.Hour // 월봉
)

// Common cache key generators
// HistoryKey keys a candle range by its exact bounds in Unix seconds
func HistoryKey(market, symbol, interval string, start, end time.Time) string {
	return fmt.Sprintf("history:%s:%s:%s:%d-%d", market, symbol, interval, start.Unix(), end.Unix())
}

// HistoryPattern matches every cached history range for a symbol and interval
func HistoryPattern(market, symbol, interval string) string {
	return fmt.Sprintf("history:%s:%s:%s:*", market, symbol, interval)
}

func CompanyKey(symbol string) string {
	return fmt.Sprintf("company:%s", symbol)
}

func FinancialKey(symbol, period, statement string) string {
	return fmt.Sprintf("financial:%s:%s:%s", symbol, period, statement)
}

func ListingKey(kind string) string {
	return fmt.Sprintf("listing:%s", kind)
}
