package redis

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/wonny/vnmarket/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on disabled client error = %v", err)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), "test")

	// When Redis is disabled, all requests should be allowed
	allowed, remaining, err := limiter.Allow(context.Background(), VCIRateLimit)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Error("Expected request to be allowed when Redis disabled")
	}
	if remaining != VCIRateLimit.Limit {
		t.Errorf("Expected remaining = %d, got %d", VCIRateLimit.Limit, remaining)
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "test")
	ctx := context.Background()

	// When Redis is disabled, cache operations should be no-ops
	if err := cache.Set(ctx, "key", "value", TTLShort); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var result string
	found, err := cache.Get(ctx, "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected cache miss when Redis disabled")
	}

	n, err := cache.DeletePattern(ctx, "*")
	if err != nil || n != 0 {
		t.Errorf("DeletePattern() = %d, %v; want 0, nil", n, err)
	}
}

// TestCache_Redis runs against a live server when REDIS_HOST is set
func TestCache_Redis(t *testing.T) {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("REDIS_HOST not set, skipping integration test")
	}

	client, err := New(&config.Config{Redis: config.RedisConfig{Host: host, Port: "6379", Enabled: true}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	cache := NewCache(client, "vnmarket-test")
	ctx := context.Background()
	key := HistoryKey("stock", "FPT", "1D", time.Unix(1704067200, 0), time.Unix(1706745599, 0))

	if err := cache.Set(ctx, key, []float64{1, 2, 3}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got []float64
	found, err := cache.Get(ctx, key, &got)
	if err != nil || !found || len(got) != 3 {
		t.Fatalf("Get() = %v, %v, %v", got, found, err)
	}

	n, err := cache.DeletePattern(ctx, HistoryPattern("stock", "FPT", "1D"))
	if err != nil || n != 1 {
		t.Errorf("DeletePattern() = %d, %v; want 1, nil", n, err)
	}
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		fn       func() string
		expected string
	}{
		{
			name:     "HistoryKey",
			fn:       func() string { return HistoryKey("stock", "FPT", "1D", time.Unix(1704067200, 0), time.Unix(1706745599, 0)) },
			expected: "history:stock:FPT:1D:1704067200-1706745599",
		},
		{
			name:     "HistoryPattern",
			fn:       func() string { return HistoryPattern("crypto", "BTC", "1W") },
			expected: "history:crypto:BTC:1W:*",
		},
		{
			name:     "CompanyKey",
			fn:       func() string { return CompanyKey("VCB") },
			expected: "company:VCB",
		},
		{
			name:     "FinancialKey",
			fn:       func() string { return FinancialKey("VCB", "year", "balance") },
			expected: "financial:VCB:year:balance",
		},
		{
			name:     "ListingKey",
			fn:       func() string { return ListingKey("indices") },
			expected: "listing:indices",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
			if strings.Contains(tt.expected, " ") {
				t.Errorf("key %q must not contain spaces", tt.expected)
			}
		})
	}
}
