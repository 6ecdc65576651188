package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional, history store only)
	Database DatabaseConfig

	// Redis (optional, response cache and rate limit)
	Redis RedisConfig

	// Providers
	VCI  VCIConfig
	MSN  MSNConfig
	HTTP HTTPConfig

	// In-process cache
	MemoryCache MemoryCacheConfig

	// History refresh
	Refresh RefreshConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database URL was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// VCIConfig holds Vietcap (VCI) data API configuration
type VCIConfig struct {
	BaseURL      string
	GraphQLURL   string
	IndexSymbols []string
}

// MSNConfig holds MSN Money chart API configuration
type MSNConfig struct {
	BaseURL string
	APIKey  string
}

// HTTPConfig holds outbound HTTP client settings
type HTTPConfig struct {
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64 // requests per second, 0 disables
}

// MemoryCacheConfig holds in-process cache settings
type MemoryCacheConfig struct {
	Enabled bool
	MaxCost int64
}

// RefreshConfig holds history refresh scheduler settings
type RefreshConfig struct {
	Enabled   bool
	Watchlist []string
	Timezone  string

	// Intraday candles older than this are pruned
	IntradayRetention time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile("")

	return fromEnv()
}

// LoadFrom reads configuration using an explicit .env path first
func LoadFrom(envFile string) (*Config, error) {
	loadEnvFile(envFile)

	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		// Server
		Port: getEnv("PORT", "3003"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// Providers
		VCI: VCIConfig{
			BaseURL:      getEnv("VCI_BASE_URL", "https://trading.vietcap.com.vn/api/"),
			GraphQLURL:   getEnv("VCI_GRAPHQL_URL", "https://trading.vietcap.com.vn/data-mt/graphql"),
			IndexSymbols: getEnvAsList("VCI_INDEX_SYMBOLS", "VNINDEX,VN30,HNXIndex,HNX30,HNXUpcomIndex"),
		},

		MSN: MSNConfig{
			BaseURL: getEnv("MSN_BASE_URL", "https://assets.msn.com/service/Finance/"),
			APIKey:  getEnv("MSN_API_KEY", "0QfOX3Vn51YCzitbLaRkTTBadtWpgTN8NZLW0C1SEM"),
		},

		HTTP: HTTPConfig{
			Timeout:    getEnvAsDuration("HTTP_TIMEOUT", "30s"),
			MaxRetries: getEnvAsInt("HTTP_MAX_RETRIES", 3),
			RateLimit:  getEnvAsFloat("HTTP_RATE_LIMIT", 10),
		},

		MemoryCache: MemoryCacheConfig{
			Enabled: getEnvAsBool("MEMORY_CACHE_ENABLED", false),
			MaxCost: int64(getEnvAsInt("MEMORY_CACHE_MAX_ITEMS", 10000)),
		},

		Refresh: RefreshConfig{
			Enabled:   getEnvAsBool("REFRESH_ENABLED", false),
			Watchlist: getEnvAsList("REFRESH_WATCHLIST", ""),
			Timezone:  getEnv("REFRESH_TIMEZONE", "Asia/Ho_Chi_Minh"),

			IntradayRetention: getEnvAsDuration("REFRESH_INTRADAY_RETENTION", "2160h"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are consistent
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.LogFormat != "json" && c.LogFormat != "console" && c.LogFormat != "pretty" {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console, pretty")
	}

	if c.VCI.BaseURL == "" || c.MSN.BaseURL == "" {
		return fmt.Errorf("provider base URLs must not be empty")
	}

	if c.Refresh.Enabled && !c.Database.Enabled() {
		return fmt.Errorf("DATABASE_URL is required when REFRESH_ENABLED is set")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile(explicit string) {
	if explicit != "" {
		_ = godotenv.Load(explicit)
		return
	}

	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	if raw == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
