// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for the SQLite databases (always absolute)
	Port             int
	LogLevel         string
	DevMode          bool
	CacheRedisURL    string // Redis connection URL for the data caches
	DataServiceURL   string // Downstream data service (prices, breadth, metrics)
	TickerServiceURL string // Thin ticker-list fetcher (exchange listings)

	FinnhubAPIKey    string
	FinnhubRateLimit int // Max outbound calls per sliding 60s window

	ProxyRefreshSeconds int      // Interval for the outbound proxy pool refresher
	ProxyList           []string // Optional static proxy list (comma separated in env)
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		Port:                getEnvAsInt("PORT", 8000),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		CacheRedisURL:       getEnv("CACHE_REDIS_URL", "redis://localhost:6379/0"),
		DataServiceURL:      getEnv("DATA_SERVICE_URL", "http://localhost:8002"),
		TickerServiceURL:    getEnv("TICKER_SERVICE_URL", "http://localhost:8003"),
		FinnhubAPIKey:       getEnv("FINNHUB_API_KEY", ""),
		FinnhubRateLimit:    getEnvAsInt("FINNHUB_RATE_LIMIT", 59),
		ProxyRefreshSeconds: getEnvAsInt("YF_PROXY_REFRESH_SECONDS", 3600),
		ProxyList:           getEnvAsList("PROXY_LIST"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.FinnhubRateLimit <= 0 {
		return fmt.Errorf("FINNHUB_RATE_LIMIT must be positive, got %d", c.FinnhubRateLimit)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
