// Package config provides configuration management for the track enricher.
// It loads configuration from environment variables with sensible defaults
// and validates the configuration before the service starts.
//
// Environment Variables:
//
// Application settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path (default: stdout)
//
// Cache store:
//   - CACHE_BACKEND: "redis", "sqlite" or "none" (default: redis)
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//   - CACHE_DB_PATH: SQLite store path for the embedded backend (default: ./enricher_cache.db)
//
// Catalog upstream:
//   - CATALOG_BASE_URL: Catalog API base URL (required)
//   - CATALOG_TOKEN_URL: OAuth token endpoint (required)
//   - CATALOG_CLIENT_ID / CATALOG_CLIENT_SECRET: client credentials (required)
//   - CATALOG_TIMEOUT: outbound request timeout (default: 10s)
//
// Enrichment tuning:
//   - ENRICH_GROUP_SIZE: concurrent operations per wave (default: 5)
//   - ENRICH_PACE_DELAY: delay between waves (default: 200ms)
//   - ENRICH_CANDIDATE_CAP: max candidates per request (default: 30)
//   - ENRICH_SEARCH_CAP: max network searches per request (default: 20)
//   - ENRICH_COOLDOWN_WINDOW: cooldown after a throttling signal (default: 30s)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the track enricher.
type Config struct {
	// Application settings
	Port     string
	LogLevel string

	// Cache store configuration
	CacheBackend  string
	RedisAddress  string
	RedisPassword string
	RedisDB       string
	RedisPoolSize string
	CacheDBPath   string

	// Catalog upstream configuration
	CatalogBaseURL      string
	CatalogTokenURL     string
	CatalogClientID     string
	CatalogClientSecret string
	CatalogTimeout      time.Duration

	// Enrichment tuning
	GroupSize      int
	PaceDelay      time.Duration
	CandidateCap   int
	SearchCap      int
	CooldownWindow time.Duration
}

// Load creates a new Config instance with values from environment variables.
// Call Validate() on the result before use.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CacheBackend:  getEnv("CACHE_BACKEND", "redis"),
		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),
		CacheDBPath:   getEnv("CACHE_DB_PATH", "./enricher_cache.db"),

		CatalogBaseURL:      getEnv("CATALOG_BASE_URL", "https://api.spotify.com"),
		CatalogTokenURL:     getEnv("CATALOG_TOKEN_URL", "https://accounts.spotify.com/api/token"),
		CatalogClientID:     getEnv("CATALOG_CLIENT_ID", ""),
		CatalogClientSecret: getEnv("CATALOG_CLIENT_SECRET", ""),
		CatalogTimeout:      getDurationEnv("CATALOG_TIMEOUT", 10*time.Second),

		GroupSize:      getIntEnv("ENRICH_GROUP_SIZE", 5),
		PaceDelay:      getDurationEnv("ENRICH_PACE_DELAY", 200*time.Millisecond),
		CandidateCap:   getIntEnv("ENRICH_CANDIDATE_CAP", 30),
		SearchCap:      getIntEnv("ENRICH_SEARCH_CAP", 20),
		CooldownWindow: getDurationEnv("ENRICH_COOLDOWN_WINDOW", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks that all required fields are present and all values are
// valid. The application should call this after Load and before starting.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch c.CacheBackend {
	case "redis", "sqlite", "none":
	default:
		return fmt.Errorf("CACHE_BACKEND must be 'redis', 'sqlite' or 'none'")
	}

	if c.CacheBackend == "redis" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if c.CacheBackend == "sqlite" && c.CacheDBPath == "" {
		return fmt.Errorf("CACHE_DB_PATH is required when using the sqlite backend")
	}

	if c.CatalogBaseURL == "" {
		return fmt.Errorf("CATALOG_BASE_URL is required")
	}
	if c.CatalogClientID == "" || c.CatalogClientSecret == "" {
		return fmt.Errorf("CATALOG_CLIENT_ID and CATALOG_CLIENT_SECRET are required")
	}
	if c.CatalogTimeout <= 0 {
		return fmt.Errorf("CATALOG_TIMEOUT must be positive")
	}

	if c.GroupSize < 1 {
		return fmt.Errorf("ENRICH_GROUP_SIZE must be a positive number")
	}
	if c.PaceDelay < 0 {
		return fmt.Errorf("ENRICH_PACE_DELAY must not be negative")
	}
	if c.CandidateCap < 1 {
		return fmt.Errorf("ENRICH_CANDIDATE_CAP must be a positive number")
	}
	if c.SearchCap < 1 {
		return fmt.Errorf("ENRICH_SEARCH_CAP must be a positive number")
	}
	if c.SearchCap > c.CandidateCap {
		return fmt.Errorf("ENRICH_SEARCH_CAP must not exceed ENRICH_CANDIDATE_CAP")
	}
	if c.CooldownWindow <= 0 {
		return fmt.Errorf("ENRICH_COOLDOWN_WINDOW must be positive")
	}

	return nil
}
