// Package config loads application configuration from environment variables.
// All variables use the QB_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Identity IdentityConfig
	Analysis AnalysisConfig
	Log      LogConfig
	Catalog  CatalogConfig
	StatsTTL int // seconds a cached statistics snapshot stays valid
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL selects
// the in-memory stores.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings. An empty URL disables caching.
type CacheConfig struct {
	URL string
}

// IdentityConfig holds de-identification settings. Salt has no default:
// ingestion refuses to run without it.
type IdentityConfig struct {
	Salt string
}

// AnalysisConfig holds settings for the external AI/NLP service.
type AnalysisConfig struct {
	URL    string
	APIKey string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// CatalogConfig holds the course catalog seed file location.
type CatalogConfig struct {
	Path string
}

// Load reads configuration from environment variables with QB_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("QB_SERVER_PORT", 8080),
			Host: envStr("QB_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("QB_DATABASE_URL", ""),
			MaxConns: envInt("QB_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("QB_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			URL: envStr("QB_CACHE_URL", ""),
		},
		Identity: IdentityConfig{
			Salt: envStr("QB_PSEUDONYM_SALT", ""),
		},
		Analysis: AnalysisConfig{
			URL:    envStr("QB_ANALYSIS_URL", "http://localhost:8001"),
			APIKey: envStr("QB_ANALYSIS_API_KEY", ""),
		},
		Log: LogConfig{
			Level:  envStr("QB_LOG_LEVEL", "info"),
			Format: envStr("QB_LOG_FORMAT", "json"),
		},
		Catalog: CatalogConfig{
			Path: envStr("QB_CATALOG_PATH", ""),
		},
		StatsTTL: envInt("QB_STATS_TTL", 60),
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Identity.Salt == "" {
		return fmt.Errorf("QB_PSEUDONYM_SALT is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("QB_SERVER_PORT must be in 1-65535, got %d", c.Server.Port)
	}

	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
