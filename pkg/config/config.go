// Package config loads the process configuration from environment
// variables into an explicit value object constructed once at startup.
// Core logic never reads ambient process state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig

	// DataDir is the root for the temp-upload scratch directory and
	// the permanent content-addressed store.
	DataDir string

	// Dev relaxes cookie attributes and exposes internal error details.
	Dev bool

	// Hostname is the public hostname used for the auth cookie domain
	// outside development mode.
	Hostname string

	// YouTubeAPIKey is used by the videos entity to resolve titles.
	YouTubeAPIKey string

	// LogLevel is the minimum severity emitted by the server logger.
	LogLevel string

	// MetricsEnabled controls the /metrics endpoint.
	MetricsEnabled bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects the storage driver and its DSN.
type DatabaseConfig struct {
	// Driver is "sqlite3" or "postgres".
	Driver string
	DSN    string
}

// RedisConfig holds the optional shared file-record cache settings.
type RedisConfig struct {
	URL string
	TTL time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("PARISH_HOST", "0.0.0.0"),
			Port:            getEnv("PARISH_PORT", "8000"),
			ReadTimeout:     getEnvDuration("PARISH_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("PARISH_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvDuration("PARISH_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("PARISH_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver: getEnv("PARISH_DB_DRIVER", "sqlite3"),
			DSN:    getEnv("PARISH_DB_DSN", "parish.db"),
		},
		Redis: RedisConfig{
			URL: getEnv("PARISH_REDIS_URL", ""),
			TTL: getEnvDuration("PARISH_REDIS_TTL", 15*time.Minute),
		},
		DataDir:        getEnv("PARISH_DATA_DIR", "data"),
		Dev:            getEnv("PARISH_ENV", "production") == "development",
		Hostname:       getEnv("PARISH_HOSTNAME", ""),
		YouTubeAPIKey:  getEnv("PARISH_YOUTUBE_API_KEY", ""),
		LogLevel:       getEnv("PARISH_LOG_LEVEL", "info"),
		MetricsEnabled: getEnvBool("PARISH_METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory must not be empty")
	}
	if !c.Dev && c.Hostname == "" {
		return fmt.Errorf("PARISH_HOSTNAME is required outside development mode")
	}
	return nil
}

// getEnv returns the environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
