// Package config collects all application configuration. Every value comes from
// the environment with a sane local-dev default, one struct per concern.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root application configuration.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Store    StoreConfig
	Queue    QueueConfig
	Auth     AuthConfig
	Gateway  GatewayConfig
}

// AppConfig holds core process settings.
type AppConfig struct {
	Port     string
	Env      string
	LogLevel string
	CORS     string
}

// Load reads the full configuration from the environment.
func Load() *Config {
	return &Config{
		App: AppConfig{
			Port:     getEnv("PORT", "3000"),
			Env:      getEnv("APP_ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
			CORS:     getEnv("CORS_ORIGINS", "*"),
		},
		Database: loadDatabaseConfig(),
		Store:    loadStoreConfig(),
		Queue:    loadQueueConfig(),
		Auth:     loadAuthConfig(),
		Gateway:  loadGatewayConfig(),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
