// Package config provides configuration for the orchestrator.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the orchestrator configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Facilitator backend
	FacilitatorURL    string
	FacilitatorAPIKey string

	// Timeouts and intervals
	StreamTimeout time.Duration
	SyncInterval  time.Duration

	// Consecutive stream failures before a session degrades to offline mode.
	MaxStreamFailures int

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:          getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:       getEnv("DATABASE_URL", "file:orchestrator.db?cache=shared&mode=rwc"),
		FacilitatorURL:    getEnv("FACILITATOR_URL", "http://localhost:8100"),
		FacilitatorAPIKey: getEnv("FACILITATOR_API_KEY", ""),
		StreamTimeout:     time.Duration(getEnvInt("STREAM_TIMEOUT_MS", 300000)) * time.Millisecond,
		SyncInterval:      time.Duration(getEnvInt("SYNC_INTERVAL_MS", 30000)) * time.Millisecond,
		MaxStreamFailures: getEnvInt("MAX_STREAM_FAILURES", 2),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
