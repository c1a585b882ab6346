package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// maxHistoryLimit is the most samples a history read may return.
const maxHistoryLimit = 100

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

type Config struct {
	DatabaseURL string
	Port        string
	Environment string

	// Shared secret the cron trigger and admin routes compare the bearer token against
	CronSecret string

	// Steam market
	SteamBaseURL   string
	SteamCurrency  int
	SteamUserAgent string
	SteamTimeout   time.Duration

	// Batch updater / scheduler
	UpdateInterval      time.Duration
	UpdateItemInterval  time.Duration
	SchedulerEnabled    bool
	SchedulerRunOnStart bool
	HistoryLimit        int

	// Logging
	LogLevel     string
	LogFile      string
	LogMaxSizeMB int

	// OpenTelemetry metrics
	OTelEnabled  bool
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() *Config {
	// Local development falls back to a SQLite file next to the binary
	defaultDSN := "sqlite://steam_price_tracker.db"

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", defaultDSN),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		CronSecret:  getEnv("CRON_SECRET", ""),

		SteamBaseURL:   strings.TrimRight(getEnv("STEAM_BASE_URL", "https://steamcommunity.com"), "/"),
		SteamCurrency:  getEnvInt("STEAM_CURRENCY", 20),
		SteamUserAgent: getEnv("STEAM_USER_AGENT", defaultUserAgent),
		SteamTimeout:   getEnvDuration("STEAM_TIMEOUT", 30*time.Second),

		UpdateInterval:      getEnvDuration("UPDATE_INTERVAL", time.Hour),
		UpdateItemInterval:  getEnvDuration("UPDATE_ITEM_INTERVAL", time.Second),
		SchedulerEnabled:    getEnvBool("SCHEDULER_ENABLED", false),
		SchedulerRunOnStart: getEnvBool("SCHEDULER_RUN_ON_START", true),
		HistoryLimit:        getEnvInt("HISTORY_LIMIT", 100),

		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFile:      getEnv("LOG_FILE", ""),
		LogMaxSizeMB: getEnvInt("LOG_MAX_SIZE_MB", 100),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		OTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if c.SteamTimeout <= 0 {
		return fmt.Errorf("STEAM_TIMEOUT must be positive, got %s", c.SteamTimeout)
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("UPDATE_INTERVAL must be positive, got %s", c.UpdateInterval)
	}
	if c.UpdateItemInterval < 0 {
		return fmt.Errorf("UPDATE_ITEM_INTERVAL must not be negative, got %s", c.UpdateItemInterval)
	}
	if c.HistoryLimit <= 0 || c.HistoryLimit > maxHistoryLimit {
		return fmt.Errorf("HISTORY_LIMIT must be between 1 and %d, got %d", maxHistoryLimit, c.HistoryLimit)
	}
	if c.SteamCurrency <= 0 {
		return fmt.Errorf("STEAM_CURRENCY must be positive, got %d", c.SteamCurrency)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvDuration accepts Go durations ("90s", "1h") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
