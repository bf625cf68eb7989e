package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port                            string
	SeedDataPath                    string
	LogLevel                        string
	Environment                     string
	SnapshotDir                     string
	EnableJSONPersistence           string
	IdempotencyCacheTTL             string
	IdempotencyCacheCleanupInterval string
	ShippingFlatRate                string
	ShareBaseURL                    string
	MaxEventsInQueue                string
	EventsFilePath                  string
	RateLimitEnabled                string
	RateLimitType                   string
	RateLimitRequestsPerMinute      string
	RateLimitWindowMinutes          string
	RateLimitAdminRequestsPerMinute string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() *Config {
	// Load .env file if it exists
	// This will not override existing environment variables
	err := godotenv.Load()
	if err != nil {
		slog.Warn("Could not load .env file, continuing with system environment variables only", "error", err)
	} else {
		slog.Info("Successfully loaded .env file")
	}

	config := &Config{
		Port:                            getEnvWithDefault("PORT", "8080"),
		SeedDataPath:                    getEnvWithDefault("SEED_DATA_PATH", "data/storefront_seed.json"),
		LogLevel:                        getEnvWithDefault("LOG_LEVEL", "info"),
		Environment:                     getEnvWithDefault("ENVIRONMENT", "development"),
		SnapshotDir:                     getEnvWithDefault("SNAPSHOT_DIR", "data/snapshots"),
		EnableJSONPersistence:           getEnvWithDefault("ENABLE_JSON_PERSISTENCE", "true"),
		IdempotencyCacheTTL:             getEnvWithDefault("IDEMPOTENCY_CACHE_TTL", "2m"),
		IdempotencyCacheCleanupInterval: getEnvWithDefault("IDEMPOTENCY_CACHE_CLEANUP_INTERVAL", "30s"),
		ShippingFlatRate:                getEnvWithDefault("SHIPPING_FLAT_RATE", "15000"),
		ShareBaseURL:                    getEnvWithDefault("SHARE_BASE_URL", "https://biolink.example.com"),
		MaxEventsInQueue:                getEnvWithDefault("MAX_EVENTS_IN_QUEUE", "10000"),
		EventsFilePath:                  getEnvWithDefault("EVENTS_FILE_PATH", "./data/events.json"),
		RateLimitEnabled:                getEnvWithDefault("RATE_LIMIT_ENABLED", "true"),
		RateLimitType:                   getEnvWithDefault("RATE_LIMIT_TYPE", "ip"),
		RateLimitRequestsPerMinute:      getEnvWithDefault("RATE_LIMIT_REQUESTS_PER_MINUTE", "100"),
		RateLimitWindowMinutes:          getEnvWithDefault("RATE_LIMIT_WINDOW_MINUTES", "1"),
		RateLimitAdminRequestsPerMinute: getEnvWithDefault("RATE_LIMIT_ADMIN_REQUESTS_PER_MINUTE", "300"),
	}

	// Configure slog based on log level
	SetupLogging(config.LogLevel)

	slog.Info("Configuration loaded",
		"port", config.Port,
		"environment", config.Environment,
		"logLevel", config.LogLevel,
		"seedDataPath", config.SeedDataPath,
		"snapshotDir", config.SnapshotDir,
		"enableJSONPersistence", config.EnableJSONPersistence,
		"idempotencyCacheTTL", config.IdempotencyCacheTTL,
		"idempotencyCacheCleanupInterval", config.IdempotencyCacheCleanupInterval,
		"shippingFlatRate", config.ShippingFlatRate,
		"shareBaseURL", config.ShareBaseURL,
		"maxEventsInQueue", config.MaxEventsInQueue,
		"eventsFilePath", config.EventsFilePath,
		"rateLimitEnabled", config.RateLimitEnabled,
		"rateLimitType", config.RateLimitType)

	return config
}

// SetupLogging configures the default slog logger for the given level
func SetupLogging(level string) {
	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(handler))
}

// getEnvWithDefault gets an environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
