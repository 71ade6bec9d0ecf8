package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MinSessionSecretLength is the shortest SESSION_SECRET accepted
const MinSessionSecretLength = 32

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	FrontendURL      string
	EnableHSTS       bool
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	SessionSecret    string
	SessionTTL       time.Duration
	SecureCookies    bool
	Timezone         string
	Location         *time.Location
	StatsCacheTTL    time.Duration
	OpenAPIPath      string
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string
}

// Load loads the API server configuration from environment variables.
func Load() (*Config, error) {
	cfg, err := LoadCore()
	if err != nil {
		return nil, err
	}

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("SESSION_SECRET must be at least %d bytes", MinSessionSecretLength)
	}

	return cfg, nil
}

// LoadCore loads configuration for processes that do not issue sessions,
// such as the worker and habitctl. SESSION_SECRET is not required.
func LoadCore() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		SessionSecret:    os.Getenv("SESSION_SECRET"),
		SessionTTL:       getEnvDuration("SESSION_TTL", 30*24*time.Hour),
		SecureCookies:    getEnvBool("SECURE_COOKIES", false),
		Timezone:         getEnv("APP_TIMEZONE", "Local"),
		StatsCacheTTL:    getEnvDuration("STATS_CACHE_TTL", 24*time.Hour),
		OpenAPIPath:      getEnv("OPENAPI_PATH", "api/openapi/openapi.yaml"),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive")
	}
	if cfg.RabbitMQPrefetch < 1 {
		cfg.RabbitMQPrefetch = 1
	}

	return cfg, nil
}

// AsyncStatsEnabled reports whether stats refreshes go through the job queue.
func (c *Config) AsyncStatsEnabled() bool {
	return c.RabbitMQURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration parses Go durations such as "720h"; unparsable values fall back to the default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
