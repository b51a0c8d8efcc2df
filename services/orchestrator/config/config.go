package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the orchestrator configuration.
type Config struct {
	Port             string
	Environment      string
	RedisURL         string
	CognitiveCoreURL string
	DatabaseURL      string // sqlite file path or postgres:// DSN
	CatalogSeedFile  string
	LogRedact        bool

	SessionBackend   string // "redis" or "memory"
	SessionTTL       time.Duration
	SessionRetention time.Duration
	ExtractTimeout   time.Duration
	DedupWindow      time.Duration

	CatalogCacheTTL        time.Duration
	CatalogRefreshInterval time.Duration

	ConsumerName string
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	_ = godotenv.Load()

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "orchestrator-1"
	}

	return &Config{
		Port:             getEnv("PORT", "8082"),
		Environment:      strings.ToLower(getEnv("ENVIRONMENT", "development")),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379"),
		CognitiveCoreURL: getEnv("COGNITIVE_CORE_URL", "http://localhost:8083"),
		DatabaseURL:      getEnv("DATABASE_URL", "schemes.db"),
		CatalogSeedFile:  getEnv("CATALOG_SEED_FILE", ""),
		LogRedact:        getBoolEnv("LOG_REDACT", true),

		SessionBackend:   strings.ToLower(getEnv("SESSION_BACKEND", "redis")),
		SessionTTL:       getDurationEnv("SESSION_TTL", 24*time.Hour),
		SessionRetention: getDurationEnv("SESSION_RETENTION", 7*24*time.Hour),
		ExtractTimeout:   getDurationEnv("EXTRACT_TIMEOUT", 8*time.Second),
		DedupWindow:      getDurationEnv("DEDUP_WINDOW", 30*time.Second),

		CatalogCacheTTL:        getDurationEnv("CATALOG_CACHE_TTL", 5*time.Minute),
		CatalogRefreshInterval: getDurationEnv("CATALOG_REFRESH_INTERVAL", 10*time.Minute),

		ConsumerName: getEnv("CONSUMER_NAME", hostname),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go duration strings ("90s") or plain seconds ("90").
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getIntEnv(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
