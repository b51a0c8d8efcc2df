package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	Environment     string
	RedisURL        string
	AllowedOrigins  []string
	DefaultLanguage string
	MaxMessageBytes int64
	LogRedact       bool

	// per connection
	MessagesPerSecond float64
	MessageBurst      int
}

func Load() *Config {
	_ = godotenv.Load()

	var origins []string
	for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return &Config{
		Port:            getEnv("PORT", "8081"),
		Environment:     strings.ToLower(getEnv("ENVIRONMENT", "development")),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379"),
		AllowedOrigins:  origins,
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "en"),
		MaxMessageBytes: int64(getIntEnv("MAX_MESSAGE_BYTES", 4096)),
		LogRedact:       getBoolEnv("LOG_REDACT", true),

		MessagesPerSecond: getFloatEnv("MESSAGES_PER_SECOND", 1),
		MessageBurst:      getIntEnv("MESSAGE_BURST", 5),
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

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
