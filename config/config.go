package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// API configuration
	APIPort   int
	APITokens []string

	// Database configuration
	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string

	// Redis configuration
	RedisHost     string
	RedisPassword string
	RedisPort     string

	// Backtest configuration
	Backtest BacktestConfig
}

// BacktestConfig holds backtest and backfill parameters
type BacktestConfig struct {
	// Actuals backfill cadence
	BackfillIntervalMinutes int

	// Covid demand-distortion window excluded by _postcovid model
	// variants and the exclude_covid request flag
	CovidStart time.Time
	CovidEnd   time.Time

	// Accuracy/weight response cache TTL
	CacheTTLSeconds int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		APIPort:   getEnvIntOrDefault("API_PORT", 8090),
		APITokens: splitList(os.Getenv("API_TOKENS")),

		// Database configuration
		DatabaseHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DatabasePort:     getEnvOrDefault("DB_PORT", "5432"),
		DatabaseName:     getEnvOrDefault("DB_NAME", "forecast_backtest"),
		DatabaseUser:     getEnvOrDefault("DB_USER", "forecast"),
		DatabasePassword: getEnvOrDefault("DB_PASSWORD", "forecast123"),

		// Redis configuration
		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		Backtest: BacktestConfig{
			BackfillIntervalMinutes: getEnvIntOrDefault("BACKFILL_INTERVAL_MINUTES", 60),
			CovidStart:              getEnvDateOrDefault("COVID_START", "2020-03-01"),
			CovidEnd:                getEnvDateOrDefault("COVID_END", "2021-08-31"),
			CacheTTLSeconds:         getEnvIntOrDefault("CACHE_TTL_SECONDS", 300),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("⚠️  Invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDateOrDefault(key, defaultValue string) time.Time {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		log.Printf("⚠️  Invalid date for %s: %q, using default %s", key, value, defaultValue)
		parsed, _ = time.Parse("2006-01-02", defaultValue)
	}
	return parsed
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
