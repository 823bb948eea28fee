package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port     string
	LogLevel string
	LogFile  string
	Pretty   bool

	// API rate limiting (per client, guards the HTTP surface)
	RateLimitType   string // "memory" or "redis"
	RateLimit       int    // number of requests allowed
	RateLimitWindow int    // time window in seconds

	// Cache store configuration
	StoreType string // "memory", "file", "mysql" or "redis"
	StorePath string // path to the CSV file for the file store
	CacheTTL  time.Duration

	// MySQL configuration
	MySQLDSN string // Data Source Name

	// Redis configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Provider configuration
	Provider        string // "auto" or a single provider name
	ProviderTimeout time.Duration
	UserAgent       string
	IPInfoToken     string

	// Resolution pacing and clustering
	PacerInterval    time.Duration
	ClusterThreshold float64
	RefreshWindow    time.Duration
	BatchHistory     int
}

// Load reads configuration from environment variables
// with sensible defaults
func Load() *Config {
	// Load .env file if it exists (for local development)
	// In production/Docker, environment variables are set directly
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using environment variables or defaults")
	}

	return &Config{
		Port:     getEnv("PORT", "3000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
		Pretty:   getEnvAsBool("LOG_PRETTY", true),

		// Rate limiting (default: memory, 10 requests per 1 second)
		RateLimitType:   getEnv("RATE_LIMITER_TYPE", "memory"),
		RateLimit:       getEnvAsInt("RATE_LIMIT", 10),
		RateLimitWindow: getEnvAsInt("RATE_LIMIT_WINDOW", 1),

		StoreType: getEnv("CACHE_STORE_TYPE", "memory"),
		StorePath: getEnv("CACHE_STORE_PATH", "./data/location-cache.csv"),
		CacheTTL:  getEnvAsDuration("CACHE_TTL", 30*24*time.Hour),

		MySQLDSN: getEnv("MYSQL_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		Provider:        getEnv("PROVIDER", "auto"),
		ProviderTimeout: getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),
		UserAgent:       getEnv("PROVIDER_USER_AGENT", "ipglobe/1.0"),
		IPInfoToken:     getEnv("IPINFO_TOKEN", ""),

		PacerInterval:    getEnvAsDuration("PACER_INTERVAL", 1500*time.Millisecond),
		ClusterThreshold: getEnvAsFloat("CLUSTER_THRESHOLD", 0.5),
		RefreshWindow:    getEnvAsDuration("CLUSTER_REFRESH_WINDOW", 300*time.Millisecond),
		BatchHistory:     getEnvAsInt("BATCH_HISTORY", 32),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt reads an environment variable as an integer
// Returns default if not set or invalid
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloat reads an environment variable as a float64
// Returns default if not set or invalid
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBool accepts anything strconv.ParseBool does
func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration reads a Go duration string ("1500ms", "720h")
// A bare integer is read as milliseconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}

	if ms, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(ms) * time.Millisecond
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}
