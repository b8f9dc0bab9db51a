package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Valkey
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// Server
	Port    string
	GinMode string

	// JWT
	JWTSecret string
	JWTExpiry time.Duration

	// Ingestion
	IngestBaseURL    string
	ReportTimeout    time.Duration
	TokenCacheTTL    time.Duration
	CPUThreshold     float64
	RAMThreshold     float64
	DiskThreshold    float64

	// Sweeper
	SweepInterval time.Duration
	OfflineAfter  time.Duration
	DryRun        bool

	LogLevel string
}

func Load() *Config {
	return &Config{
		// Database
		DBHost:     getEnv("DB_HOST", "postgres"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "hostpulse"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Valkey
		ValkeyHost:     getEnv("VALKEY_HOST", "valkey"),
		ValkeyPort:     getEnv("VALKEY_PORT", "6379"),
		ValkeyPassword: getEnv("VALKEY_PASSWORD", ""),

		// Server
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTExpiry: getEnvDuration("JWT_EXPIRY", 24*time.Hour),

		// Ingestion
		IngestBaseURL: getEnv("INGEST_BASE_URL", "http://localhost:8080"),
		ReportTimeout: getEnvDuration("REPORT_TIMEOUT", 10*time.Second),
		TokenCacheTTL: getEnvDuration("TOKEN_CACHE_TTL", time.Hour),
		CPUThreshold:  getEnvFloat("ALERT_CPU_THRESHOLD", 90),
		RAMThreshold:  getEnvFloat("ALERT_RAM_THRESHOLD", 90),
		DiskThreshold: getEnvFloat("ALERT_DISK_THRESHOLD", 90),

		// Sweeper: agents report every 60s, hosts go offline after
		// missing three cycles.
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", time.Minute),
		OfflineAfter:  getEnvDuration("OFFLINE_AFTER", 3*time.Minute),
		DryRun:        getEnv("DRY_RUN", "false") == "true",

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) GetValkeyAddress() string {
	return fmt.Sprintf("%s:%s", c.ValkeyHost, c.ValkeyPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}
