package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Core     CoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	NewRelic NewRelicConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CoreConfig holds the coordination engine's tunables.
type CoreConfig struct {
	// StoreTimeout bounds every store round trip.
	StoreTimeout time.Duration

	// ScheduleHorizonDays is the default dashboard schedule window.
	ScheduleHorizonDays int

	// DriverOfferNeedsParentApproval routes driver-initiated seat offers for
	// managed students through parental approval before they occupy a seat.
	DriverOfferNeedsParentApproval bool

	// SweepInterval is the minimum gap between opportunistic sweeps.
	SweepInterval time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds identity verification configuration.
//
// StaticTokens maps bearer tokens to user IDs ("tok1:user1,tok2:user2").
// It backs local development and tests; production deploys plug in a real
// verifier.
type AuthConfig struct {
	StaticTokens map[string]string
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Core: CoreConfig{
			StoreTimeout:                   getDurationEnv("CORE_STORE_TIMEOUT", 5*time.Second),
			ScheduleHorizonDays:            getIntEnv("CORE_SCHEDULE_HORIZON_DAYS", 14),
			DriverOfferNeedsParentApproval: getBoolEnv("CORE_DRIVER_OFFER_NEEDS_PARENT_APPROVAL", true),
			SweepInterval:                  getDurationEnv("CORE_SWEEP_INTERVAL", time.Minute),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "rydz"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			StaticTokens: getMapEnv("AUTH_STATIC_TOKENS"),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "rydz-coordination-engine"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getMapEnv(key string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	result := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if ok && k != "" && v != "" {
			result[k] = v
		}
	}
	return result
}
