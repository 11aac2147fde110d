// Package config handles loading and validation of application
// configuration from environment variables. Supports .env files via
// godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port        int
	Environment string // "development" | "staging" | "production"

	// Database (optional, directory persistence only)
	DatabaseURL string

	// Security
	JWTSecret      string
	AllowedOrigins []string
	RateLimitRPM   int
	AccessTTL      time.Duration
	RefreshTTL     time.Duration

	// Redis (refresh sessions; empty means in-memory sessions)
	RedisURL string

	// Geocoding (optional enrichment)
	MapboxToken    string
	GeocodeTimeout time.Duration

	// Notification targeting
	NotifyRadiusKm float64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"), ","),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", 60),
		AccessTTL:      getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL:     getEnvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),

		RedisURL: getEnv("REDIS_URL", ""),

		MapboxToken:    getEnv("MAPBOX_ACCESS_TOKEN", ""),
		GeocodeTimeout: getEnvDuration("GEOCODE_TIMEOUT", 10*time.Second),

		NotifyRadiusKm: getEnvFloat("NOTIFY_RADIUS_KM", 5.0),
	}

	if cfg.NotifyRadiusKm <= 0 {
		return nil, fmt.Errorf("NOTIFY_RADIUS_KM must be positive")
	}

	// Validate required fields in production
	if cfg.Environment == "production" {
		if cfg.JWTSecret == "dev-secret-change-in-production" {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
