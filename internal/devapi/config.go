package devapi

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the reference backend
type Config struct {
	// Server Configuration
	Address string

	// Database Configuration
	Database DatabaseConfig

	// Token Configuration
	Tokens TokenConfig

	// AllowedOrigins are the front-end origins allowed to send credentials
	AllowedOrigins []string

	// Seed creates an admin on startup when both fields are set
	Seed SeedConfig

	// Logging Configuration
	Logging LoggingConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL string
}

// TokenConfig holds JWT and cookie settings
type TokenConfig struct {
	Secret        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SecureCookies bool
}

type SeedConfig struct {
	Email    string
	Password string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	accessTTL, err := durationEnv("PANELD_API_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	refreshTTL, err := durationEnv("PANELD_API_REFRESH_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}

	secure := false
	if v := os.Getenv("PANELD_API_SECURE_COOKIES"); v != "" {
		secure, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PANELD_API_SECURE_COOKIES %q: %w", v, err)
		}
	}

	return &Config{
		Address: getEnvOrDefault("PANELD_API_ADDR", ":5000"),
		Database: DatabaseConfig{
			URL: getEnvOrDefault("PANELD_API_DATABASE_URL", "paneld-api.db"),
		},
		Tokens: TokenConfig{
			Secret:        os.Getenv("PANELD_API_JWT_SECRET"),
			AccessTTL:     accessTTL,
			RefreshTTL:    refreshTTL,
			SecureCookies: secure,
		},
		AllowedOrigins: splitList(getEnvOrDefault("PANELD_API_ALLOWED_ORIGINS", DefaultAllowedOrigin)),
		Seed: SeedConfig{
			Email:    os.Getenv("PANELD_API_SEED_EMAIL"),
			Password: os.Getenv("PANELD_API_SEED_PASSWORD"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
