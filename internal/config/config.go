package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the paneld front-end and CLI
type Config struct {
	// Environment selection and resolved URLs
	Environment EnvironmentConfig

	// Outgoing HTTP (session transport) configuration
	HTTP HTTPConfig

	// Session state configuration
	Session SessionConfig

	// Dashboard server configuration
	Dashboard DashboardConfig

	// Logging Configuration
	Logging LoggingConfig
}

// EnvironmentConfig holds the resolved environment and its URLs
type EnvironmentConfig struct {
	Name        Environment
	APIURL      string
	FrontendURL string
}

// HTTPConfig holds session transport settings
type HTTPConfig struct {
	Timeout    time.Duration
	MaxRetries int
	RetryStep  time.Duration
}

// SessionConfig holds session state machine settings
type SessionConfig struct {
	// ReverifyInterval enables periodic re-verification while authenticated (0 = disabled)
	ReverifyInterval time.Duration
}

// DashboardConfig holds the local dashboard server settings
type DashboardConfig struct {
	Address string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables, .env files and an
// optional paneld.yaml in the working directory
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	overrides, err := LoadOverrides(OverridesFileName)
	if err != nil {
		return nil, err
	}

	hostname := os.Getenv("PANELD_HOSTNAME")
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	env, err := ResolveEnvironment(os.Getenv("PANELD_ENVIRONMENT"), hostname)
	if err != nil {
		return nil, err
	}

	urls := overrides.URLsFor(env)
	if v := os.Getenv("PANELD_API_URL"); v != "" {
		urls.APIURL = v
	}
	if v := os.Getenv("PANELD_FRONTEND_URL"); v != "" {
		urls.FrontendURL = v
	}

	timeout, err := durationEnv("PANELD_HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	retryStep, err := durationEnv("PANELD_HTTP_RETRY_STEP", 200*time.Millisecond)
	if err != nil {
		return nil, err
	}
	maxRetries, err := intEnv("PANELD_HTTP_RETRIES", 2)
	if err != nil {
		return nil, err
	}
	reverify, err := durationEnv("PANELD_REVERIFY_INTERVAL", 0)
	if err != nil {
		return nil, err
	}

	// Dashboard binds to loopback by default, it holds a single operator session
	dashAddr := os.Getenv("PANELD_DASHBOARD_ADDR")
	if dashAddr == "" {
		dashAddr = "127.0.0.1:5500"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "console"
	}

	return &Config{
		Environment: EnvironmentConfig{
			Name:        env,
			APIURL:      urls.APIURL,
			FrontendURL: urls.FrontendURL,
		},
		HTTP: HTTPConfig{
			Timeout:    timeout,
			MaxRetries: maxRetries,
			RetryStep:  retryStep,
		},
		Session: SessionConfig{
			ReverifyInterval: reverify,
		},
		Dashboard: DashboardConfig{
			Address: dashAddr,
		},
		Logging: LoggingConfig{
			Level:  logLevel,
			Format: logFormat,
		},
	}, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", key, v)
	}
	return n, nil
}
