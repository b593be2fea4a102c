package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the gateway and worker processes
type Config struct {
	// Backend is the upstream resume API
	Backend BackendConfig

	// Server is the gateway's own HTTP listener
	Server ServerConfig

	// Session controls cookie naming and lifetime
	Session SessionConfig

	// Database holds the session registry storage
	Database DatabaseConfig

	// Redis backs the asynq task queue
	Redis RedisConfig

	// Logging configuration
	Logging LoggingConfig
}

// BackendConfig holds the upstream API configuration
type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

// ServerConfig holds the gateway listener configuration
type ServerConfig struct {
	ListenAddr string
	// RoutesFile optionally overrides the built-in route classification table
	RoutesFile string
}

// SessionConfig holds session cookie and lifetime settings
type SessionConfig struct {
	// CookieName is the single canonical session cookie. Every call site
	// that reads or writes the credential goes through this name.
	CookieName string
	TTL        time.Duration
	// PurgeSchedule is a cron expression for the expired-session sweep
	PurgeSchedule string
	CookieSecure  bool
}

// DatabaseConfig holds session registry storage configuration
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string // Redis address (host:port)
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	backendURL := getEnv("BACKEND_URL", "http://localhost:8000")

	backendTimeout, err := getDuration("BACKEND_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	sessionTTL, err := getDuration("SESSION_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}

	cookieSecure, err := getBool("COOKIE_SECURE", true)
	if err != nil {
		return nil, err
	}

	return &Config{
		Backend: BackendConfig{
			URL:     backendURL,
			Timeout: backendTimeout,
		},
		Server: ServerConfig{
			ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
			RoutesFile: os.Getenv("ROUTES_FILE"),
		},
		Session: SessionConfig{
			CookieName:    getEnv("COOKIE_NAME", "resumelens_session"),
			TTL:           sessionTTL,
			PurgeSchedule: getEnv("PURGE_SCHEDULE", "0 * * * *"),
			CookieSecure:  cookieSecure,
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "resumelens.sqlite"),
		},
		Redis: RedisConfig{
			Address: getEnv("REDIS_ADDRESS", "localhost:6379"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
