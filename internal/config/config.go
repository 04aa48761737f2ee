package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	ServerPort   int
	DatabasePath string
	AppEnv       string

	// Backend the rewrite table forwards to.
	HostIP      string
	BackendPort string

	JWTSecret          string
	SessionTTL         time.Duration
	AuthProvider       string // "local" or "backend"
	DefaultCallbackURL string

	// Optional local account created at start-up when AuthProvider is "local".
	SeedUserEmail    string
	SeedUserPassword string

	AllowedOrigins []string
	LogLevel       string
	LogFormat      string

	HealthCheckSchedule  string
	SessionPurgeSchedule string

	SignInRateLimit  int
	SignInRateWindow time.Duration
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
}

const devJWTSecret = "biometriscan-dev-secret"

// Load loads configuration from environment variables or sets defaults.
// A .env file found in the working directory or one of its parents is applied first.
func Load() (*Config, error) {
	LoadDotEnvUp(6)
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "3000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	sessionTTL, err := time.ParseDuration(getEnv("SESSION_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	if sessionTTL <= 0 {
		return nil, errors.New("SESSION_TTL must be positive")
	}
	rateLimit, err := strconv.Atoi(getEnv("SIGNIN_RATE_LIMIT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid SIGNIN_RATE_LIMIT: %w", err)
	}
	rateWindow, err := time.ParseDuration(getEnv("SIGNIN_RATE_WINDOW", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SIGNIN_RATE_WINDOW: %w", err)
	}
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		ServerPort:           port,
		DatabasePath:         getEnv("DATABASE_PATH", "./gateway.db"),
		AppEnv:               getEnv("APP_ENV", "development"),
		HostIP:               getEnvNonEmpty("HOST_IP", "127.0.0.1"),
		BackendPort:          getEnvNonEmpty("HOST_BACKEND_PORT", "8000"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		SessionTTL:           sessionTTL,
		AuthProvider:         strings.ToLower(getEnv("AUTH_PROVIDER", "local")),
		DefaultCallbackURL:   getEnvNonEmpty("DEFAULT_CALLBACK_URL", "/capture"),
		SeedUserEmail:        strings.TrimSpace(os.Getenv("SEED_USER_EMAIL")),
		SeedUserPassword:     os.Getenv("SEED_USER_PASSWORD"),
		AllowedOrigins:       splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		HealthCheckSchedule:  getEnv("HEALTH_CHECK_SCHEDULE", "@every 30s"),
		SessionPurgeSchedule: getEnv("SESSION_PURGE_SCHEDULE", "@hourly"),
		SignInRateLimit:      rateLimit,
		SignInRateWindow:     rateWindow,
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              redisDB,
	}

	switch cfg.AuthProvider {
	case "local", "backend":
	default:
		return nil, fmt.Errorf("unknown AUTH_PROVIDER %q", cfg.AuthProvider)
	}
	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		cfg.JWTSecret = devJWTSecret
	}
	return cfg, nil
}

// BackendURL is the base URL every rewrite destination is built on.
func (c *Config) BackendURL() string {
	return fmt.Sprintf("http://%s:%s", c.HostIP, c.BackendPort)
}

// IsProduction reports whether cookies must be marked Secure.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Like getEnv, but an empty value also falls back.
func getEnvNonEmpty(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
