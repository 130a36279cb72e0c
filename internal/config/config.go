/**
 * @description
 * Configuration loader for the StockPulse backend.
 * Responsible for reading environment variables, setting defaults, and performing strict validation.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files
 * - standard "os": For reading env vars
 * - standard "fmt": For error reporting
 *
 * @notes
 * - Fails fast if critical variables (Database URL) are missing.
 * - Alert interval is a deployment tuning parameter, defaulted to 60 seconds.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	MarketData MarketDataConfig
	SMTP       SMTPConfig
	Alerts     AlertsConfig
	Services   ServicesConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
	Env  string // "development" or "production"
}

// DBConfig holds PostgreSQL settings
type DBConfig struct {
	URL string
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	URL string
}

// MarketDataConfig holds the upstream quote API settings
type MarketDataConfig struct {
	BaseURL string
	APIKey  string
}

// SMTPConfig holds outbound email settings for alert notifications
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// AlertsConfig holds the price-alert scheduler settings
type AlertsConfig struct {
	IntervalSeconds int
	QuoteCacheTTL   int // seconds
}

// ServicesConfig holds external service keys (Auth, etc.)
type ServicesConfig struct {
	ClerkSecretKey string
	ClerkJWKSURL   string // URL to fetch JSON Web Key Set for JWT validation
}

// Load reads .env file and populates the Config struct
func Load() (*Config, error) {
	// Attempt to load .env, but don't crash if it fails (k8s/prod might inject env vars directly)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("GO_ENV", "development"),
		},
		DB: DBConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		MarketData: MarketDataConfig{
			BaseURL: getEnv("MARKET_DATA_URL", "https://query1.finance.yahoo.com"),
			APIKey:  sanitizeCredential(getEnv("MARKET_DATA_API_KEY", "")),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: sanitizeCredential(getEnv("SMTP_USERNAME", "")),
			Password: sanitizeCredential(getEnv("SMTP_PASSWORD", "")),
			From:     getEnv("SMTP_FROM", "alerts@stockpulse.app"),
		},
		Alerts: AlertsConfig{
			IntervalSeconds: getEnvAsInt("ALERT_CHECK_INTERVAL_SECONDS", 60),
			QuoteCacheTTL:   getEnvAsInt("QUOTE_CACHE_TTL_SECONDS", 60),
		},
		Services: ServicesConfig{
			ClerkSecretKey: sanitizeCredential(getEnv("CLERK_SECRET_KEY", "")),
			ClerkJWKSURL:   getEnv("CLERK_JWKS_URL", ""),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks for required variables
func validate(cfg *Config) error {
	if cfg.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Alerts.IntervalSeconds <= 0 {
		return fmt.Errorf("ALERT_CHECK_INTERVAL_SECONDS must be positive")
	}
	if cfg.SMTP.Host == "" && cfg.Server.Env != "test" {
		// Alerts still trigger without email, history records the failed delivery
		fmt.Println("Warning: SMTP_HOST is missing. Alert emails will not be sent.")
	}
	return nil
}

// Helper to get env var with default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func sanitizeCredential(value string) string {
	trimmed := strings.TrimSpace(value)
	return strings.Trim(trimmed, "\"")
}

// Helper to get env var as int
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
