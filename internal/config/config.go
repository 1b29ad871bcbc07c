package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the hub service configuration, loaded from the environment.
type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// Hub
	HubPort     int     `env:"HUB_PORT" default:"8084"`
	Greeting    bool    `env:"HUB_GREETING" default:"true"`
	Passthrough bool    `env:"HUB_PASSTHROUGH" default:"false"`
	MaxPayload  int64   `env:"HUB_MAX_PAYLOAD" default:"1048576"`
	RateLimit   float64 `env:"HUB_RATE_LIMIT" default:"0"`
	RateBurst   int     `env:"HUB_RATE_BURST" default:"20"`

	// Authentication; empty secret disables upgrade auth
	JWTSecret string        `env:"JWT_SECRET"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" default:"24h"`

	// Broadcast bridge; empty URL disables it
	RedisURL      string `env:"REDIS_URL"`
	BridgeChannel string `env:"BRIDGE_CHANNEL" default:"sockethub:broadcast"`

	// Message history; empty URL disables it
	DatabaseURL string `env:"DATABASE_URL"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"json"`
}

// LoadConfig loads configuration from environment variables, with a .env
// file as fallback when present.
func LoadConfig() (*Config, error) {
	// missing .env is fine, system env vars still apply
	_ = godotenv.Load(".env")

	config := &Config{}

	if err := loadEnvString(&config.GoEnv, "GO_ENV", "development"); err != nil {
		return nil, err
	}

	// Hub
	if err := loadEnvInt(&config.HubPort, "HUB_PORT", 8084); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.Greeting, "HUB_GREETING", true); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.Passthrough, "HUB_PASSTHROUGH", false); err != nil {
		return nil, err
	}
	if err := loadEnvInt64(&config.MaxPayload, "HUB_MAX_PAYLOAD", 1048576); err != nil {
		return nil, err
	}
	if err := loadEnvFloat(&config.RateLimit, "HUB_RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.RateBurst, "HUB_RATE_BURST", 20); err != nil {
		return nil, err
	}

	// Authentication
	if err := loadEnvString(&config.JWTSecret, "JWT_SECRET", ""); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.JWTExpiry, "JWT_EXPIRY", 24*time.Hour); err != nil {
		return nil, err
	}

	// Bridge
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.BridgeChannel, "BRIDGE_CHANNEL", "sockethub:broadcast"); err != nil {
		return nil, err
	}

	// History
	if err := loadEnvString(&config.DatabaseURL, "DATABASE_URL", ""); err != nil {
		return nil, err
	}

	// Logging
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "json"); err != nil {
		return nil, err
	}

	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt64(target *int64, key string, defaultValue int64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if c.HubPort < 0 || c.HubPort > 65535 {
		errors = append(errors, "HUB_PORT must be between 0 and 65535")
	}
	if c.MaxPayload <= 0 {
		errors = append(errors, "HUB_MAX_PAYLOAD must be positive")
	}
	if c.RateLimit < 0 {
		errors = append(errors, "HUB_RATE_LIMIT must not be negative")
	}
	if c.RateBurst < 1 {
		errors = append(errors, "HUB_RATE_BURST must be at least 1")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	// JWT secret is optional, but a short one is worse than none
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		errors = append(errors, "JWT_SECRET should be at least 32 characters long")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// AuthEnabled reports whether upgrade authentication is configured.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
