// Package config loads the process configuration from the environment. The
// config is constructed once at startup and passed by reference into the
// adapters; nothing reads the environment after Load returns.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents the complete application configuration.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseURL     string        `envconfig:"DATABASE_URL" required:"true"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS"`
	KeyAttempts     int           `envconfig:"KEY_ATTEMPTS" default:"5"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	Redis           RedisConfig   `envconfig:"REDIS"`
	SMTP            SMTPConfig    `envconfig:"SMTP"`
}

// RedisConfig configures the issuance rate limiter. An empty Addr disables
// throttling entirely.
type RedisConfig struct {
	Addr           string        `envconfig:"ADDR"`
	Password       string        `envconfig:"PASSWORD"`
	DB             int           `envconfig:"DB" default:"0"`
	IssuanceLimit  int           `envconfig:"ISSUANCE_LIMIT" default:"5"`
	IssuanceWindow time.Duration `envconfig:"ISSUANCE_WINDOW" default:"1h"`
}

// SMTPConfig configures the outbound mail endpoint. The sender address is
// also the authentication username.
type SMTPConfig struct {
	Host     string `envconfig:"HOST" required:"true"`
	Port     int    `envconfig:"PORT" default:"587"`
	Sender   string `envconfig:"SENDER" required:"true"`
	Password string `envconfig:"PASSWORD" required:"true"`
}

// Load reads configuration from LICENSEGATE_-prefixed environment variables.
// Missing required values are startup-fatal, not per-request errors.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("LICENSEGATE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.KeyAttempts < 1 {
		return fmt.Errorf("key attempts must be at least 1, got %d", c.KeyAttempts)
	}
	if c.Redis.Addr != "" && c.Redis.IssuanceLimit < 1 {
		return fmt.Errorf("issuance limit must be at least 1, got %d", c.Redis.IssuanceLimit)
	}
	return nil
}
