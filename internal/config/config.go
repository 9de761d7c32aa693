package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/rbac"

	"github.com/kelseyhightower/envconfig"
)

const defaultJWTSecret = "bfa-default-dev-secret-change-me"

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Environment string `envconfig:"APP_ENV" default:"development"`

	// Dealer backend
	BackendAPIURL string `envconfig:"BACKEND_API_URL" default:"http://localhost:8081/api"`

	// HTTP client
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`

	// Resilience
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3"`
	InitialBackoff time.Duration `envconfig:"INITIAL_BACKOFF" default:"100ms"`
	MaxConcurrency int           `envconfig:"MAX_CONCURRENCY" default:"50"`

	// Profile cache
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	// Sessions
	RedisURL   string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"12h"`

	// Observability
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// JWT / Auth
	JWTSecret      string        `envconfig:"JWT_SECRET" default:"bfa-default-dev-secret-change-me"`
	JWTAccessTTL   time.Duration `envconfig:"JWT_ACCESS_TTL" default:"12h"`
	LoginRateLimit int           `envconfig:"LOGIN_RATE_LIMIT" default:"10"`

	// Role registry
	UnknownRolePolicy string `envconfig:"UNKNOWN_ROLE_POLICY" default:"deny"`
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// RolePolicy returns the registry policy for unrecognised roles.
func (c *Config) RolePolicy() rbac.UnknownRolePolicy {
	return rbac.ParsePolicy(c.UnknownRolePolicy)
}

func (c *Config) validate() error {
	if c.BackendAPIURL == "" {
		return errors.New("BACKEND_API_URL must be set")
	}
	if c.SessionTTL <= 0 || c.JWTAccessTTL <= 0 {
		return errors.New("SESSION_TTL and JWT_ACCESS_TTL must be positive")
	}
	if c.JWTAccessTTL > c.SessionTTL {
		return fmt.Errorf("JWT_ACCESS_TTL (%s) outlives SESSION_TTL (%s)", c.JWTAccessTTL, c.SessionTTL)
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be changed in production")
	}
	return nil
}
