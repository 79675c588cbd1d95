package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds application configuration
type Config struct {
	ServerPort     string `env:"PORT" envDefault:"8080"`
	DatabaseType   string `env:"DATABASE_TYPE" envDefault:"sqlite"`
	DatabasePath   string `env:"DB_PATH" envDefault:"./speechworks.db"`
	DatabaseURL    string `env:"DATABASE_URL"`
	MigrationsPath string `env:"MIGRATIONS_PATH"` // empty uses the embedded migrations
	SeedActivities bool   `env:"SEED_ACTIVITIES" envDefault:"true"`

	AutoCompleteInterval time.Duration   `env:"AUTO_COMPLETE_INTERVAL" envDefault:"30s"`
	HandoffRetryDelays   []time.Duration `env:"HANDOFF_RETRY_DELAYS" envDefault:"300ms,600ms,1s,1500ms" envSeparator:","`
	WorkspaceIdleTimeout time.Duration   `env:"WORKSPACE_IDLE_TIMEOUT" envDefault:"30m"`
	ShutdownTimeout      time.Duration   `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	AWSRegion    string `env:"AWS_REGION" envDefault:"us-east-1"`
	SESFromEmail string `env:"SES_FROM_EMAIL"`
	SESFromName  string `env:"SES_FROM_NAME" envDefault:"SpeechWorks"`
	NotifyEmail  string `env:"NOTIFY_EMAIL"`
	OTelEnabled  bool   `env:"OTEL_ENABLED"`
	OTelStdout   bool   `env:"OTEL_STDOUT"`
	Debug        bool   `env:"DEBUG"`
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from the given variables instead of the process environment
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that cannot be expressed as defaults
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.DatabaseType) {
	case "sqlite", "sqlite3":
		if c.DatabasePath == "" {
			errs = append(errs, errors.New("DB_PATH is required for sqlite"))
		}
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for %s", c.DatabaseType))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_TYPE %q", c.DatabaseType))
	}

	if c.AutoCompleteInterval <= 0 {
		errs = append(errs, errors.New("AUTO_COMPLETE_INTERVAL must be positive"))
	}
	if c.WorkspaceIdleTimeout < 0 {
		errs = append(errs, errors.New("WORKSPACE_IDLE_TIMEOUT must not be negative"))
	}
	for _, d := range c.HandoffRetryDelays {
		if d < 0 {
			errs = append(errs, errors.New("HANDOFF_RETRY_DELAYS must not be negative"))
			break
		}
	}

	return errors.Join(errs...)
}

// EmailEnabled reports whether session notices can be sent
func (c *Config) EmailEnabled() bool {
	return c.SESFromEmail != "" && c.NotifyEmail != ""
}
