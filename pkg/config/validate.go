package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for structural problems: unknown enum
// values, missing storage locations, broken schedules. Backend credentials
// are deliberately not checked here; the provider factory reports those as
// typed provider errors naming the missing variable.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// llm.backend must be a known value.
	switch c.LLM.SelectedBackend() {
	case "ollama", "watsonx":
		// valid
	default:
		errs = append(errs, fmt.Errorf("llm.backend must be \"ollama\" or \"watsonx\", got %q", c.LLM.Backend))
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "postgres", "sqlite":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"postgres\", or \"sqlite\", got %q", c.Storage.Type))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	// If storage.type is "sqlite", a database path must be set.
	if c.Storage.Type == "sqlite" && c.Storage.SQLite.Path == "" {
		errs = append(errs, fmt.Errorf("storage.sqlite.path is required when storage.type is \"sqlite\""))
	}

	// Retention schedule must parse when the sweeper is enabled.
	if c.Storage.Retention.Enabled {
		if _, err := cron.ParseStandard(c.Storage.Retention.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("storage.retention.schedule %q: %w", c.Storage.Retention.Schedule, err))
		}
		if c.Storage.Retention.MaxAge <= 0 {
			errs = append(errs, fmt.Errorf("storage.retention.max_age must be > 0, got %v", c.Storage.Retention.MaxAge))
		}
	}

	// auth.type must be a known value.
	switch c.Auth.Type {
	case "none", "apikey", "jwt":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	// JWT validation needs a key source.
	if c.Auth.Type == "jwt" && c.Auth.JWT.JWKSURL == "" {
		errs = append(errs, fmt.Errorf("auth.jwt.jwks_url is required when auth.type is \"jwt\""))
	}

	return errors.Join(errs...)
}
