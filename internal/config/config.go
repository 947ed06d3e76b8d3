// Package config provides configuration loading for fixd.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Workspace WorkspaceConfig `koanf:"workspace"`
	Verify    VerifyConfig    `koanf:"verify"`
	Commit    CommitConfig    `koanf:"commit"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// WorkspaceConfig controls the session workspace.
type WorkspaceConfig struct {
	// Root is the directory the session tracks. Defaults to the current
	// working directory at load time.
	Root string `koanf:"root"`

	// RetryBudget is the number of verification loop-backs allowed before
	// a session is blocked.
	RetryBudget int `koanf:"retry_budget"`
}

// VerifyConfig controls the external verification gateway.
type VerifyConfig struct {
	// Command is the default check command, overridable per run.
	Command string `koanf:"command"`

	// Timeout is the hard deadline for one verification run.
	Timeout time.Duration `koanf:"timeout"`
}

// CommitConfig controls commit message generation.
type CommitConfig struct {
	// SubjectStrictness is one of "strict", "lenient", or "off".
	SubjectStrictness string `koanf:"subject_strictness"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // console or json
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Workspace.RetryBudget == 0 {
		cfg.Workspace.RetryBudget = 3
	}

	if cfg.Verify.Timeout == 0 {
		cfg.Verify.Timeout = 2 * time.Minute
	}

	if cfg.Commit.SubjectStrictness == "" {
		cfg.Commit.SubjectStrictness = "lenient"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Workspace.RetryBudget < 0 {
		return fmt.Errorf("workspace.retry_budget must not be negative, got %d", c.Workspace.RetryBudget)
	}

	if c.Verify.Timeout <= 0 {
		return fmt.Errorf("verify.timeout must be positive, got %s", c.Verify.Timeout)
	}

	switch c.Commit.SubjectStrictness {
	case "strict", "lenient", "off":
	default:
		return fmt.Errorf("commit.subject_strictness must be strict, lenient, or off, got %q", c.Commit.SubjectStrictness)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}

	return nil
}
