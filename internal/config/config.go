// Package config holds the console daemon configuration. Values start from
// DefaultConsoleConfig, are overridden by WESCONSOLE_* environment variables
// and finally by command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/me/wesconsole/internal/logging"
	"github.com/me/wesconsole/internal/poller"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "wesconsole"

// ConsoleConfig holds configuration for the console daemon.
type ConsoleConfig struct {
	Addr                  string        `envconfig:"addr"`                    // listen address
	LogLevel              string        `envconfig:"log_level"`               // debug, info, warn, error
	LogFormat             string        `envconfig:"log_format"`              // text, json
	DBPath                string        `envconfig:"db_path"`                 // SQLite file, ":memory:" for tests
	PollSchedule          string        `envconfig:"poll_schedule"`           // cron expression or @every descriptor
	RequestTimeout        time.Duration `envconfig:"request_timeout"`         // per remote request
	RunPageSize           int           `envconfig:"run_page_size"`           // page_size for GET /runs
	Parallelism           int           `envconfig:"parallelism"`             // concurrent refreshes, 0 = unbounded
	GitHubAPI             string        `envconfig:"github_api"`              // contents API base
	PreRegisteredServices string        `envconfig:"pre_registered_services"` // YAML file, empty disables
}

// DefaultConsoleConfig returns sensible defaults.
func DefaultConsoleConfig() ConsoleConfig {
	return ConsoleConfig{
		Addr:           ":8080",
		LogLevel:       "info",
		LogFormat:      "text",
		PollSchedule:   poller.DefaultSchedule,
		RequestTimeout: 30 * time.Second,
		RunPageSize:    100,
		Parallelism:    8,
		GitHubAPI:      "https://api.github.com",
	}
}

// Load returns the defaults overridden by the environment.
func Load() (ConsoleConfig, error) {
	cfg := DefaultConsoleConfig()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("process environment: %w", err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c ConsoleConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if _, err := logging.ParseLevelStrict(c.LogLevel); err != nil {
		return err
	}
	if !logging.ValidFormat(c.LogFormat) {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if _, err := poller.ParseSchedule(c.PollSchedule); err != nil {
		return err
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.RunPageSize <= 0 {
		return fmt.Errorf("run page size must be positive, got %d", c.RunPageSize)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative, got %d", c.Parallelism)
	}
	return nil
}
