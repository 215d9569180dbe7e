// Package config handles application configuration and setup
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/retroenv/retrogolib/log"
	"github.com/yinxiangshi/modrewrite/internal/options"
)

// Env contains the settings read from environment variables.
type Env struct {
	Platform     string `env:"MODREWRITE_PLATFORM"`
	Rules        string `env:"MODREWRITE_RULES"`
	Cache        string `env:"MODREWRITE_CACHE"`
	OTelEndpoint string `env:"MODREWRITE_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"MODREWRITE_OTEL_ENABLED"  envDefault:"true"`
}

// CreateLogger creates a logger with appropriate settings
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

// ParseEnv loads configuration from environment variables.
func ParseEnv() (Env, error) {
	var cfg Env
	if err := env.Parse(&cfg); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Apply sets the options that were not given on the command line from the
// environment.
func (e Env) Apply(opts *options.Program) {
	if opts.Platform == "" {
		opts.Platform = e.Platform
	}
	if opts.Rules == "" {
		opts.Rules = e.Rules
	}
	if opts.Cache == "" {
		opts.Cache = e.Cache
	}
	opts.Telemetry = options.Telemetry{
		Enabled:  e.OTelEnabled,
		Endpoint: e.OTelEndpoint,
	}
}
