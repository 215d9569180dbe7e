package config

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/yinxiangshi/modrewrite/internal/options"
)

func TestParseEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := ParseEnv()
		assert.NoError(t, err)
		assert.True(t, cfg.OTelEnabled)
		assert.Equal(t, "", cfg.OTelEndpoint)
	})

	t.Run("values", func(t *testing.T) {
		t.Setenv("MODREWRITE_PLATFORM", "linux")
		t.Setenv("MODREWRITE_RULES", "rules.yaml")
		t.Setenv("MODREWRITE_CACHE", "cache.db")
		t.Setenv("MODREWRITE_OTEL_ENDPOINT", "http://localhost:4318")
		t.Setenv("MODREWRITE_OTEL_ENABLED", "false")

		cfg, err := ParseEnv()
		assert.NoError(t, err)
		assert.Equal(t, "linux", cfg.Platform)
		assert.Equal(t, "rules.yaml", cfg.Rules)
		assert.Equal(t, "cache.db", cfg.Cache)
		assert.Equal(t, "http://localhost:4318", cfg.OTelEndpoint)
		assert.False(t, cfg.OTelEnabled)
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Setenv("MODREWRITE_OTEL_ENABLED", "sometimes")
		_, err := ParseEnv()
		assert.ErrorContains(t, err, "parse env")
	})
}

func TestEnv_Apply(t *testing.T) {
	env := Env{
		Platform:     "windows",
		Rules:        "env.yaml",
		Cache:        "env.db",
		OTelEndpoint: "http://collector:4318",
		OTelEnabled:  true,
	}

	tests := []struct {
		name     string
		opts     options.Program
		expected options.Program
	}{
		{
			name: "environment fills unset options",
			opts: options.Program{},
			expected: options.Program{
				Parameters: options.Parameters{Rules: "env.yaml", Cache: "env.db"},
				Flags:      options.Flags{Platform: "windows"},
			},
		},
		{
			name: "flags win",
			opts: options.Program{
				Parameters: options.Parameters{Rules: "flag.yaml", Cache: "flag.db"},
				Flags:      options.Flags{Platform: "linux"},
			},
			expected: options.Program{
				Parameters: options.Parameters{Rules: "flag.yaml", Cache: "flag.db"},
				Flags:      options.Flags{Platform: "linux"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			env.Apply(&opts)
			assert.Equal(t, tt.expected.Platform, opts.Platform)
			assert.Equal(t, tt.expected.Rules, opts.Rules)
			assert.Equal(t, tt.expected.Cache, opts.Cache)
			assert.True(t, opts.Telemetry.Enabled)
			assert.Equal(t, "http://collector:4318", opts.Telemetry.Endpoint)
		})
	}
}

func TestCreateLogger(t *testing.T) {
	assert.NotNil(t, CreateLogger(true, false))
	assert.NotNil(t, CreateLogger(false, true))
	assert.NotNil(t, CreateLogger(false, false))
}
