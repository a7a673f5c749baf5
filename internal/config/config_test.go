package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/stratdesk/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: "https://strategies.example.com/api"
  timeout: 10s

archive:
  enabled: true
  type: s3
  s3:
    bucket: datasets
    secret_key: "${STRATDESK_TEST_SECRET}"
`)
	t.Setenv("STRATDESK_TEST_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://strategies.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "s3", cfg.Archive.Type)
	assert.Equal(t, "datasets", cfg.Archive.S3.Bucket)
	assert.Equal(t, "s3cret", cfg.Archive.S3.SecretKey)
	assert.Equal(t, "warn", cfg.Log.Level, "unset keys keep defaults")
	assert.True(t, cfg.Metrics.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_WithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().API, cfg.API)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STRATDESK_API_BASE_URL", "http://backend:9000")
	t.Setenv("STRATDESK_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000", cfg.API.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.False(t, cfg.Archive.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	valid := func(mod func(*Config)) Config {
		cfg := *Defaults()
		mod(&cfg)
		return cfg
	}

	tests := []struct {
		name string
		cfg  Config
		want *core.Error
	}{
		{"defaults", valid(func(*Config) {}), nil},
		{"missing base url", valid(func(c *Config) { c.API.BaseURL = "" }), core.ErrConfigMissing},
		{"relative base url", valid(func(c *Config) { c.API.BaseURL = "/api" }), core.ErrConfigInvalid},
		{"ftp base url", valid(func(c *Config) { c.API.BaseURL = "ftp://host" }), core.ErrConfigInvalid},
		{"zero timeout", valid(func(c *Config) { c.API.Timeout = 0 }), core.ErrConfigInvalid},
		{"bad log level", valid(func(c *Config) { c.Log.Level = "loud" }), core.ErrConfigInvalid},
		{"archive disabled is not checked", valid(func(c *Config) { c.Archive.Type = "gcs" }), nil},
		{"archive localfs without path", valid(func(c *Config) { c.Archive.Enabled = true }), core.ErrConfigMissing},
		{"archive s3 without bucket", valid(func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.Type = "s3"
		}), core.ErrConfigMissing},
		{"archive unknown type", valid(func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.Type = "gcs"
		}), core.ErrConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
