package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"quality too high", func(c *Config) { c.DefaultQuality = 101 }},
		{"bad fallback", func(c *Config) { c.FallbackFormat = "webp" }},
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }},
		{"unknown provider", func(c *Config) { c.Provider.Name = "openai" }},
		{"s3 without bucket", func(c *Config) { c.Storage = StorageS3 }},
		{"badger without dir", func(c *Config) { c.Ledger.Backend = LedgerBadger }},
		{"mongo without uri", func(c *Config) { c.Ledger.Backend = LedgerMongo }},
		{"palette threshold", func(c *Config) { c.Suggest.PaletteThreshold = 1.5 }},
		{"too many suggestions", func(c *Config) { c.Suggest.MaxSuggestions = 10 }},
		{"breaker without failures", func(c *Config) {
			c.Provider.Breaker.Enabled = true
			c.Provider.Breaker.MaxFailures = 0
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(&c)
			assert.Error(t, Validate(c))
		})
	}
}

func TestLoad_Layers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filterengine.yaml")
	yaml := []byte(`
default_quality: 70
provider:
  name: replicate
  timeout: 5s
suggest:
  trending_window: 48h
log:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	t.Setenv("FILTERENGINE_PROVIDER__API_KEY", "secret")
	t.Setenv("FILTERENGINE_QUEUE_SIZE", "32")
	t.Setenv("FILTERENGINE_LOG__LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 70, cfg.DefaultQuality)
	assert.Equal(t, "replicate", cfg.Provider.Name)
	assert.Equal(t, 5*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 48*time.Hour, cfg.Suggest.TrendingWindow)
	assert.Equal(t, "secret", cfg.Provider.APIKey)
	assert.Equal(t, 32, cfg.QueueSize)
	assert.Equal(t, "warn", cfg.Log.Level, "env wins over file")
	// untouched defaults survive
	assert.Equal(t, 6, cfg.Suggest.MaxSuggestions)
	assert.Equal(t, LedgerMemory, cfg.Ledger.Backend)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().QueueSize, cfg.QueueSize)
}

func TestLoad_InvalidFails(t *testing.T) {
	t.Setenv("FILTERENGINE_DEFAULT_QUALITY", "0")
	_, err := Load("")
	assert.Error(t, err)
}
