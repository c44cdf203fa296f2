package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "threatbrief", cfg.Logger.ServiceName)
	assert.Equal(t, ProviderHash, cfg.Embedding.Provider)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.Equal(t, 200, cfg.Pipeline.RecentLimit)
	assert.Equal(t, 8, cfg.Pipeline.TopK)
	assert.InDelta(t, 0.35, cfg.Pipeline.MinConfidence, 1e-9)
	assert.Equal(t, 24*time.Hour, cfg.Feeds.NVD.Window)
	assert.Len(t, cfg.Feeds.RSS.URLs, 3)
	assert.Equal(t, 5, cfg.Report.TopRiskCount)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	t.Parallel()

	v := viper.New()
	SetDefaults(v)
	v.Set("pipeline.top_k", 3)
	v.Set("embedding.provider", ProviderGemini)
	v.Set("embedding.api_key", "test-key")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Pipeline.TopK)
	assert.Equal(t, ProviderGemini, cfg.Embedding.Provider)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero recent limit", func(c *Config) { c.Pipeline.RecentLimit = 0 }},
		{"negative top_k", func(c *Config) { c.Pipeline.TopK = -1 }},
		{"confidence above one", func(c *Config) { c.Pipeline.MinConfidence = 1.5 }},
		{"zero workers", func(c *Config) { c.Pipeline.WorkerConcurrency = 0 }},
		{"zero dimension", func(c *Config) { c.Embedding.Dimension = 0 }},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "quantum" }},
		{"negative notable count", func(c *Config) { c.Report.NotableCount = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
