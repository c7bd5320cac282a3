package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("AI_CORE_RESOURCE_GROUP", "")
	t.Setenv("AI_CORE_CLIENT_SECRET", "")
	t.Setenv("QUEUE_BACKEND", "")
	t.Setenv("REVIEW_MIN_CONFIDENCE", "")

	cfg := LoadConfig()
	assert.Equal(t, "default", cfg.AICore.ResourceGroup)
	assert.Equal(t, 4000, cfg.AICore.MaxTokens)
	assert.InDelta(t, 0.60, cfg.AICore.MinConfidence, 1e-9)
	assert.Empty(t, cfg.AICore.ClientSecret)
	assert.Equal(t, "memory", cfg.Queue.Backend)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.False(t, cfg.Feedback.Enabled())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("AI_CORE_AUTH_URL", "https://auth.example.test/oauth/token")
	t.Setenv("AI_CORE_DEPLOYMENT_URL", "https://inference.example.test/v2/deployments/d1")
	t.Setenv("AI_CORE_RESOURCE_GROUP", "team-a")
	t.Setenv("AI_CORE_TIMEOUT", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, https://b.test")
	t.Setenv("QDRANT_HOST", "localhost")
	t.Setenv("REVIEW_MIN_CONFIDENCE", "0.75")

	cfg := LoadConfig()
	assert.Equal(t, "team-a", cfg.AICore.ResourceGroup)
	assert.Equal(t, 30*time.Second, cfg.AICore.Timeout)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Feedback.Enabled())
	assert.InDelta(t, 0.75, cfg.AICore.MinConfidence, 1e-9)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("AI_CORE_AUTH_URL", "https://auth.example.test")
	t.Setenv("AI_CORE_DEPLOYMENT_URL", "https://inference.example.test")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("STORAGE_BACKEND", "fs")
	t.Setenv("QUEUE_BACKEND", "memory")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing auth url", mutate: func(c *Config) { c.AICore.AuthURL = "" }, wantErr: true},
		{name: "bad driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: true},
		{name: "minio without endpoint", mutate: func(c *Config) { c.Storage.Backend = "minio" }, wantErr: true},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Storage.Backend = "s3" }, wantErr: true},
		{name: "s3 with bucket", mutate: func(c *Config) { c.Storage.Backend = "s3"; c.Storage.S3Bucket = "docs" }},
		{name: "confidence above one", mutate: func(c *Config) { c.AICore.MinConfidence = 1.5 }, wantErr: true},
		{name: "asynq without redis", mutate: func(c *Config) { c.Queue.Backend = "asynq"; c.Redis.Addr = "" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidInput)
				assert.Equal(t, CodeConfig, ErrorCode(err))
				return
			}
			require.NoError(t, err)
		})
	}
}
