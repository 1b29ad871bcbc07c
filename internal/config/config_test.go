package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8084, cfg.HubPort)
	assert.True(t, cfg.Greeting)
	assert.False(t, cfg.Passthrough)
	assert.Equal(t, int64(1048576), cfg.MaxPayload)
	assert.Equal(t, float64(0), cfg.RateLimit)
	assert.Equal(t, 20, cfg.RateBurst)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "sockethub:broadcast", cfg.BridgeChannel)
	assert.False(t, cfg.AuthEnabled())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HUB_PORT", "9001")
	t.Setenv("HUB_GREETING", "false")
	t.Setenv("HUB_PASSTHROUGH", "true")
	t.Setenv("HUB_RATE_LIMIT", "12.5")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("GO_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.HubPort)
	assert.False(t, cfg.Greeting)
	assert.True(t, cfg.Passthrough)
	assert.Equal(t, 12.5, cfg.RateLimit)
	assert.True(t, cfg.AuthEnabled())
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("HUB_PORT", "not-a-number")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("defaults pass", func(t *testing.T) {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg, _ := LoadConfig()
		cfg.HubPort = 70000
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg, _ := LoadConfig()
		cfg.LogLevel = "verbose"
		assert.Error(t, cfg.Validate())
	})

	t.Run("short jwt secret", func(t *testing.T) {
		cfg, _ := LoadConfig()
		cfg.JWTSecret = "short"
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative rate limit", func(t *testing.T) {
		cfg, _ := LoadConfig()
		cfg.RateLimit = -1
		assert.Error(t, cfg.Validate())
	})
}
