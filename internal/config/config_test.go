package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.DiscordToken)
	assert.Equal(t, "gavel.db", cfg.DBPath)
	assert.Equal(t, "gavel.bolt", cfg.BoltPath)
	assert.Empty(t, cfg.StaffConfig)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.False(t, cfg.OTelEnabled)
	assert.Equal(t, 30*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 3, cfg.PurgeWorkers)
	assert.Equal(t, 5.0, cfg.PurgeRatePerSecond)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	// t.Setenv restores the previous values; unsetting lets .env fill them
	for _, key := range []string{"DISCORD_TOKEN", "CONFIRM_TIMEOUT"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Setenv("PURGE_WORKERS", "5")

	path := filepath.Join(t.TempDir(), ".env")
	content := "DISCORD_TOKEN=from-file\nPURGE_WORKERS=1\nCONFIRM_TIMEOUT=45s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.DiscordToken)
	assert.Equal(t, 5, cfg.PurgeWorkers, "environment wins over .env")
	assert.Equal(t, 45*time.Second, cfg.ConfirmTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DiscordToken:       "t",
			LogLevel:           "info",
			ConfirmTimeout:     time.Second,
			PurgeWorkers:       1,
			PurgeRatePerSecond: 1,
		}
	}
	require.NoError(t, func() error { c := valid(); return c.Validate() }())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"zero timeout", func(c *Config) { c.ConfirmTimeout = 0 }},
		{"no workers", func(c *Config) { c.PurgeWorkers = 0 }},
		{"no rate", func(c *Config) { c.PurgeRatePerSecond = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
