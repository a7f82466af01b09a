package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Second, cfg.StatsInterval)
	assert.Equal(t, 30*time.Second, cfg.StatusInterval)
	assert.Equal(t, time.Second, cfg.ClockInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.RefreshDelay)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"STORAGE_DRIVER":  "memory",
		"STATS_MODE":      "derived",
		"STATS_INTERVAL":  "5",
		"STATUS_INTERVAL": "1m",
		"REFRESH_DELAY":   "bogus",
		"TELEGRAM_TOKEN":  "  token  ",
	}
	cfg := Default()
	applyEnv(&cfg, func(k string) string { return env[k] })

	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, StatsDerived, cfg.StatsMode)
	assert.Equal(t, 5*time.Second, cfg.StatsInterval)
	assert.Equal(t, time.Minute, cfg.StatusInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.RefreshDelay)
	assert.Equal(t, "token", cfg.TelegramToken)
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"driver", func(c *Config) { c.StorageDriver = "mongo" }},
		{"stats mode", func(c *Config) { c.StatsMode = "random" }},
		{"granularity", func(c *Config) { c.StatusGranularity = "second" }},
		{"interval", func(c *Config) { c.ClockInterval = 0 }},
		{"sub-second clock", func(c *Config) { c.ClockInterval = 500 * time.Millisecond }},
		{"sub-second stats", func(c *Config) { c.StatsInterval = 999 * time.Millisecond }},
		{"timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadReadsYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eventflow.yaml")
	body := "storage_driver: memory\nstats_mode: derived\nstats_interval: 20s\ntimezone: UTC\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Chdir(dir)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("STATS_MODE", "simulated")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, StatsSimulated, cfg.StatsMode)
	assert.Equal(t, 20*time.Second, cfg.StatsInterval)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STATUS_GRANULARITY=hour\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("CONFIG_FILE", "")
	os.Unsetenv("STATUS_GRANULARITY")
	t.Cleanup(func() { os.Unsetenv("STATUS_GRANULARITY") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, GranularityHour, cfg.StatusGranularity)
}

func TestDigestTimeCanBeDisabled(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "08:00", cfg.DigestTime)

	applyEnv(&cfg, func(k string) string {
		if k == "DIGEST_TIME" {
			return "07:30"
		}
		return ""
	})
	assert.Equal(t, "07:30", cfg.DigestTime)

	applyEnv(&cfg, func(k string) string {
		if k == "DIGEST_TIME" {
			return "off"
		}
		return ""
	})
	assert.Empty(t, cfg.DigestTime)
}
