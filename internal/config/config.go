package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config keeps runtime settings for the dashboard engine.
type Config struct {
	TelegramToken     string        `yaml:"telegram_token"`
	StorageDriver     string        `yaml:"storage_driver"`
	DatabaseURL       string        `yaml:"database_url"`
	RedisAddr         string        `yaml:"redis_addr"`
	StatsMode         string        `yaml:"stats_mode"`
	StatusGranularity string        `yaml:"status_granularity"`
	StatsInterval     time.Duration `yaml:"stats_interval"`
	StatusInterval    time.Duration `yaml:"status_interval"`
	ClockInterval     time.Duration `yaml:"clock_interval"`
	RefreshDelay      time.Duration `yaml:"refresh_delay"`
	DigestTime        string        `yaml:"digest_time"`
	Timezone          string        `yaml:"timezone"`
	Env               string        `yaml:"env"`
}

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"

	StatsSimulated = "simulated"
	StatsDerived   = "derived"

	GranularityMinute = "minute"
	GranularityHour   = "hour"
)

// Default returns the built-in settings.
func Default() Config {
	return Config{
		StorageDriver:     DriverSQLite,
		DatabaseURL:       "eventflow.db",
		RedisAddr:         "localhost:6379",
		StatsMode:         StatsSimulated,
		StatusGranularity: GranularityMinute,
		StatsInterval:     10 * time.Second,
		StatusInterval:    30 * time.Second,
		ClockInterval:     time.Second,
		RefreshDelay:      500 * time.Millisecond,
		DigestTime:        "08:00",
		Timezone:          "Local",
		Env:               "development",
	}
}

// Load reads configuration from an optional .env file, an optional YAML file
// named by CONFIG_FILE, then environment variables. Later sources win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if d := parseInterval(strings.TrimSpace(getenv(key))); d > 0 {
			*dst = d
		}
	}

	str("TELEGRAM_TOKEN", &cfg.TelegramToken)
	str("STORAGE_DRIVER", &cfg.StorageDriver)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("STATS_MODE", &cfg.StatsMode)
	str("STATUS_GRANULARITY", &cfg.StatusGranularity)
	str("TIMEZONE", &cfg.Timezone)
	str("APP_ENV", &cfg.Env)
	str("DIGEST_TIME", &cfg.DigestTime)
	if strings.EqualFold(strings.TrimSpace(getenv("DIGEST_TIME")), "off") {
		cfg.DigestTime = ""
	}
	dur("STATS_INTERVAL", &cfg.StatsInterval)
	dur("STATUS_INTERVAL", &cfg.StatusInterval)
	dur("CLOCK_INTERVAL", &cfg.ClockInterval)
	dur("REFRESH_DELAY", &cfg.RefreshDelay)
}

// Validate rejects unknown enum values and job intervals under one second,
// the resolution of the cron scheduler.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case DriverSQLite, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.StatsMode {
	case StatsSimulated, StatsDerived:
	default:
		return fmt.Errorf("unknown STATS_MODE %q", c.StatsMode)
	}
	switch c.StatusGranularity {
	case GranularityMinute, GranularityHour:
	default:
		return fmt.Errorf("unknown STATUS_GRANULARITY %q", c.StatusGranularity)
	}
	for name, d := range map[string]time.Duration{
		"STATS_INTERVAL":  c.StatsInterval,
		"STATUS_INTERVAL": c.StatusInterval,
		"CLOCK_INTERVAL":  c.ClockInterval,
	} {
		if d < time.Second {
			return fmt.Errorf("%s must be at least 1s, got %s", name, d)
		}
	}
	if c.RefreshDelay < 0 {
		return fmt.Errorf("REFRESH_DELAY must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// parseInterval accepts Go durations ("10s", "1m") and bare seconds ("10").
func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		d, err = time.ParseDuration(raw + "s")
	}
	if err != nil || d <= 0 {
		return 0
	}
	return d
}
