// Package config loads sitefocus settings: defaults, then the YAML file, then
// .env and SITEFOCUS_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/site_focus/internal/infra"
)

// EnvPrefix namespaces environment overrides.
const EnvPrefix = "SITEFOCUS_"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Focus   FocusConfig   `yaml:"focus"`
	Notify  NotifyConfig  `yaml:"notify"`

	// Path is the file the config was read from, empty if none.
	Path string `yaml:"-"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

type StorageConfig struct {
	Driver  string `yaml:"driver" validate:"oneof=sqlcipher file memory"`
	DataDir string `yaml:"data_dir" validate:"required"`
}

type LogConfig struct {
	Path       string `yaml:"path" validate:"required"`
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=1"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
}

type FocusConfig struct {
	DefaultMinutes int           `yaml:"default_minutes" validate:"gt=0,lte=1440"`
	Durations      []int         `yaml:"durations" validate:"min=1,dive,gt=0,lte=1440"`
	TickInterval   time.Duration `yaml:"tick_interval" validate:"gte=100ms"`
}

type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Icon    string `yaml:"icon"`
}

// Default returns the built-in configuration for the given paths.
func Default(paths *infra.Paths) *Config {
	return &Config{
		Server: ServerConfig{Addr: "127.0.0.1:7717"},
		Storage: StorageConfig{
			Driver:  infra.DriverSQLCipher,
			DataDir: paths.DataDir,
		},
		Log: LogConfig{
			Path:       paths.LogPath,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Focus: FocusConfig{
			DefaultMinutes: 25,
			Durations:      []int{15, 25, 30, 45, 60, 90},
			TickInterval:   time.Second,
		},
		Notify: NotifyConfig{Enabled: true},
	}
}

// Load builds the configuration. An empty path means the default location,
// which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	paths := infra.DefaultPaths()
	cfg := Default(paths)

	explicit := path != ""
	if !explicit {
		path = paths.ConfigPath
	}
	path = infra.ExpandHome(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		cfg.Path = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// .env files never override variables already set in the environment.
	_ = godotenv.Load(paths.EnvPath)
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Storage.DataDir = infra.ExpandHome(cfg.Storage.DataDir)
	cfg.Log.Path = infra.ExpandHome(cfg.Log.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Server.Addr = getEnv("ADDR", c.Server.Addr)
	c.Storage.Driver = getEnv("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.DataDir = getEnv("DATA_DIR", c.Storage.DataDir)
	c.Log.Path = getEnv("LOG_PATH", c.Log.Path)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Notify.Icon = getEnv("NOTIFY_ICON", c.Notify.Icon)

	var err error
	if c.Focus.DefaultMinutes, err = getEnvAsInt("DEFAULT_MINUTES", c.Focus.DefaultMinutes); err != nil {
		return err
	}
	if c.Focus.TickInterval, err = getEnvAsDuration("TICK_INTERVAL", c.Focus.TickInterval); err != nil {
		return err
	}
	if c.Notify.Enabled, err = getEnvAsBool("NOTIFY_ENABLED", c.Notify.Enabled); err != nil {
		return err
	}
	if raw, ok := os.LookupEnv(EnvPrefix + "DURATIONS"); ok {
		durations, err := parseInts(raw)
		if err != nil {
			return fmt.Errorf("invalid %sDURATIONS: %w", EnvPrefix, err)
		}
		c.Focus.Durations = durations
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(EnvPrefix + key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	raw, exists := os.LookupEnv(EnvPrefix + key)
	if !exists {
		return fallback, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	raw, exists := os.LookupEnv(EnvPrefix + key)
	if !exists {
		return fallback, nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
	}
	return value, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, exists := os.LookupEnv(EnvPrefix + key)
	if !exists {
		return fallback, nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
	}
	return value, nil
}

func parseInts(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
