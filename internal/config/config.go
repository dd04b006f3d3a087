package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultRequestTimeout      = 15 * time.Second
	DefaultGeneralInterval     = 15 * time.Second
	DefaultChatInterval        = 2 * time.Second
	DefaultOutboxRetryInterval = 5 * time.Second

	minRequestTimeout = time.Second
	maxRequestTimeout = 60 * time.Second
)

// Config represents the global ~/.clinicsync/config.toml.
type Config struct {
	DefaultSession string  `toml:"default_session"`
	Server         Server  `toml:"server"`
	Sync           Sync    `toml:"sync"`
	Metrics        Metrics `toml:"metrics"`
}

// Server describes the remote authority.
type Server struct {
	BaseURL        string   `toml:"base_url"`
	RequestTimeout Duration `toml:"request_timeout"`
}

// Sync holds the reconciliation and outbox cadences.
type Sync struct {
	GeneralInterval     Duration `toml:"general_interval"`
	ChatInterval        Duration `toml:"chat_interval"`
	OutboxRetryInterval Duration `toml:"outbox_retry_interval"`
}

// Metrics configures the Prometheus endpoint. An empty Listen disables it.
type Metrics struct {
	Listen string `toml:"listen"`
}

// Duration is a time.Duration that reads and writes as "15s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server: Server{RequestTimeout: Duration{DefaultRequestTimeout}},
		Sync: Sync{
			GeneralInterval:     Duration{DefaultGeneralInterval},
			ChatInterval:        Duration{DefaultChatInterval},
			OutboxRetryInterval: Duration{DefaultOutboxRetryInterval},
		},
	}
}

// Load reads config from the given path. Returns nil config and error if file missing.
// Unset values are filled with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but treats a missing file as the default config.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate rejects values the sync core cannot run with.
func (c *Config) Validate() error {
	rt := c.Server.RequestTimeout.Duration
	if rt < minRequestTimeout || rt > maxRequestTimeout {
		return fmt.Errorf("server.request_timeout %s out of range [%s, %s]", rt, minRequestTimeout, maxRequestTimeout)
	}
	if c.Sync.ChatInterval.Duration <= 0 || c.Sync.GeneralInterval.Duration <= 0 {
		return fmt.Errorf("sync intervals must be positive")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.RequestTimeout.Duration == 0 {
		c.Server.RequestTimeout.Duration = DefaultRequestTimeout
	}
	if c.Sync.GeneralInterval.Duration == 0 {
		c.Sync.GeneralInterval.Duration = DefaultGeneralInterval
	}
	if c.Sync.ChatInterval.Duration == 0 {
		c.Sync.ChatInterval.Duration = DefaultChatInterval
	}
	if c.Sync.OutboxRetryInterval.Duration == 0 {
		c.Sync.OutboxRetryInterval.Duration = DefaultOutboxRetryInterval
	}
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
