// Package config centralizes runtime configuration for the tsl daemon. It
// loads a JSON configuration file, applies TSL_* environment overrides (a
// .env file in the working directory is honoured) and exposes a process-wide
// configuration with sensible defaults. Development builds run on defaults
// when no file is present.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Duration is a time.Duration read from strings such as "90s" in both JSON
// and the environment.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds configurable options for the tsl daemon.
type Config struct {
	Port               int      `json:"port" env:"TSL_PORT"`
	JournalFile        string   `json:"journal_file" env:"TSL_JOURNAL_FILE"`
	MaxBackups         int      `json:"max_backups" env:"TSL_MAX_BACKUPS"`
	OfferTTL           Duration `json:"offer_ttl" env:"TSL_OFFER_TTL"`
	OfferSweepInterval Duration `json:"offer_sweep_interval" env:"TSL_OFFER_SWEEP_INTERVAL"`
	EventHistory       int      `json:"event_history" env:"TSL_EVENT_HISTORY"`
	LogBufferSize      int      `json:"log_buffer_size" env:"TSL_LOG_BUFFER_SIZE"`
	MaxTxAge           Duration `json:"max_tx_age" env:"TSL_MAX_TX_AGE"`
	ReplayCacheSize    int      `json:"replay_cache_size" env:"TSL_REPLAY_CACHE_SIZE"`
	DocsDir            string   `json:"docs_dir" env:"TSL_DOCS_DIR"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port:               8080,
		JournalFile:        "ledger.db",
		MaxBackups:         20,
		OfferTTL:           0,
		OfferSweepInterval: Duration(time.Minute),
		EventHistory:       1024,
		LogBufferSize:      200,
		MaxTxAge:           Duration(5 * time.Minute),
		ReplayCacheSize:    10000,
		DocsDir:            "docs",
	}
}

var cfg *Config

// LoadConfig reads a JSON file at path, then applies environment overrides.
// A missing or unparsable file yields defaults so the daemon runs in
// development with minimal friction; a malformed environment variable is an
// error.
func LoadConfig(path string) (*Config, error) {
	def := Defaults()
	c := *def

	if path != "" {
		if b, err := os.ReadFile(path); err == nil {
			var fromFile Config
			if err := json.Unmarshal(b, &fromFile); err == nil {
				c = fromFile
			}
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := ParseEnv(&c); err != nil {
		return nil, err
	}

	// merge defaults for any zero-value fields
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.JournalFile == "" {
		c.JournalFile = def.JournalFile
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = def.MaxBackups
	}
	if c.OfferSweepInterval == 0 {
		c.OfferSweepInterval = def.OfferSweepInterval
	}
	if c.EventHistory == 0 {
		c.EventHistory = def.EventHistory
	}
	if c.LogBufferSize == 0 {
		c.LogBufferSize = def.LogBufferSize
	}
	if c.MaxTxAge == 0 {
		c.MaxTxAge = def.MaxTxAge
	}
	if c.ReplayCacheSize == 0 {
		c.ReplayCacheSize = def.ReplayCacheSize
	}
	if c.DocsDir == "" {
		c.DocsDir = def.DocsDir
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	cfg = &c
	return cfg, nil
}

// ParseEnv loads TSL_* environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.OfferTTL < 0 {
		return fmt.Errorf("offer_ttl must not be negative")
	}
	if c.MaxBackups < 0 || c.EventHistory < 0 || c.LogBufferSize < 0 || c.ReplayCacheSize < 0 {
		return fmt.Errorf("sizes must not be negative")
	}
	return nil
}

// Get returns the loaded configuration. If LoadConfig hasn't been called
// yet, it returns defaults.
func Get() *Config {
	if cfg == nil {
		return Defaults()
	}
	return cfg
}
