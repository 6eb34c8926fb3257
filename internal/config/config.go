// Package config handles application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath       string `yaml:"database_path"`
	LogLevel           string `yaml:"log_level"`
	TelegramBotToken   string `yaml:"telegram_bot_token"`
	GeminiModel        string `yaml:"gemini_model"`
	FetchIntervalMin   int    `yaml:"fetch_interval_minutes"`
	ClassifyInterval   int    `yaml:"classify_interval_minutes"`
	RecencyWindowHours int    `yaml:"recency_window_hours"`
	FetchConcurrency   int    `yaml:"fetch_concurrency"`
	HTTPTimeoutSec     int    `yaml:"http_timeout_secs"`
	ExtractContent     bool   `yaml:"extract_content"`
}

// Defaults returns a Config with all default values set.
func Defaults() Config {
	return Config{
		DatabasePath:       "./data/newswatcher.db",
		LogLevel:           "info",
		GeminiModel:        "gemini-2.0-flash-lite",
		FetchIntervalMin:   15,
		ClassifyInterval:   15,
		RecencyWindowHours: 4,
		FetchConcurrency:   5,
		HTTPTimeoutSec:     30,
	}
}

// Load reads the YAML config at path and applies environment overrides.
// A missing file is not an error; defaults are used. NEWSWATCHER_CONFIG
// overrides the file path, NEWSWATCHER_DB the database path, and
// NEWSWATCHER_TELEGRAM_TOKEN the bot token.
func Load(path string) (*Config, error) {
	if envPath := os.Getenv("NEWSWATCHER_CONFIG"); envPath != "" {
		path = envPath
	}

	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// fall through to defaults
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if envDB := os.Getenv("NEWSWATCHER_DB"); envDB != "" {
		cfg.DatabasePath = envDB
	}
	if envToken := os.Getenv("NEWSWATCHER_TELEGRAM_TOKEN"); envToken != "" {
		cfg.TelegramBotToken = envToken
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that interval and limit values are usable.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if c.FetchIntervalMin <= 0 {
		return fmt.Errorf("fetch_interval_minutes must be positive, got %d", c.FetchIntervalMin)
	}
	if c.ClassifyInterval <= 0 {
		return fmt.Errorf("classify_interval_minutes must be positive, got %d", c.ClassifyInterval)
	}
	if c.RecencyWindowHours <= 0 {
		return fmt.Errorf("recency_window_hours must be positive, got %d", c.RecencyWindowHours)
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("fetch_concurrency must be positive, got %d", c.FetchConcurrency)
	}
	if c.HTTPTimeoutSec <= 0 {
		return fmt.Errorf("http_timeout_secs must be positive, got %d", c.HTTPTimeoutSec)
	}
	return nil
}
