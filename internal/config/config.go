// Package config loads formforge configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all formforge configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error
	Development bool   `yaml:"development"` // console encoder, caller info
}

// ServerConfig configures outward-facing URL construction.
type ServerConfig struct {
	// ShareBaseURL is prefixed onto form share tokens and report URLs when
	// rendering links.
	ShareBaseURL string `yaml:"share_base_url"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "formforge.db"},
		Logging:  LoggingConfig{Level: "info"},
		Server:   ServerConfig{ShareBaseURL: "http://localhost:3000"},
	}
}

// Load reads configuration from path, falling back to defaults when the file
// is absent, then applies FORMFORGE_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FORMFORGE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FORMFORGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FORMFORGE_SHARE_BASE_URL"); v != "" {
		cfg.Server.ShareBaseURL = v
	}
}
