// Package config provides configuration loading for the hive server and its vocabulary schemes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Schemes SchemesConfig `yaml:"schemes"`
	Storage StorageConfig `yaml:"storage"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SchemesConfig locates the vocabulary .properties files and selects which to load.
type SchemesConfig struct {
	ConfigDir string   `yaml:"config_dir"`
	Names     []string `yaml:"names"` // empty loads every .properties file in ConfigDir
	FirstTime bool     `yaml:"first_time"`
}

// StorageConfig holds index store and search index locations.
type StorageConfig struct {
	// DatabaseName is the statistics database file inside each scheme's index directory.
	DatabaseName   string `yaml:"database_name"`
	SearchIndexDir string `yaml:"search_index_dir"` // empty keeps term search in memory
	SearchDisabled bool   `yaml:"search_disabled"`
}

// WatchConfig holds scheme reload watch settings.
type WatchConfig struct {
	Enabled    *bool `yaml:"enabled"`
	DebounceMS int   `yaml:"debounce_ms"`
}

// EnabledOrDefault returns whether to watch for scheme changes; defaults to true when unset.
func (w *WatchConfig) EnabledOrDefault() bool {
	if w.Enabled != nil {
		return *w.Enabled
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Schemes.ConfigDir = expandPath(cfg.Schemes.ConfigDir, configDir)
	if cfg.Storage.SearchIndexDir != "" {
		cfg.Storage.SearchIndexDir = expandPath(cfg.Storage.SearchIndexDir, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
