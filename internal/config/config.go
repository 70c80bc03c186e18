// Package config resolves the data directory and optional storytree.yml
// settings.
//
// Data directory precedence:
//  1. STORYTREE_DATA_DIR environment variable (CI and explicit override)
//  2. <root>/.storytree/data when it exists (convention for consuming repos)
//  3. <root>/.claude/data (legacy layout)
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnvDataDir is the environment variable that overrides data dir discovery.
const EnvDataDir = "STORYTREE_DATA_DIR"

// DBFileName is the SQLite database file inside the data directory.
const DBFileName = "story-tree.db"

// ConfigFileName is the optional settings file looked up next to the data
// directory's root.
const ConfigFileName = "storytree.yml"

// Config represents the top-level storytree.yml configuration. Every field
// is optional; zero values fall back to built-in defaults.
type Config struct {
	Version    string `yaml:"version,omitempty"`
	DataDir    string `yaml:"data_dir,omitempty"`
	PolicyPath string `yaml:"policy,omitempty"`
	BatchLimit int    `yaml:"batch_limit,omitempty"`
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	if c.Version != "" && c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}
	if c.BatchLimit < 0 {
		return fmt.Errorf("batch_limit must be >= 0 (0 = unlimited), got %d", c.BatchLimit)
	}
	return nil
}

// Load reads and validates storytree.yml from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOptional loads root/storytree.yml when present. A missing file is not
// an error; the zero Config is returned.
func LoadOptional(root string) (*Config, error) {
	path := filepath.Join(root, ConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Config{}, nil
	}
	return Load(path)
}

// ResolveDataDir resolves the data directory under root, honoring the
// environment override and the config file before falling back to discovery.
func (c *Config) ResolveDataDir(root string) string {
	if env := os.Getenv(EnvDataDir); env != "" {
		return env
	}
	if c.DataDir != "" {
		if filepath.IsAbs(c.DataDir) {
			return c.DataDir
		}
		return filepath.Join(root, c.DataDir)
	}
	standard := filepath.Join(root, ".storytree", "data")
	if info, err := os.Stat(standard); err == nil && info.IsDir() {
		return standard
	}
	return filepath.Join(root, ".claude", "data")
}

// DBPath returns the path to the story-tree.db database.
func (c *Config) DBPath(root string) string {
	return filepath.Join(c.ResolveDataDir(root), DBFileName)
}
