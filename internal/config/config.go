// Package config loads and saves the per-project configuration in .code-lod/config.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/codelod/internal/generator"
	"github.com/hyperjump/codelod/internal/models"
)

// DirName is the per-project state directory; its presence marks the project root.
const DirName = ".code-lod"

// Config holds all configuration for a project.
type Config struct {
	Debug          bool                          `yaml:"debug"`
	Provider       string                        `yaml:"provider"`
	Languages      []string                      `yaml:"languages"`
	MaxParallelism int                           `yaml:"max_parallelism"`
	AutoUpdate     bool                          `yaml:"auto_update"`
	FailOnStale    bool                          `yaml:"fail_on_stale"`
	ModelSettings  map[string]models.ModelConfig `yaml:"model_settings,omitempty"`
	Providers      map[string]ProviderConfig     `yaml:"providers,omitempty"`
	Server         ServerConfig                  `yaml:"server"`
	Watch          WatchConfig                   `yaml:"watch"`
}

// ProviderConfig holds connection settings for one generator backend.
type ProviderConfig struct {
	BaseURL   string        `yaml:"base_url,omitempty"`
	APIKeyEnv string        `yaml:"api_key_env,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// ResolveModel returns the model configured for scope under the active provider.
func (c *Config) ResolveModel(scope models.Scope) string {
	return c.ModelSettings[c.Provider].ModelForScope(scope)
}

// LanguageEnabled reports whether lang is listed in Languages.
func (c *Config) LanguageEnabled(lang string) bool {
	for _, l := range c.Languages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

// GeneratorConfig builds the backend settings for the active provider. The API key
// is read through getenv from the configured variable.
func (c *Config) GeneratorConfig(getenv func(string) string) generator.Config {
	p := c.Providers[c.Provider]
	cfg := generator.Config{BaseURL: p.BaseURL, Timeout: p.Timeout}
	if p.APIKeyEnv != "" {
		cfg.APIKey = getenv(p.APIKeyEnv)
	}
	return cfg
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	known := false
	for _, p := range generator.Providers {
		if p == c.Provider {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("unknown provider %q (want one of %s)", c.Provider, strings.Join(generator.Providers, ", "))
	}
	if c.MaxParallelism < 1 {
		return fmt.Errorf("max_parallelism must be at least 1, got %d", c.MaxParallelism)
	}
	if len(c.Languages) == 0 {
		return errors.New("languages must not be empty")
	}
	return nil
}

// Load reads and parses the config file at path and applies defaults.
// A missing file yields the default configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Save writes cfg to path, creating the parent directory.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
