package config

import (
	"time"

	"github.com/hyperjump/codelod/internal/generator"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Provider == "" {
		cfg.Provider = generator.ProviderMock
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"python", "go"}
	}
	if cfg.MaxParallelism == 0 {
		cfg.MaxParallelism = 8
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	for name, env := range map[string]string{
		generator.ProviderAnthropic: "ANTHROPIC_API_KEY",
		generator.ProviderOpenAI:    "OPENAI_API_KEY",
	} {
		p := cfg.Providers[name]
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = env
			cfg.Providers[name] = p
		}
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8484
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
}
