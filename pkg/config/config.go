// Package config loads and validates the YAML run configuration: provider
// credentials and the execution options (trials, timeout, parallelism,
// cost budget) consumed by the runner.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tgrover/llmexpect/eval"
	"github.com/tgrover/llmexpect/pkg/provider"
)

// Config holds the top-level framework configuration.
type Config struct {
	Providers      map[string]ProviderConfig `yaml:"providers"`
	Trials         int                       `yaml:"trials"`
	Timeout        time.Duration             `yaml:"timeout"`
	Parallel       bool                      `yaml:"parallel"`
	MaxConcurrency int                       `yaml:"max_concurrency"`
	MaxCost        *float64                  `yaml:"max_cost"`
	OutputDir      string                    `yaml:"output_dir"`
	Retry          RetryConfig               `yaml:"retry"`
}

// ProviderConfig holds configuration for a single LLM provider.
type ProviderConfig struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// RetryConfig holds retry behavior settings for HTTP providers.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
}

// Default returns a Config populated with the documented defaults:
// 1 trial, 60s timeout, parallel execution with at most 5 tasks in
// flight, unlimited spend.
func Default() *Config {
	return &Config{
		Providers:      make(map[string]ProviderConfig),
		Trials:         1,
		Timeout:        60 * time.Second,
		Parallel:       true,
		MaxConcurrency: 5,
		OutputDir:      "results/",
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  1 * time.Second,
		},
	}
}

// Load reads and parses a YAML config file at the given path. Absent keys
// keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault loads config from the given path. If the file does not
// exist, it returns the default configuration. Other errors (e.g. parse
// failures) are still returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// ResolveAPIKey reads the API key for the named provider from the
// environment variable specified in that provider's APIKeyEnv field.
func (c *Config) ResolveAPIKey(providerName string) (string, error) {
	p, ok := c.Providers[providerName]
	if !ok {
		return "", fmt.Errorf("provider %q not found in config", providerName)
	}
	if p.APIKeyEnv == "" {
		return "", fmt.Errorf("provider %q has no api_key_env configured", providerName)
	}
	key := os.Getenv(p.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("environment variable %s for provider %q is not set", p.APIKeyEnv, providerName)
	}
	return key, nil
}

// Validate checks the config for required fields and returns a
// descriptive error if any are missing or invalid.
func (c *Config) Validate() error {
	var errs []error

	if c.Trials < 1 {
		errs = append(errs, fmt.Errorf("trials must be >= 1, got %d", c.Trials))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be > 0, got %s", c.Timeout))
	}
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("max_concurrency must be >= 1, got %d", c.MaxConcurrency))
	}
	if c.MaxCost != nil && *c.MaxCost < 0 {
		errs = append(errs, fmt.Errorf("max_cost must be >= 0, got %v", *c.MaxCost))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries must be >= 0, got %d", c.Retry.MaxRetries))
	}
	if c.Retry.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("retry.base_delay must be >= 0, got %s", c.Retry.BaseDelay))
	}

	for name, p := range c.Providers {
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("provider %q: model is required", name))
		}
		if p.APIKeyEnv == "" {
			errs = append(errs, fmt.Errorf("provider %q: api_key_env is required", name))
		}
	}

	return errors.Join(errs...)
}

// BuildProviders constructs the provider registry from the configured
// entries. Provider names "anthropic" and "openai" map to the built-in
// HTTP backends; any other name is an error.
func (c *Config) BuildProviders() (eval.Providers, error) {
	registry := make(eval.Providers, len(c.Providers))
	for name, pc := range c.Providers {
		key, err := c.ResolveAPIKey(name)
		if err != nil {
			return nil, err
		}
		switch name {
		case "anthropic":
			var opts []provider.AnthropicOption
			if pc.BaseURL != "" {
				opts = append(opts, provider.WithBaseURL(pc.BaseURL))
			}
			opts = append(opts, provider.WithMaxRetries(c.Retry.MaxRetries))
			registry[name] = provider.NewAnthropicProvider(key, opts...)
		case "openai":
			var opts []provider.OpenAIOption
			if pc.BaseURL != "" {
				opts = append(opts, provider.WithOpenAIBaseURL(pc.BaseURL))
			}
			opts = append(opts, provider.WithOpenAIMaxRetries(c.Retry.MaxRetries))
			registry[name] = provider.NewOpenAIProvider(key, opts...)
		default:
			return nil, fmt.Errorf("unknown provider %q in config", name)
		}
	}
	return registry, nil
}
