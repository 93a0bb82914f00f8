package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Model represents a single model configuration
type Model struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Provider represents a provider's configuration
type Provider struct {
	APIKey  string  `yaml:"api_key"`
	BaseURL string  `yaml:"base_url,omitempty"`
	Models  []Model `yaml:"models"`
}

// StorageConfig selects and configures the result store backend
type StorageConfig struct {
	Driver string `yaml:"driver"` // memory, bolt or postgres
	Path   string `yaml:"path,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

// PipelineConfig tunes the executor
type PipelineConfig struct {
	StepTimeout   time.Duration `yaml:"step_timeout"`
	ParallelLimit int           `yaml:"parallel_limit"`
	PersonaFile   string        `yaml:"persona_file,omitempty"` // file or directory
}

// RetentionConfig controls the periodic pruning of old runs
type RetentionConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Schedule string        `yaml:"schedule"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// EnvConfig represents the complete environment configuration
type EnvConfig struct {
	Providers    map[string]*Provider `yaml:"providers"`
	DefaultModel string               `yaml:"default_model"`
	Server       *ServerConfig        `yaml:"server,omitempty"`
	Storage      StorageConfig        `yaml:"storage"`
	Pipeline     PipelineConfig       `yaml:"pipeline"`
	Retention    RetentionConfig      `yaml:"retention"`
}

const (
	DefaultModel         = "gpt-4o-mini"
	DefaultStepTimeout   = 120 * time.Second
	DefaultParallelLimit = 4
	DefaultRetention     = "@hourly"
	DefaultRetentionAge  = 30 * 24 * time.Hour
)

// envKeys maps provider names to the environment variables that can supply their API key
var envKeys = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"google":    "GEMINI_API_KEY",
}

// GetEnvPath returns the environment file path from PERSONAFLOW_ENV or the default
func GetEnvPath() string {
	if envPath := os.Getenv("PERSONAFLOW_ENV"); envPath != "" {
		DebugLog("Using environment file from PERSONAFLOW_ENV: %s", envPath)
		return envPath
	}
	DebugLog("Using default environment file: .env")
	return ".env"
}

// NewEnvConfig returns a configuration with every default applied
func NewEnvConfig() *EnvConfig {
	c := &EnvConfig{}
	c.applyDefaults()
	return c
}

// LoadEnvConfig loads the environment configuration from path.
// A missing file yields the defaults so the server can start unconfigured.
func LoadEnvConfig(path string) (*EnvConfig, error) {
	DebugLog("Attempting to load environment configuration from: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			VerboseLog("No environment file at %s, using defaults", path)
			return NewEnvConfig(), nil
		}
		DebugLog("Error reading environment file: %v", err)
		return nil, fmt.Errorf("error reading env file: %w", err)
	}

	var config EnvConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		DebugLog("Error parsing environment file: %v", err)
		return nil, fmt.Errorf("error parsing env file: %w", err)
	}
	config.applyDefaults()

	DebugLog("Successfully loaded environment configuration")
	return &config, nil
}

// SaveEnvConfig saves the environment configuration to path
func SaveEnvConfig(path string, config *EnvConfig) error {
	DebugLog("Attempting to save environment configuration to: %s", path)

	data, err := yaml.Marshal(config)
	if err != nil {
		DebugLog("Error marshaling environment config: %v", err)
		return fmt.Errorf("error marshaling env config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		DebugLog("Error writing environment file: %v", err)
		return fmt.Errorf("error writing env file: %w", err)
	}

	DebugLog("Successfully saved environment configuration")
	return nil
}

func (c *EnvConfig) applyDefaults() {
	if c.Providers == nil {
		c.Providers = make(map[string]*Provider)
	}
	if c.DefaultModel == "" {
		c.DefaultModel = DefaultModel
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Pipeline.StepTimeout <= 0 {
		c.Pipeline.StepTimeout = DefaultStepTimeout
	}
	if c.Pipeline.ParallelLimit <= 0 {
		c.Pipeline.ParallelLimit = DefaultParallelLimit
	}
	if c.Retention.Schedule == "" {
		c.Retention.Schedule = DefaultRetention
	}
	if c.Retention.MaxAge <= 0 {
		c.Retention.MaxAge = DefaultRetentionAge
	}
}

// GetProviderConfig retrieves configuration for a specific provider
func (c *EnvConfig) GetProviderConfig(providerName string) (*Provider, error) {
	provider, exists := c.Providers[providerName]
	if !exists {
		return nil, fmt.Errorf("provider %s not found in configuration", providerName)
	}
	if provider == nil {
		return nil, fmt.Errorf("provider %s configuration is nil", providerName)
	}
	return provider, nil
}

// APIKey returns the key for a provider, preferring the env file over the process environment
func (c *EnvConfig) APIKey(providerName string) string {
	if p, err := c.GetProviderConfig(providerName); err == nil && p.APIKey != "" {
		return p.APIKey
	}
	if name, ok := envKeys[providerName]; ok {
		return os.Getenv(name)
	}
	return ""
}

// BaseURL returns the configured endpoint override for a provider, if any
func (c *EnvConfig) BaseURL(providerName string) string {
	if p, err := c.GetProviderConfig(providerName); err == nil {
		return p.BaseURL
	}
	return ""
}

// AddProvider adds or updates a provider configuration
func (c *EnvConfig) AddProvider(name string, provider Provider) {
	if c.Providers == nil {
		c.Providers = make(map[string]*Provider)
	}
	providerCopy := provider
	c.Providers[name] = &providerCopy
}

// UpdateAPIKey updates the API key for a specific provider
func (c *EnvConfig) UpdateAPIKey(providerName, apiKey string) error {
	provider, exists := c.Providers[providerName]
	if !exists {
		return fmt.Errorf("provider %s not found", providerName)
	}

	provider.APIKey = apiKey
	return nil
}
