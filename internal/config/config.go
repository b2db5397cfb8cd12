// Package config loads pipewright configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pipewright configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM provider configuration
	LLM LLMConfig `yaml:"llm"`

	// Validation pipeline settings
	Validation ValidationConfig `yaml:"validation"`

	// Run history storage
	Storage StorageConfig `yaml:"storage"`

	// Instruction embedding (few-shot retrieval)
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the code-generating LLM.
type LLMConfig struct {
	Provider    string `yaml:"provider"` // ollama, gemini
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	Timeout     string `yaml:"timeout"`
	MaxAttempts int    `yaml:"max_attempts"` // generate + repair attempts
}

// ValidationConfig configures the validation pipeline.
type ValidationConfig struct {
	RuffBinary            string   `yaml:"ruff_binary"`
	RuffTimeout           string   `yaml:"ruff_timeout"`
	DisableLint           bool     `yaml:"disable_lint"`
	ExtraForbiddenModules []string `yaml:"extra_forbidden_modules"`
}

// StorageConfig configures the SQLite run history.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// EmbeddingConfig configures instruction embeddings for few-shot retrieval.
type EmbeddingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"ollama", "gemini"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "pipewright",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider:    "ollama",
			Model:       "qwen2.5-coder",
			BaseURL:     "http://localhost:11434",
			Timeout:     "120s",
			MaxAttempts: 3,
		},

		Validation: ValidationConfig{
			RuffBinary:  "ruff",
			RuffTimeout: "30s",
		},

		Storage: StorageConfig{
			DatabasePath: filepath.Join(".pipewright", "history.db"),
		},

		Embedding: EmbeddingConfig{
			Enabled: true,
			Model:   "embeddinggemma",
			BaseURL: "http://localhost:11434",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(".pipewright", "config.yaml")
}

// Load loads configuration from a YAML file.
// A missing file is not an error; defaults are returned instead.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
// Environment always wins over the config file.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		c.LLM.BaseURL = url
		c.Embedding.BaseURL = url
	}
	if model := os.Getenv("MODEL"); model != "" {
		c.LLM.Model = model
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if path := os.Getenv("PIPEWRIGHT_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	if c.LLM.Provider == "gemini" && c.LLM.APIKey == "" {
		return fmt.Errorf("gemini provider requires an API key (set GEMINI_API_KEY)")
	}

	if c.LLM.Model == "" {
		return fmt.Errorf("LLM model not configured (set MODEL or llm.model)")
	}

	if c.LLM.MaxAttempts < 1 {
		return fmt.Errorf("llm.max_attempts must be at least 1, got %d", c.LLM.MaxAttempts)
	}

	return nil
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetRuffTimeout returns the ruff lint timeout as a duration.
func (c *Config) GetRuffTimeout() time.Duration {
	d, err := time.ParseDuration(c.Validation.RuffTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
