// Package config loads the knowledge-base tool configuration.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the knowledge-base tool.
type Config struct {
	Ingest    IngestConfig    `yaml:"ingest"`
	Search    SearchConfig    `yaml:"search"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// IngestConfig holds ingestion and chunking configuration.
type IngestConfig struct {
	DocsDir           string   `yaml:"docs_dir"`
	Includes          []string `yaml:"includes"`
	Excludes          []string `yaml:"excludes"`
	ChunkTokens       int      `yaml:"chunk_tokens"`
	OverlapWords      int      `yaml:"overlap_words"`
	RequestIntervalMS int      `yaml:"request_interval_ms"`
}

// SearchConfig holds retrieval configuration.
type SearchConfig struct {
	TopK            int `yaml:"top_k"`
	CacheSize       int `yaml:"cache_size"`
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// EmbeddingConfig holds embedding provider configuration. The API key itself
// is never stored here; APIKeyEnv names the environment variable it is read
// from at startup.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai" or "mock"
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Dimension int    `yaml:"dimension"`
}

// StoreConfig holds document store configuration.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			DocsDir:           "docs",
			Includes:          []string{"**/*.md"},
			Excludes:          []string{"**/node_modules/**", "**/.git/**"},
			ChunkTokens:       600,
			OverlapWords:      100,
			RequestIntervalMS: 350,
		},
		Search: SearchConfig{
			TopK:            5,
			CacheSize:       100,
			CacheTTLSeconds: 300,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
		},
		Store: StoreConfig{
			Path: filepath.Join(".kb", "kb.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for kb.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "kb.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".kb", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
