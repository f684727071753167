package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kb/config"
	"kb/internal/adapter/embedding"
	"kb/internal/adapter/store/sqlite"
	"kb/internal/port"
)

// openStore opens the SQLite document store at the configured path, resolved
// relative to the root directory.
func openStore(cfg *config.Config) (*sqlite.Store, error) {
	path := cfg.Store.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(GetRootDir(), path)
	}
	st, err := sqlite.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// newEmbedder builds the configured embedding provider. The API key is read
// from the environment before any document is touched, so a missing key fails
// the whole run up front.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		apiKey := os.Getenv(cfg.Embedding.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("embedding API key not set: export %s or add it to .env", cfg.Embedding.APIKeyEnv)
		}
		return embedding.NewClient(apiKey, cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Dimension)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

// newRateLimitedEmbedder wraps the configured provider with the request
// pacing used for batch ingestion.
func newRateLimitedEmbedder(cfg *config.Config) (port.Embedder, error) {
	inner, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	interval := time.Duration(cfg.Ingest.RequestIntervalMS) * time.Millisecond
	return embedding.NewRateLimited(inner, interval), nil
}
