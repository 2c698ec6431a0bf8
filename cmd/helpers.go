package cmd

import (
	"fmt"
	"os"

	"github.com/ziadkadry99/codesearch/internal/config"
	"github.com/ziadkadry99/codesearch/internal/embeddings"
	"github.com/ziadkadry99/codesearch/internal/indexer"
)

// createEmbedderFromConfig creates an embeddings.Embedder based on
// config, wrapped in a rate limiter. Shared by the index, query, and
// mcp-serve commands.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	var base embeddings.Embedder

	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key not found; set OPENAI_API_KEY")
		}
		base = embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.EmbeddingModel))
	case config.ProviderGoogle:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderGoogle))
		if apiKey == "" {
			return nil, fmt.Errorf("Google API key not found; set GOOGLE_API_KEY")
		}
		base = embeddings.NewGoogleEmbedder(apiKey, embeddings.GoogleModel(cfg.EmbeddingModel))
	case config.ProviderOllama:
		base = embeddings.NewOllamaEmbedder(cfg.EmbeddingModel, 768, cfg.OllamaBaseURL)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.EmbeddingProvider)
	}

	rpm := cfg.EmbeddingRPM
	if rpm <= 0 {
		rpm = 3000
	}
	return embeddings.NewRateLimited(base, rpm), nil
}

// indexerConfigFromConfig translates config.Config into an
// indexer.Config, carrying over the environment-driven concurrency
// and batching knobs verbatim.
func indexerConfigFromConfig(cfg *config.Config) indexer.Config {
	return indexer.Config{
		Collection:              cfg.Collection,
		SnapshotDir:             cfg.SnapshotDir,
		ShardCount:              cfg.ShardCount,
		VirtualNodes:            cfg.VirtualNodes,
		EmbeddingConcurrency:    cfg.EmbeddingConcurrency,
		EmbeddingBatchSize:      cfg.EmbeddingBatchSize,
		BatchFormationTimeoutMS: cfg.BatchFormationTimeoutMS,
		DeleteConcurrency:       cfg.DeleteConcurrency,
		DeleteBatchSize:         cfg.DeleteBatchSize,
		DeleteFlushTimeoutMS:    cfg.DeleteFlushTimeoutMS,
		MaxQueueSize:            10000,
		EnableGitMetadata:       cfg.EnableGitMetadata,
		Include:                 cfg.Include,
		Exclude:                 cfg.Exclude,
	}
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `codesearch init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
