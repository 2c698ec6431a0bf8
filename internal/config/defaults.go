package config

import "github.com/ziadkadry99/codesearch/internal/shard"

// embeddingModelDefaults maps each provider to its default model name.
var embeddingModelDefaults = map[ProviderType]string{
	ProviderOpenAI: "text-embedding-3-small",
	ProviderGoogle: "gemini-embedding-001",
	ProviderOllama: "nomic-embed-text",
}

// DefaultModelFor returns the default embedding model for provider, or
// the OpenAI default if provider is unrecognized.
func DefaultModelFor(provider ProviderType) string {
	if model, ok := embeddingModelDefaults[provider]; ok {
		return model
	}
	return embeddingModelDefaults[ProviderOpenAI]
}

// DefaultExcludes are glob patterns excluded from indexing by default.
var DefaultExcludes = []string{
	"vendor/**",
	"node_modules/**",
	".git/**",
	"dist/**",
	"build/**",
	"*.min.js",
	"*.min.css",
	"*.lock",
	"go.sum",
	"package-lock.json",
	"yarn.lock",
}

// DefaultConfig returns a Config with sensible defaults, matching the
// environment-variable defaults named in spec.md §6.
func DefaultConfig() *Config {
	return &Config{
		Collection:   "codebase",
		CodebasePath: ".",
		SnapshotDir:  ".codesearch",

		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    DefaultModelFor(ProviderOpenAI),
		EmbeddingRPM:      3000,

		ShardCount:   16,
		VirtualNodes: shard.DefaultVirtualNodes,

		EmbeddingConcurrency:    4,
		EmbeddingBatchSize:      1024,
		BatchFormationTimeoutMS: 2000,

		DeleteConcurrency:    8,
		DeleteBatchSize:      500,
		DeleteFlushTimeoutMS: 1000,

		BatchOrdering: OrderingWeak,

		Include:           []string{"**"},
		Exclude:           DefaultExcludes,
		EnableGitMetadata: true,
	}
}
