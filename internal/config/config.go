package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// coreEnvVars maps the literal environment variable names the core
// recognizes (spec.md §6) onto koanf config keys. These are read
// verbatim, unlike the generic CODESEARCH_ prefix overlay below, since
// callers deploying just the indexing core expect these exact names.
var coreEnvVars = map[string]string{
	"EMBEDDING_CONCURRENCY":      "embedding_concurrency",
	"EMBEDDING_BATCH_SIZE":       "embedding_batch_size",
	"BATCH_FORMATION_TIMEOUT_MS": "batch_formation_timeout_ms",
	"QDRANT_DELETE_CONCURRENCY":  "qdrant_delete_concurrency",
	"QDRANT_DELETE_BATCH_SIZE":   "qdrant_delete_batch_size",
	"DELETE_FLUSH_TIMEOUT_MS":    "delete_flush_timeout_ms",
	"QDRANT_BATCH_ORDERING":      "qdrant_batch_ordering",
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides: first the generic CODESEARCH_*
// prefix (CODESEARCH_COLLECTION -> collection, etc.), then the literal
// core environment variables named in spec.md §6, which take highest
// precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider("CODESEARCH_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "CODESEARCH_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	// Walk the raw environment directly rather than through env.Provider's
	// key-mapping callback: these variable names carry no common prefix
	// to filter on, so building an explicit map keeps unrecognized
	// variables from ever reaching koanf.
	coreOverrides := map[string]interface{}{}
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if key, ok := coreEnvVars[parts[0]]; ok {
			coreOverrides[key] = parts[1]
		}
	}
	if len(coreOverrides) > 0 {
		if err := k.Load(confmap.Provider(coreOverrides, "."), nil); err != nil {
			return nil, fmt.Errorf("loading core env overrides: %w", err)
		}
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized embedding provider values.
var validProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderGoogle: true,
	ProviderOllama: true,
}

// validOrderings is the set of recognized batch ordering values.
var validOrderings = map[BatchOrdering]bool{
	OrderingWeak:   true,
	OrderingMedium: true,
	OrderingStrong: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Collection == "" {
		return fmt.Errorf("collection is required")
	}

	if c.EmbeddingProvider == "" {
		return fmt.Errorf("embedding_provider is required")
	}
	if !validProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q: must be one of openai, google, ollama", c.EmbeddingProvider)
	}

	if c.EmbeddingModel == "" {
		return fmt.Errorf("embedding_model is required")
	}

	if c.SnapshotDir == "" {
		return fmt.Errorf("snapshot_dir is required")
	}

	if c.ShardCount <= 0 {
		return fmt.Errorf("shard_count must be positive")
	}
	if c.VirtualNodes <= 0 {
		return fmt.Errorf("virtual_nodes must be positive")
	}

	if c.EmbeddingConcurrency <= 0 {
		return fmt.Errorf("embedding_concurrency must be positive")
	}
	if c.EmbeddingBatchSize < 0 {
		return fmt.Errorf("embedding_batch_size must be non-negative")
	}
	if c.BatchFormationTimeoutMS < 0 {
		return fmt.Errorf("batch_formation_timeout_ms must be non-negative")
	}

	if c.DeleteConcurrency <= 0 {
		return fmt.Errorf("qdrant_delete_concurrency must be positive")
	}
	if c.DeleteBatchSize <= 0 {
		return fmt.Errorf("qdrant_delete_batch_size must be positive")
	}
	if c.DeleteFlushTimeoutMS < 0 {
		return fmt.Errorf("delete_flush_timeout_ms must be non-negative")
	}

	if c.BatchOrdering != "" && !validOrderings[c.BatchOrdering] {
		return fmt.Errorf("invalid qdrant_batch_ordering %q: must be one of weak, medium, strong", c.BatchOrdering)
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given embedding provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}
