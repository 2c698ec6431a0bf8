package config

// ProviderType identifies an embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderGoogle ProviderType = "google"
	ProviderOllama ProviderType = "ollama"
)

// BatchOrdering names the ordering guarantee for vector-store upserts.
// Config.Validate accepts only the values below. The indexer does not
// read this setting: every upsert it issues uses wait=true, whatever
// the value. chromem-go has no distinct ordering modes of its own.
type BatchOrdering string

const (
	OrderingWeak   BatchOrdering = "weak"
	OrderingMedium BatchOrdering = "medium"
	OrderingStrong BatchOrdering = "strong"
)

// Config is the top-level codesearch configuration, corresponding to
// .codesearch.yml plus environment overrides.
type Config struct {
	Collection   string `yaml:"collection" koanf:"collection"`
	CodebasePath string `yaml:"codebase_path" koanf:"codebase_path"`
	SnapshotDir  string `yaml:"snapshot_dir" koanf:"snapshot_dir"`

	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`
	OllamaBaseURL     string       `yaml:"ollama_base_url" koanf:"ollama_base_url"`
	EmbeddingRPM      int          `yaml:"embedding_rpm" koanf:"embedding_rpm"`

	ShardCount   int `yaml:"shard_count" koanf:"shard_count"`
	VirtualNodes int `yaml:"virtual_nodes" koanf:"virtual_nodes"`

	EmbeddingConcurrency    int `yaml:"embedding_concurrency" koanf:"embedding_concurrency"`
	EmbeddingBatchSize      int `yaml:"embedding_batch_size" koanf:"embedding_batch_size"`
	BatchFormationTimeoutMS int `yaml:"batch_formation_timeout_ms" koanf:"batch_formation_timeout_ms"`

	DeleteConcurrency    int `yaml:"qdrant_delete_concurrency" koanf:"qdrant_delete_concurrency"`
	DeleteBatchSize      int `yaml:"qdrant_delete_batch_size" koanf:"qdrant_delete_batch_size"`
	DeleteFlushTimeoutMS int `yaml:"delete_flush_timeout_ms" koanf:"delete_flush_timeout_ms"`

	BatchOrdering BatchOrdering `yaml:"qdrant_batch_ordering" koanf:"qdrant_batch_ordering"`

	Include []string `yaml:"include" koanf:"include"`
	Exclude []string `yaml:"exclude" koanf:"exclude"`

	EnableGitMetadata bool `yaml:"enable_git_metadata" koanf:"enable_git_metadata"`
}
