package vectordb

import "time"

// DocumentType categorizes the kind of chunk stored in the vector DB.
type DocumentType string

const (
	ChunkTypeFile     DocumentType = "file"
	ChunkTypeFunction DocumentType = "function"
	ChunkTypeClass    DocumentType = "class"
	ChunkTypeModule   DocumentType = "module"
	ChunkTypeDoc      DocumentType = "documentation"
)

// GitMetadata carries the git-derived facts attached to a chunk's
// payload, consumed by the query engine's git filters and rerank
// presets.
type GitMetadata struct {
	DominantAuthor string    `json:"dominant_author,omitempty"`
	LastModifiedAt time.Time `json:"last_modified_at,omitempty"`
	AgeDays        int       `json:"age_days,omitempty"`
	CommitCount    int       `json:"commit_count,omitempty"`
	TaskIDs        []string  `json:"task_ids,omitempty"`
}

// Payload holds every field stored alongside a chunk's vector(s) that
// the query engine can filter, rerank, or project into results.
type Payload struct {
	RelativePath    string       `json:"relative_path"`
	ChunkType       DocumentType `json:"chunk_type"`
	Language        string       `json:"language"`
	FileExtension   string       `json:"file_extension"`
	Symbol          string       `json:"symbol,omitempty"`
	LineStart       int          `json:"line_start"`
	LineEnd         int          `json:"line_end"`
	ContentHash     string       `json:"content_hash"`
	Content         string       `json:"content"`
	IsDocumentation bool         `json:"is_documentation"`
	ImportPaths     []string     `json:"import_paths,omitempty"`
	Git             *GitMetadata `json:"git,omitempty"`
	LastUpdated     time.Time    `json:"last_updated"`
}

// UpsertItem is one point to be written to the vector store: a dense
// embedding, an optional sparse vector for hybrid search, and the
// payload fields the query engine filters and reranks on.
type UpsertItem struct {
	ID      string
	Dense   []float32
	Sparse  map[int]float32 // nil unless the collection is hybrid-enabled
	Payload Payload
}

// SearchResult pairs a stored point with its similarity score.
type SearchResult struct {
	ID         string
	Payload    Payload
	Similarity float32
}
