package vectordb

import "context"

// VectorStore is the backend a collection's points are written to and
// queried from. Implementations may support server-side filtering
// natively or only partially; callers that need the full FilterExpr
// grammar should post-filter with FlattenPayload+FilterExpr.Matches
// when a store's native filtering is incomplete.
type VectorStore interface {
	// Upsert writes items to the collection. When wait is true the
	// call blocks until the write is durable; when false the store
	// may acknowledge before the write is flushed to disk.
	Upsert(ctx context.Context, items []UpsertItem, wait bool) error

	// Search returns the top limit points nearest to queryVector,
	// restricted to those matching filter (nil means unfiltered).
	Search(ctx context.Context, queryVector []float32, limit int, filter *FilterExpr) ([]SearchResult, error)

	// GetByPath returns the points stored for an exact relative path.
	GetByPath(ctx context.Context, relativePath string) ([]SearchResult, error)

	// DeleteByPath removes every point stored for an exact relative
	// path, returning the number removed.
	DeleteByPath(ctx context.Context, relativePath string) (int, error)

	// DeleteByFilter removes every point matching filter, returning
	// the number removed.
	DeleteByFilter(ctx context.Context, filter *FilterExpr) (int, error)

	// Count returns the number of points currently stored.
	Count() int

	// SchemaVersion returns the collection's current schema-index
	// generation, or 0 if none has been recorded.
	SchemaVersion(ctx context.Context) (int, error)

	// SetSchemaVersion records the collection's schema-index
	// generation.
	SetSchemaVersion(ctx context.Context, version int) error

	// Persist saves the store's data to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load restores the store's data from the given directory.
	Load(ctx context.Context, dir string) error
}
