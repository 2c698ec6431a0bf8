package embeddings

import (
	"context"
	"fmt"
)

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}

// StatusError carries the HTTP status code of a failed embedding
// request, so callers like RateLimited can detect a 429 regardless of
// which provider's SDK or hand-rolled HTTP client produced it.
type StatusError struct {
	StatusCode int
	Provider   string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s embed API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}
