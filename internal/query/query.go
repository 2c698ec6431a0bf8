// Package query implements the semantic code search query engine: it
// assembles a server-side filter from query options, embeds the query
// text, calls the vector store, and applies client-side glob
// filtering, reranking, and score-threshold truncation.
package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ziadkadry99/codesearch/internal/embeddings"
	"github.com/ziadkadry99/codesearch/internal/vectordb"
)

// ErrNotIndexed is returned when a query targets a collection that has
// not been indexed (or is empty).
var ErrNotIndexed = errors.New("collection is not indexed")

// defaultOverfetchMultiplier is applied to limit to compute fetch_limit
// whenever a path_pattern or non-relevance rerank is requested, since
// both operations can only discard candidates the vector store already
// ranked, never add new ones.
const defaultOverfetchMultiplier = 3

// Options holds every recognized query option.
type Options struct {
	Query string
	Limit int // default 5

	FileTypes         []string
	PathPattern       string
	DocumentationOnly bool
	ScoreThreshold    float32

	Author          string
	ModifiedAfter   *time.Time
	ModifiedBefore  *time.Time
	MinAgeDays      *int
	MaxAgeDays      *int
	MinCommitCount  *int
	TaskID          string

	Rerank       string // "relevance" (default), a named preset, or "custom"
	CustomWeight *Weights

	UseHybrid bool
}

// Engine runs queries against a single vector-store collection.
type Engine struct {
	store    vectordb.VectorStore
	embedder embeddings.Embedder
}

// NewEngine returns an Engine bound to store and embedder.
func NewEngine(store vectordb.VectorStore, embedder embeddings.Embedder) *Engine {
	return &Engine{store: store, embedder: embedder}
}

// CollectionCount returns the number of points currently indexed.
func (e *Engine) CollectionCount() int {
	return e.store.Count()
}

// Search runs opts against the engine's collection and returns results
// ordered by final score.
func (e *Engine) Search(ctx context.Context, opts Options) ([]vectordb.SearchResult, error) {
	if e.store.Count() == 0 {
		return nil, fmt.Errorf("%w", ErrNotIndexed)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	filter := assembleFilter(opts)

	rerankName := opts.Rerank
	if rerankName == "" {
		rerankName = "relevance"
	}

	fetchLimit := limit
	if opts.PathPattern != "" || rerankName != "relevance" {
		fetchLimit = limit * defaultOverfetchMultiplier
	}

	vectors, err := e.embedder.Embed(ctx, []string{opts.Query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}

	results, err := e.store.Search(ctx, vectors[0], fetchLimit, filter)
	if err != nil {
		return nil, fmt.Errorf("vector store search: %w", err)
	}

	if opts.PathPattern != "" {
		results, err = filterByPathPattern(results, opts.PathPattern)
		if err != nil {
			return nil, err
		}
	}

	weights, err := resolveWeights(rerankName, opts.CustomWeight)
	if err != nil {
		return nil, err
	}
	rerank(results, weights)

	if opts.ScoreThreshold > 0 {
		results = filterByScore(results, opts.ScoreThreshold)
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// assembleFilter converts recognized options into a FilterExpr whose
// constraints are all combined under must, per the documented option
// to filter-clause mapping.
func assembleFilter(opts Options) *vectordb.FilterExpr {
	var must []vectordb.Clause

	if len(opts.FileTypes) > 0 {
		anyVals := make([]interface{}, len(opts.FileTypes))
		for i, ft := range opts.FileTypes {
			anyVals[i] = ft
		}
		must = append(must, vectordb.MatchAny("file_extension", anyVals))
	}
	if opts.DocumentationOnly {
		must = append(must, vectordb.MatchField("is_documentation", true))
	}
	if opts.Author != "" {
		must = append(must, vectordb.MatchField("git.dominant_author", opts.Author))
	}
	if opts.TaskID != "" {
		must = append(must, vectordb.MatchAny("git.task_ids", []interface{}{opts.TaskID}))
	}
	if opts.ModifiedAfter != nil || opts.ModifiedBefore != nil {
		must = append(must, vectordb.RangeField("git.last_modified_at", unixFloor(opts.ModifiedAfter), unixFloor(opts.ModifiedBefore)))
	}
	if opts.MinAgeDays != nil || opts.MaxAgeDays != nil {
		must = append(must, vectordb.RangeField("git.age_days", intPtrToFloat(opts.MinAgeDays), intPtrToFloat(opts.MaxAgeDays)))
	}
	if opts.MinCommitCount != nil {
		must = append(must, vectordb.RangeField("git.commit_count", intPtrToFloat(opts.MinCommitCount), nil))
	}

	if len(must) == 0 {
		return nil
	}
	return &vectordb.FilterExpr{Must: must}
}

func unixFloor(t *time.Time) *float64 {
	if t == nil {
		return nil
	}
	v := math.Floor(float64(t.Unix()))
	return &v
}

func intPtrToFloat(i *int) *float64 {
	if i == nil {
		return nil
	}
	v := float64(*i)
	return &v
}

// filterByPathPattern applies opts.PathPattern as a bash-mode glob
// (brace expansion supported by doublestar) against each result's
// relative path.
func filterByPathPattern(results []vectordb.SearchResult, pattern string) ([]vectordb.SearchResult, error) {
	var out []vectordb.SearchResult
	for _, r := range results {
		matched, err := doublestar.Match(pattern, r.Payload.RelativePath)
		if err != nil {
			return nil, fmt.Errorf("invalid path pattern %q: %w", pattern, err)
		}
		if matched {
			out = append(out, r)
		}
	}
	return out, nil
}

func filterByScore(results []vectordb.SearchResult, threshold float32) []vectordb.SearchResult {
	var out []vectordb.SearchResult
	for _, r := range results {
		if r.Similarity >= threshold {
			out = append(out, r)
		}
	}
	return out
}
