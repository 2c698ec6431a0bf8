package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ziadkadry99/codesearch/internal/vectordb"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{1, 0, 0}}, nil
}
func (stubEmbedder) Dimensions() int { return 3 }
func (stubEmbedder) Name() string    { return "stub" }

type stubStore struct {
	results       []vectordb.SearchResult
	count         int
	lastFilter    *vectordb.FilterExpr
	lastFetchSize int
}

func (s *stubStore) Upsert(ctx context.Context, items []vectordb.UpsertItem, wait bool) error {
	return nil
}
func (s *stubStore) Search(ctx context.Context, queryVector []float32, limit int, filter *vectordb.FilterExpr) ([]vectordb.SearchResult, error) {
	s.lastFilter = filter
	s.lastFetchSize = limit
	out := s.results
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
func (s *stubStore) GetByPath(ctx context.Context, relativePath string) ([]vectordb.SearchResult, error) {
	return nil, nil
}
func (s *stubStore) DeleteByPath(ctx context.Context, relativePath string) (int, error) {
	return 0, nil
}
func (s *stubStore) DeleteByFilter(ctx context.Context, filter *vectordb.FilterExpr) (int, error) {
	return 0, nil
}
func (s *stubStore) Count() int                                       { return s.count }
func (s *stubStore) SchemaVersion(ctx context.Context) (int, error)   { return vectordb.CurrentSchemaVersion, nil }
func (s *stubStore) SetSchemaVersion(ctx context.Context, v int) error { return nil }
func (s *stubStore) Persist(ctx context.Context, dir string) error    { return nil }
func (s *stubStore) Load(ctx context.Context, dir string) error       { return nil }

func TestSearchReturnsNotIndexedWhenEmpty(t *testing.T) {
	store := &stubStore{count: 0}
	e := NewEngine(store, stubEmbedder{})

	_, err := e.Search(context.Background(), Options{Query: "anything"})
	if !errors.Is(err, ErrNotIndexed) {
		t.Fatalf("expected ErrNotIndexed, got %v", err)
	}
}

func TestSearchAppliesDefaultLimit(t *testing.T) {
	var results []vectordb.SearchResult
	for i := 0; i < 10; i++ {
		results = append(results, vectordb.SearchResult{ID: string(rune('a' + i)), Similarity: float32(10 - i)})
	}
	store := &stubStore{count: 10, results: results}
	e := NewEngine(store, stubEmbedder{})

	got, err := e.Search(context.Background(), Options{Query: "x"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected default limit of 5, got %d", len(got))
	}
}

func TestSearchAssemblesFilterFromOptions(t *testing.T) {
	store := &stubStore{count: 1, results: []vectordb.SearchResult{{ID: "a", Similarity: 1}}}
	e := NewEngine(store, stubEmbedder{})

	minAge := 5
	_, err := e.Search(context.Background(), Options{
		Query:             "x",
		FileTypes:         []string{".go", ".ts"},
		DocumentationOnly: true,
		Author:            "ada",
		MinAgeDays:        &minAge,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if store.lastFilter == nil {
		t.Fatal("expected a filter to be assembled")
	}
	if len(store.lastFilter.Must) != 4 {
		t.Fatalf("expected 4 must clauses, got %d", len(store.lastFilter.Must))
	}
}

func TestSearchOverfetchesWhenPathPatternSet(t *testing.T) {
	var results []vectordb.SearchResult
	for i := 0; i < 10; i++ {
		path := "src/a.go"
		if i%2 == 0 {
			path = "src/b.go"
		}
		results = append(results, vectordb.SearchResult{ID: string(rune('a' + i)), Similarity: float32(10 - i), Payload: vectordb.Payload{RelativePath: path}})
	}
	store := &stubStore{count: 10, results: results}
	e := NewEngine(store, stubEmbedder{})

	got, err := e.Search(context.Background(), Options{Query: "x", Limit: 3, PathPattern: "src/a.go"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if store.lastFetchSize != 9 {
		t.Fatalf("expected overfetch of limit*3=9, got %d", store.lastFetchSize)
	}
	for _, r := range got {
		if r.Payload.RelativePath != "src/a.go" {
			t.Errorf("expected only src/a.go results, got %s", r.Payload.RelativePath)
		}
	}
}

func TestSearchScoreThresholdTruncates(t *testing.T) {
	results := []vectordb.SearchResult{
		{ID: "a", Similarity: 0.9},
		{ID: "b", Similarity: 0.1},
	}
	store := &stubStore{count: 2, results: results}
	e := NewEngine(store, stubEmbedder{})

	got, err := e.Search(context.Background(), Options{Query: "x", ScoreThreshold: 0.5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected only result a above threshold, got %+v", got)
	}
}

func TestRerankRecentPrefersNewerFiles(t *testing.T) {
	now := time.Now()
	results := []vectordb.SearchResult{
		{ID: "old", Similarity: 0.8, Payload: vectordb.Payload{Git: &vectordb.GitMetadata{AgeDays: 400, LastModifiedAt: now}}},
		{ID: "new", Similarity: 0.79, Payload: vectordb.Payload{Git: &vectordb.GitMetadata{AgeDays: 1, LastModifiedAt: now}}},
	}
	store := &stubStore{count: 2, results: results}
	e := NewEngine(store, stubEmbedder{})

	got, err := e.Search(context.Background(), Options{Query: "x", Rerank: "recent"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got[0].ID != "new" {
		t.Fatalf("expected the newer file ranked first under the recent preset, got %s", got[0].ID)
	}
}
