package vectordb

import (
	"context"
	"math"
	"os"
	"testing"
	"time"
)

// mockEmbedder returns deterministic embeddings based on text content.
// It produces a simple hash-based vector for reproducible tests.
type mockEmbedder struct {
	dims int
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims}
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		results[i] = m.deterministicVector(text)
	}
	return results, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dims }
func (m *mockEmbedder) Name() string    { return "mock" }

// deterministicVector produces a normalized vector from text.
// Similar texts will produce similar vectors because shared characters contribute
// to the same positions in the vector.
func (m *mockEmbedder) deterministicVector(text string) []float32 {
	vec := make([]float32, m.dims)
	for i, ch := range text {
		idx := (int(ch) + i) % m.dims
		vec[idx] += 1.0
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

func itemFor(embedder *mockEmbedder, id, content string, payload Payload) UpsertItem {
	payload.Content = content
	return UpsertItem{
		ID:      id,
		Dense:   embedder.deterministicVector(content),
		Payload: payload,
	}
}

func TestChromemStore_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	embedder := newMockEmbedder(64)

	store, err := NewChromemStore(embedder)
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	items := []UpsertItem{
		itemFor(embedder, "doc1", "The authentication module handles user login and session management", Payload{
			RelativePath: "internal/auth/login.go",
			LineStart:    1,
			LineEnd:      50,
			ContentHash:  "abc123",
			ChunkType:    ChunkTypeFunction,
			Language:     "go",
			Symbol:       "HandleLogin",
			LastUpdated:  time.Now(),
		}),
		itemFor(embedder, "doc2", "Database connection pool configuration and initialization", Payload{
			RelativePath: "internal/db/pool.go",
			LineStart:    1,
			LineEnd:      30,
			ContentHash:  "def456",
			ChunkType:    ChunkTypeFile,
			Language:     "go",
			LastUpdated:  time.Now(),
		}),
		itemFor(embedder, "doc3", "HTTP router setup and middleware chain for the REST API", Payload{
			RelativePath: "internal/api/router.go",
			LineStart:    10,
			LineEnd:      80,
			ContentHash:  "ghi789",
			ChunkType:    ChunkTypeModule,
			Language:     "go",
			Symbol:       "SetupRouter",
			LastUpdated:  time.Now(),
		}),
	}

	if err := store.Upsert(ctx, items, true); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if count := store.Count(); count != 3 {
		t.Errorf("Count: got %d, want 3", count)
	}

	queryVec := embedder.deterministicVector("user authentication login")
	results, err := store.Search(ctx, queryVec, 2, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Search returned no results")
	}
	if len(results) > 2 {
		t.Errorf("Search returned %d results, expected at most 2", len(results))
	}

	for _, r := range results {
		if r.Similarity == 0 {
			t.Error("result has zero similarity")
		}
	}
}

func TestChromemStore_SearchWithFilter(t *testing.T) {
	ctx := context.Background()
	embedder := newMockEmbedder(64)

	store, err := NewChromemStore(embedder)
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	items := []UpsertItem{
		itemFor(embedder, "f1", "Go function that processes data", Payload{
			RelativePath: "main.go",
			ChunkType:    ChunkTypeFunction,
			Language:     "go",
		}),
		itemFor(embedder, "f2", "Python function that processes data", Payload{
			RelativePath: "main.py",
			ChunkType:    ChunkTypeFunction,
			Language:     "python",
		}),
	}

	if err := store.Upsert(ctx, items, true); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	queryVec := embedder.deterministicVector("process data")
	filter := &FilterExpr{Must: []Clause{MatchField("language", "python")}}
	results, err := store.Search(ctx, queryVec, 10, filter)
	if err != nil {
		t.Fatalf("Search with filter: %v", err)
	}

	for _, r := range results {
		if r.Payload.Language != "python" {
			t.Errorf("expected language python, got %s", r.Payload.Language)
		}
	}
}

func TestChromemStore_DeleteByPath(t *testing.T) {
	ctx := context.Background()
	embedder := newMockEmbedder(64)

	store, err := NewChromemStore(embedder)
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	items := []UpsertItem{
		itemFor(embedder, "d1", "first document content", Payload{RelativePath: "file_a.go", ChunkType: ChunkTypeFile, Language: "go"}),
		itemFor(embedder, "d2", "second document content", Payload{RelativePath: "file_b.go", ChunkType: ChunkTypeFile, Language: "go"}),
	}

	if err := store.Upsert(ctx, items, true); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if count := store.Count(); count != 2 {
		t.Fatalf("Count before delete: got %d, want 2", count)
	}

	deleted, err := store.DeleteByPath(ctx, "file_a.go")
	if err != nil {
		t.Fatalf("DeleteByPath: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}

	if count := store.Count(); count != 1 {
		t.Errorf("Count after delete: got %d, want 1", count)
	}
}

func TestChromemStore_DeleteByFilterWithRange(t *testing.T) {
	ctx := context.Background()
	embedder := newMockEmbedder(64)

	store, err := NewChromemStore(embedder)
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	old := float64(10)
	items := []UpsertItem{
		itemFor(embedder, "old1", "ancient code", Payload{RelativePath: "a.go", ChunkType: ChunkTypeFile, Git: &GitMetadata{AgeDays: 400}}),
		itemFor(embedder, "new1", "recent code", Payload{RelativePath: "b.go", ChunkType: ChunkTypeFile, Git: &GitMetadata{AgeDays: 2}}),
	}
	if err := store.Upsert(ctx, items, true); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	filter := &FilterExpr{Must: []Clause{RangeField("git.age_days", &old, nil)}}
	deleted, err := store.DeleteByFilter(ctx, filter)
	if err != nil {
		t.Fatalf("DeleteByFilter: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted by range filter, got %d", deleted)
	}
	if count := store.Count(); count != 1 {
		t.Errorf("expected 1 remaining, got %d", count)
	}
}

func TestChromemStore_SchemaVersionRoundTrip(t *testing.T) {
	ctx := context.Background()
	embedder := newMockEmbedder(64)

	store, err := NewChromemStore(embedder)
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 0 {
		t.Fatalf("expected no schema marker, got version %d", version)
	}

	if err := store.SetSchemaVersion(ctx, CurrentSchemaVersion); err != nil {
		t.Fatalf("SetSchemaVersion: %v", err)
	}

	version, err = store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion after set: %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Fatalf("expected version %d, got %d", CurrentSchemaVersion, version)
	}
}

func TestChromemStore_PersistAndLoad(t *testing.T) {
	ctx := context.Background()
	embedder := newMockEmbedder(64)

	store, err := NewChromemStore(embedder)
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	now := time.Now().Truncate(time.Second)
	items := []UpsertItem{
		itemFor(embedder, "persist1", "persistent document about authentication", Payload{
			RelativePath: "auth.go",
			LineStart:    5,
			LineEnd:      25,
			ContentHash:  "hash1",
			ChunkType:    ChunkTypeFunction,
			Language:     "go",
			Symbol:       "Authenticate",
			LastUpdated:  now,
		}),
		itemFor(embedder, "persist2", "persistent document about database queries", Payload{
			RelativePath: "db.go",
			LineStart:    10,
			LineEnd:      40,
			ContentHash:  "hash2",
			ChunkType:    ChunkTypeFile,
			Language:     "go",
			LastUpdated:  now,
		}),
	}

	if err := store.Upsert(ctx, items, true); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	tmpDir, err := os.MkdirTemp("", "chromem-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := store.Persist(ctx, tmpDir); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	store2, err := NewChromemStore(embedder)
	if err != nil {
		t.Fatalf("NewChromemStore for load: %v", err)
	}

	if err := store2.Load(ctx, tmpDir); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if count := store2.Count(); count != 2 {
		t.Errorf("Count after load: got %d, want 2", count)
	}

	queryVec := embedder.deterministicVector("authentication database")
	results, err := store2.Search(ctx, queryVec, 2, nil)
	if err != nil {
		t.Fatalf("Search after load: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search after load returned %d results, want 2", len(results))
	}

	foundAuth, foundDB := false, false
	for _, r := range results {
		switch r.Payload.RelativePath {
		case "auth.go":
			foundAuth = true
			if r.Payload.ChunkType != ChunkTypeFunction {
				t.Errorf("auth.go: expected type function, got %s", r.Payload.ChunkType)
			}
			if r.Payload.Symbol != "Authenticate" {
				t.Errorf("auth.go: expected symbol Authenticate, got %s", r.Payload.Symbol)
			}
		case "db.go":
			foundDB = true
			if r.Payload.LineStart != 10 {
				t.Errorf("db.go: expected line_start 10, got %d", r.Payload.LineStart)
			}
		}
	}
	if !foundAuth {
		t.Error("auth.go document not found after load")
	}
	if !foundDB {
		t.Error("db.go document not found after load")
	}
}

func TestFormatResults(t *testing.T) {
	results := []SearchResult{
		{
			ID: "r1",
			Payload: Payload{
				RelativePath: "main.go",
				LineStart:    10,
				LineEnd:      20,
				ChunkType:    ChunkTypeFunction,
				Symbol:       "main",
				Language:     "go",
				Content:      "func main() { ... }",
			},
			Similarity: 0.9512,
		},
	}

	output := FormatResults(results)
	if output == "" {
		t.Error("FormatResults returned empty string")
	}
	if !contains(output, "main.go:10-20") {
		t.Errorf("expected file location in output, got: %s", output)
	}
	if !contains(output, "0.9512") {
		t.Errorf("expected similarity score in output, got: %s", output)
	}
}

func TestFormatResults_Empty(t *testing.T) {
	output := FormatResults(nil)
	if output != "No results found." {
		t.Errorf("expected 'No results found.', got: %s", output)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchString(s, substr)
}

func searchString(s, sub string) bool {
	for i := 0; i <= len(s)-len(sub); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
