package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ziadkadry99/codesearch/internal/chunker"
	"github.com/ziadkadry99/codesearch/internal/vectordb"
)

type fakeEmbedder struct{ dims int }

func (f fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
	}
	return out, nil
}
func (f fakeEmbedder) Dimensions() int { return f.dims }
func (f fakeEmbedder) Name() string    { return "fake" }

type fakeStore struct {
	mu    sync.Mutex
	items map[string]vectordb.UpsertItem
}

func newFakeStore() *fakeStore { return &fakeStore{items: make(map[string]vectordb.UpsertItem)} }

func (s *fakeStore) Upsert(ctx context.Context, items []vectordb.UpsertItem, wait bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.items[it.ID] = it
	}
	return nil
}
func (s *fakeStore) Search(ctx context.Context, queryVector []float32, limit int, filter *vectordb.FilterExpr) ([]vectordb.SearchResult, error) {
	return nil, nil
}
func (s *fakeStore) GetByPath(ctx context.Context, relativePath string) ([]vectordb.SearchResult, error) {
	return nil, nil
}
func (s *fakeStore) DeleteByPath(ctx context.Context, relativePath string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, it := range s.items {
		if it.Payload.RelativePath == relativePath {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}
func (s *fakeStore) DeleteByFilter(ctx context.Context, filter *vectordb.FilterExpr) (int, error) {
	return 0, nil
}
func (s *fakeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
func (s *fakeStore) SchemaVersion(ctx context.Context) (int, error)    { return 0, nil }
func (s *fakeStore) SetSchemaVersion(ctx context.Context, v int) error { return nil }
func (s *fakeStore) Persist(ctx context.Context, dir string) error    { return nil }
func (s *fakeStore) Load(ctx context.Context, dir string) error       { return nil }

func TestIndexerRunIndexesAndDeletesFiles(t *testing.T) {
	codebase := t.TempDir()
	snapshotDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(codebase, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cfg := DefaultConfig("testcol", snapshotDir)
	cfg.EnableGitMetadata = false
	cfg.EmbeddingConcurrency = 1

	store := newFakeStore()
	embedder := fakeEmbedder{dims: 4}
	registry := chunker.NewRegistry(nil)

	ix := New(cfg, store, embedder, registry)
	result, err := ix.Run(context.Background(), codebase, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.FilesIndexed != 1 {
		t.Fatalf("expected 1 file indexed, got %d", result.FilesIndexed)
	}
	if store.Count() == 0 {
		t.Fatal("expected points to be upserted into the store")
	}

	// Second run with the file removed should issue a delete.
	if err := os.Remove(filepath.Join(codebase, "main.go")); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	result2, err := ix.Run(context.Background(), codebase, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result2.Deleted != 1 {
		t.Fatalf("expected 1 file deleted, got %d", result2.Deleted)
	}
	if store.Count() != 0 {
		t.Fatalf("expected store to be empty after delete, got %d", store.Count())
	}
}
