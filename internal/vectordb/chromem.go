package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/codesearch/internal/embeddings"
)

const collectionName = "codebase"

// ChromemStore implements VectorStore using chromem-go. chromem-go's
// where clauses only support flat string equality, so Search and
// DeleteByFilter push the equality-shaped part of a FilterExpr down to
// chromem and post-filter the rest (ranges, must_not, should) against
// the full Payload client-side.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	embedFunc  chromem.EmbeddingFunc
}

// NewChromemStore creates a new in-memory ChromemStore.
func NewChromemStore(embedder embeddings.Embedder) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{
		db:         db,
		collection: col,
		embedder:   embedder,
		embedFunc:  ef,
	}, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, items []UpsertItem, wait bool) error {
	if len(items) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(items))
	for i, item := range items {
		docs[i] = chromem.Document{
			ID:        item.ID,
			Content:   item.Payload.Content,
			Embedding: item.Dense,
			Metadata:  payloadToMap(item.Payload),
		}
	}

	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("chromem add documents: %w", err)
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, queryVector []float32, limit int, filter *FilterExpr) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	where := buildWhereClause(filter)

	// Overfetch beyond limit so client-side filtering of clauses
	// chromem can't express natively (ranges, must_not, should) still
	// leaves enough candidates to fill limit.
	fetch := limit * 4
	if fetch > count {
		fetch = count
	}

	results, err := s.collection.QueryEmbedding(ctx, queryVector, fetch, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]SearchResult, 0, limit)
	for _, r := range results {
		payload := mapToPayload(r.Metadata)
		payload.Content = r.Content
		if !filter.Matches(FlattenPayload(payload)) {
			continue
		}
		out = append(out, SearchResult{
			ID:         r.ID,
			Payload:    payload,
			Similarity: r.Similarity,
		})
		if len(out) >= limit {
			break
		}
	}

	return out, nil
}

func (s *ChromemStore) GetByPath(ctx context.Context, relativePath string) ([]SearchResult, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	where := map[string]string{"relative_path": relativePath}

	results, err := s.collection.Query(ctx, relativePath, count, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query by path: %w", err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		payload := mapToPayload(r.Metadata)
		payload.Content = r.Content
		out[i] = SearchResult{ID: r.ID, Payload: payload, Similarity: r.Similarity}
	}
	return out, nil
}

func (s *ChromemStore) DeleteByPath(ctx context.Context, relativePath string) (int, error) {
	before := s.collection.Count()
	where := map[string]string{"relative_path": relativePath}
	if err := s.collection.Delete(ctx, where, nil); err != nil {
		return 0, fmt.Errorf("chromem delete by path: %w", err)
	}
	return before - s.collection.Count(), nil
}

// DeleteByFilter removes points matching filter. Since chromem can
// only delete by a flat equality where clause, a filter that needs
// range or must_not semantics is evaluated by first searching for
// candidates matching the pushed-down equality clauses, then deleting
// the matched IDs individually.
func (s *ChromemStore) DeleteByFilter(ctx context.Context, filter *FilterExpr) (int, error) {
	count := s.collection.Count()
	if count == 0 {
		return 0, nil
	}

	where := buildWhereClause(filter)
	results, err := s.collection.Query(ctx, "", count, where, nil)
	if err != nil {
		return 0, fmt.Errorf("chromem query for delete: %w", err)
	}

	var ids []string
	for _, r := range results {
		payload := mapToPayload(r.Metadata)
		if filter.Matches(FlattenPayload(payload)) {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return 0, fmt.Errorf("chromem delete by ids: %w", err)
	}
	return len(ids), nil
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

// SchemaVersion reads the collection's schema marker, stored as a
// reserved point since chromem has no native collection-metadata
// concept. Returns 0 if no marker has been written yet.
func (s *ChromemStore) SchemaVersion(ctx context.Context) (int, error) {
	doc, err := s.collection.GetByID(ctx, schemaDocID)
	if err != nil {
		return 0, nil
	}
	version, err := strconv.Atoi(doc.Metadata["version"])
	if err != nil {
		return 0, fmt.Errorf("parse schema version: %w", err)
	}
	return version, nil
}

func (s *ChromemStore) SetSchemaVersion(ctx context.Context, version int) error {
	doc := chromem.Document{
		ID:        schemaDocID,
		Embedding: make([]float32, s.embedder.Dimensions()),
		Metadata:  map[string]string{"version": strconv.Itoa(version)},
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("write schema marker: %w", err)
	}
	return nil
}

func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	return s.db.ExportToFile(dir+"/chromem.gob.gz", true, "")
}

func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	err := s.db.ImportFromFile(dir+"/chromem.gob.gz", "")
	if err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

// payloadToMap converts a Payload to a flat map[string]string for
// chromem, which only stores string-valued metadata.
func payloadToMap(p Payload) map[string]string {
	md := map[string]string{
		"relative_path":    p.RelativePath,
		"chunk_type":       string(p.ChunkType),
		"language":         p.Language,
		"file_extension":   p.FileExtension,
		"symbol":           p.Symbol,
		"line_start":       strconv.Itoa(p.LineStart),
		"line_end":         strconv.Itoa(p.LineEnd),
		"content_hash":     p.ContentHash,
		"is_documentation": strconv.FormatBool(p.IsDocumentation),
		"last_updated":     p.LastUpdated.Format(time.RFC3339),
	}
	if len(p.ImportPaths) > 0 {
		if raw, err := json.Marshal(p.ImportPaths); err == nil {
			md["import_paths"] = string(raw)
		}
	}
	if p.Git != nil {
		if raw, err := json.Marshal(p.Git); err == nil {
			md["git"] = string(raw)
		}
	}
	return md
}

// mapToPayload converts a chromem metadata map back to a Payload.
func mapToPayload(m map[string]string) Payload {
	lineStart, _ := strconv.Atoi(m["line_start"])
	lineEnd, _ := strconv.Atoi(m["line_end"])
	isDocs, _ := strconv.ParseBool(m["is_documentation"])
	lastUpdated, _ := time.Parse(time.RFC3339, m["last_updated"])

	p := Payload{
		RelativePath:    m["relative_path"],
		ChunkType:       DocumentType(m["chunk_type"]),
		Language:        m["language"],
		FileExtension:   m["file_extension"],
		Symbol:          m["symbol"],
		LineStart:       lineStart,
		LineEnd:         lineEnd,
		ContentHash:     m["content_hash"],
		IsDocumentation: isDocs,
		LastUpdated:     lastUpdated,
	}
	if raw, ok := m["import_paths"]; ok {
		_ = json.Unmarshal([]byte(raw), &p.ImportPaths)
	}
	if raw, ok := m["git"]; ok {
		var git GitMetadata
		if json.Unmarshal([]byte(raw), &git) == nil {
			p.Git = &git
		}
	}
	return p
}

// buildWhereClause pushes the equality-shaped must clauses of filter
// down into a chromem where map. Range, must_not, and should clauses
// cannot be expressed this way and are left for the caller to
// post-filter with FilterExpr.Matches.
func buildWhereClause(filter *FilterExpr) map[string]string {
	if filter == nil {
		return nil
	}

	where := make(map[string]string)
	for _, c := range filter.Must {
		if c.Match == nil || len(c.Match.Any) > 0 {
			continue
		}
		if s, ok := c.Match.Value.(string); ok {
			where[c.Field] = s
		}
	}

	if len(where) == 0 {
		return nil
	}
	return where
}
