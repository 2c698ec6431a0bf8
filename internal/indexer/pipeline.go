package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ziadkadry99/codesearch/internal/changedetect"
	"github.com/ziadkadry99/codesearch/internal/checkpoint"
	"github.com/ziadkadry99/codesearch/internal/chunker"
	"github.com/ziadkadry99/codesearch/internal/embeddings"
	"github.com/ziadkadry99/codesearch/internal/gitmeta"
	"github.com/ziadkadry99/codesearch/internal/pipeline"
	"github.com/ziadkadry99/codesearch/internal/shard"
	"github.com/ziadkadry99/codesearch/internal/snapshot"
	"github.com/ziadkadry99/codesearch/internal/vectordb"
	"github.com/ziadkadry99/codesearch/internal/walker"
)

// Config parameterizes an Indexer, mirroring the environment variables
// the core recognizes (EMBEDDING_CONCURRENCY, EMBEDDING_BATCH_SIZE,
// BATCH_FORMATION_TIMEOUT_MS, QDRANT_DELETE_CONCURRENCY,
// QDRANT_DELETE_BATCH_SIZE, DELETE_FLUSH_TIMEOUT_MS).
type Config struct {
	Collection   string
	SnapshotDir  string
	ShardCount   int
	VirtualNodes int

	EmbeddingConcurrency    int
	EmbeddingBatchSize      int
	BatchFormationTimeoutMS int

	DeleteConcurrency    int
	DeleteBatchSize      int
	DeleteFlushTimeoutMS int

	MaxQueueSize int

	// EnableGitMetadata attaches gitmeta.Info to every chunk; the
	// codebase path must be a git repository for this to produce data.
	EnableGitMetadata bool

	Include []string
	Exclude []string
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig(collection, snapshotDir string) Config {
	return Config{
		Collection:              collection,
		SnapshotDir:             snapshotDir,
		ShardCount:              16,
		VirtualNodes:            shard.DefaultVirtualNodes,
		EmbeddingConcurrency:    4,
		EmbeddingBatchSize:      1024,
		BatchFormationTimeoutMS: 2000,
		DeleteConcurrency:       8,
		DeleteBatchSize:         500,
		DeleteFlushTimeoutMS:    1000,
		MaxQueueSize:            10000,
		EnableGitMetadata:       true,
	}
}

// Indexer runs full or incremental index passes over a codebase.
type Indexer struct {
	cfg      Config
	store    vectordb.VectorStore
	embedder embeddings.Embedder
	registry *chunker.Registry

	router   *shard.Router
	snapMgr  *snapshot.Manager
	detector *changedetect.Detector
	cp       *checkpoint.Store
}

// New builds an Indexer wired to store and embedder.
func New(cfg Config, store vectordb.VectorStore, embedder embeddings.Embedder, registry *chunker.Registry) *Indexer {
	router := shard.NewRouter(cfg.ShardCount, cfg.VirtualNodes)
	snapMgr := snapshot.NewManager(cfg.SnapshotDir, cfg.Collection, cfg.ShardCount, cfg.VirtualNodes)
	return &Indexer{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		registry: registry,
		router:   router,
		snapMgr:  snapMgr,
		cp:       checkpoint.NewStore(cfg.SnapshotDir, cfg.Collection),
	}
}

// SnapshotManager returns the snapshot manager backing this indexer,
// for callers (status reporting, MCP tools) that need to inspect
// snapshot existence without re-deriving one from Config.
func (ix *Indexer) SnapshotManager() *snapshot.Manager { return ix.snapMgr }

// CheckpointStore returns the checkpoint store backing this indexer.
func (ix *Indexer) CheckpointStore() *checkpoint.Store { return ix.cp }

// Run performs one index pass over codebasePath: walk, diff against
// the last snapshot, chunk and embed changed files, delete points for
// removed files, and publish a new snapshot. A checkpoint is saved
// every 50 processed files and deleted once the run completes.
func (ix *Indexer) Run(ctx context.Context, codebasePath string, progress ProgressFunc) (RunResult, error) {
	ix.detector = changedetect.NewDetector(ix.snapMgr, ix.router, codebasePath)
	if _, err := ix.detector.Initialize(); err != nil {
		return RunResult{Status: StatusFailed}, fmt.Errorf("initialize change detector: %w", err)
	}

	files, err := walker.Walk(walker.WalkerConfig{RootDir: codebasePath, Include: ix.cfg.Include, Exclude: ix.cfg.Exclude})
	if err != nil {
		return RunResult{Status: StatusFailed}, fmt.Errorf("walk codebase: %w", err)
	}
	byRelPath := make(map[string]walker.FileInfo, len(files))
	absPaths := make([]string, 0, len(files))
	for _, f := range files {
		byRelPath[filepath.ToSlash(f.RelPath)] = f
		absPaths = append(absPaths, f.Path)
	}
	report(progress, ProgressEvent{Phase: "scanning", FilesProcessed: len(files), FilesTotal: len(files)})

	changes, err := ix.detector.DetectChanges(absPaths)
	if err != nil {
		return RunResult{Status: StatusFailed}, fmt.Errorf("detect changes: %w", err)
	}

	toProcess := append(append([]string{}, changes.Added...), changes.Modified...)
	if cp, loadErr := ix.cp.Load(); loadErr == nil && cp != nil {
		toProcess = checkpoint.FilterProcessed(toProcess, cp)
	}

	result := RunResult{FilesScanned: len(files), Status: StatusCompleted}
	var errMu sync.Mutex
	recordErr := func(msg string) {
		errMu.Lock()
		result.Errors = append(result.Errors, msg)
		errMu.Unlock()
	}

	coord := ix.newCoordinator(ctx, codebasePath, recordErr)

	processed := make([]string, 0, len(toProcess))
	for i, relPath := range toProcess {
		fi, ok := byRelPath[relPath]
		if !ok {
			continue
		}
		chunks, err := ix.chunkFile(codebasePath, fi)
		if err != nil {
			recordErr(fmt.Sprintf("chunk %s: %v", relPath, err))
			continue
		}
		for _, c := range chunks {
			coord.AddUpsert(c)
		}
		result.ChunksCreated += len(chunks)
		result.FilesIndexed++
		processed = append(processed, relPath)

		if (i+1)%50 == 0 {
			_ = ix.cp.Save(processed, len(toProcess), checkpoint.PhaseIndexing)
		}
		report(progress, ProgressEvent{Phase: "embedding", FilesProcessed: i + 1, FilesTotal: len(toProcess)})
	}

	for _, relPath := range changes.Deleted {
		coord.AddDelete(relPath)
	}
	report(progress, ProgressEvent{Phase: "deleting", FilesProcessed: len(changes.Deleted), FilesTotal: len(changes.Deleted)})

	coord.Flush()
	coord.Shutdown()

	if len(result.Errors) > 0 {
		result.Status = StatusPartial
	}

	if err := ix.detector.UpdateSnapshot(absPaths); err != nil {
		return result, fmt.Errorf("update snapshot: %w", err)
	}
	if err := ix.cp.Delete(); err != nil {
		return result, fmt.Errorf("clear checkpoint: %w", err)
	}
	report(progress, ProgressEvent{Phase: "checkpoint", FilesProcessed: len(files), FilesTotal: len(files)})

	result.Added = len(changes.Added)
	result.Modified = len(changes.Modified)
	result.Deleted = len(changes.Deleted)
	return result, nil
}

func (ix *Indexer) newCoordinator(ctx context.Context, codebasePath string, recordErr func(string)) *pipeline.Coordinator {
	cfg := pipeline.CoordinatorConfig{
		Upsert: pipeline.AccumulatorConfig{
			BatchSize:    ix.cfg.EmbeddingBatchSize,
			FlushTimeout: time.Duration(ix.cfg.BatchFormationTimeoutMS) * time.Millisecond,
			MaxQueueSize: ix.cfg.MaxQueueSize,
		},
		Delete: pipeline.AccumulatorConfig{
			BatchSize:    ix.cfg.DeleteBatchSize,
			FlushTimeout: time.Duration(ix.cfg.DeleteFlushTimeoutMS) * time.Millisecond,
			MaxQueueSize: ix.cfg.MaxQueueSize,
		},
		Pool: pipeline.PoolConfig{
			Concurrency:    ix.cfg.EmbeddingConcurrency,
			MaxRetries:     3,
			RetryBaseDelay: 500 * time.Millisecond,
			RetryMaxDelay:  10 * time.Second,
		},
		MaxQueueSize: ix.cfg.MaxQueueSize,
	}

	upsertHandler := func(ctx context.Context, items []interface{}) error {
		return ix.upsertBatch(ctx, items, recordErr)
	}
	deleteHandler := func(ctx context.Context, paths []interface{}) error {
		for _, p := range paths {
			relPath, _ := p.(string)
			if _, err := ix.store.DeleteByPath(ctx, relPath); err != nil {
				recordErr(fmt.Sprintf("delete %s: %v", relPath, err))
			}
		}
		return nil
	}

	coord := pipeline.NewCoordinator(cfg, upsertHandler, deleteHandler)
	coord.Start()
	return coord
}

// upsertBatch embeds every chunk in a batch and upserts the resulting
// points. Run inside a worker-pool goroutine; the worker pool's own
// retry policy covers transient embedding/store failures.
func (ix *Indexer) upsertBatch(ctx context.Context, items []interface{}, recordErr func(string)) error {
	chunks := make([]ChunkItem, 0, len(items))
	for _, item := range items {
		if c, ok := item.(ChunkItem); ok {
			chunks = append(chunks, c)
		}
	}
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	upsertItems := make([]vectordb.UpsertItem, len(chunks))
	for i, c := range chunks {
		upsertItems[i] = vectordb.UpsertItem{
			ID:    chunkID(c),
			Dense: vectors[i],
			Payload: vectordb.Payload{
				RelativePath:    c.RelativePath,
				ChunkType:       chunkType(c),
				Language:        c.Language,
				FileExtension:   strings.ToLower(filepath.Ext(c.RelativePath)),
				Symbol:          c.Symbol,
				LineStart:       c.StartLine,
				LineEnd:         c.EndLine,
				ContentHash:     c.ContentHash,
				Content:         c.Content,
				IsDocumentation: c.IsDoc,
				ImportPaths:     c.ImportPaths,
				Git:             gitPayload(c.Git),
				LastUpdated:     time.Now().UTC(),
			},
		}
	}

	return ix.store.Upsert(ctx, upsertItems, true)
}

func chunkType(c ChunkItem) vectordb.DocumentType {
	if c.IsDoc {
		return vectordb.ChunkTypeDoc
	}
	if c.Symbol != "" {
		return vectordb.ChunkTypeFunction
	}
	return vectordb.ChunkTypeFile
}

// chunkID derives a stable point ID from the chunk's identity so
// re-indexing an unchanged file is an idempotent upsert rather than a
// duplicate insert.
func chunkID(c ChunkItem) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d:%d", c.RelativePath, c.StartLine, c.EndLine, c.ChunkIndex)))
	return hex.EncodeToString(h[:])
}

func gitPayload(info *gitmeta.Info) *vectordb.GitMetadata {
	if info == nil {
		return nil
	}
	return &vectordb.GitMetadata{
		DominantAuthor: info.DominantAuthor,
		LastModifiedAt: info.LastModifiedAt,
		AgeDays:        info.AgeDays,
		CommitCount:    info.CommitCount,
		TaskIDs:        info.TaskIDs,
	}
}

func (ix *Indexer) chunkFile(codebasePath string, fi walker.FileInfo) ([]ChunkItem, error) {
	content, err := os.ReadFile(fi.Path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	relPath := filepath.ToSlash(fi.RelPath)
	rawChunks, err := ix.registry.Chunk(string(content), relPath, fi.Language)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}

	var gitInfo *gitmeta.Info
	if ix.cfg.EnableGitMetadata {
		gitInfo, _ = gitmeta.Lookup(codebasePath, relPath, time.Now())
	}

	items := make([]ChunkItem, len(rawChunks))
	for i, c := range rawChunks {
		items[i] = ChunkItem{
			RelativePath: relPath,
			Content:      c.Content,
			StartLine:    c.StartLine,
			EndLine:      c.EndLine,
			ChunkIndex:   c.ChunkIndex,
			Symbol:       c.Symbol,
			Language:     fi.Language,
			IsDoc:        c.IsDoc || ix.registry.IsDocumentation(fi.Language),
			ImportPaths:  c.ImportPath,
			ContentHash:  fi.ContentHash,
			Git:          gitInfo,
		}
	}
	return items, nil
}

func report(progress ProgressFunc, ev ProgressEvent) {
	if progress != nil {
		progress(ev)
	}
}
