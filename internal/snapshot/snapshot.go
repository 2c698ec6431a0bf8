// Package snapshot persists a sharded, Merkle-verified record of every
// file in a codebase so later runs can detect what changed without
// re-reading the whole tree. A snapshot lives under
// <base>/<collection>/ as one meta.json plus one shard-NN.json per
// shard; publication is atomic via a temp-directory rename, so a reader
// never observes a partially-written snapshot.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ziadkadry99/codesearch/internal/merkle"
	"github.com/ziadkadry99/codesearch/internal/shard"
)

// SchemaVersion is the on-disk snapshot format version.
const SchemaVersion = "3"

// FileMetadata is the snapshot leaf recorded for a single file.
type FileMetadata struct {
	MTimeMS     float64 `json:"mtime"`
	Size        int64   `json:"size"`
	ContentHash string  `json:"content_hash"`
}

// ShardRecord is the on-disk representation of a single shard file.
type ShardRecord struct {
	ShardIndex int                     `json:"shard_index"`
	Files      map[string]FileMetadata `json:"files"`
	MerkleRoot string                  `json:"merkle_root"`
}

// ShardSummary is the per-shard entry recorded in meta.json.
type ShardSummary struct {
	Index      int    `json:"index"`
	FileCount  int    `json:"file_count"`
	MerkleRoot string `json:"merkle_root"`
	Checksum   string `json:"checksum"`
}

// HashRingConfig records the ring parameters a snapshot was built with.
// Changing either field invalidates the snapshot (spec requirement).
type HashRingConfig struct {
	VirtualNodes int `json:"virtual_nodes"`
	ShardCount   int `json:"shard_count"`
}

// Meta is the on-disk meta.json document.
type Meta struct {
	Version      string         `json:"version"`
	CodebasePath string         `json:"codebase_path"`
	Timestamp    time.Time      `json:"timestamp"`
	HashRing     HashRingConfig `json:"hash_ring"`
	Shards       []ShardSummary `json:"shards"`
	MetaRootHash string         `json:"meta_root_hash"`
}

// Loaded is the in-memory result of a successful Load.
type Loaded struct {
	Meta             Meta
	Files            map[string]FileMetadata // merged across all shards
	ShardMerkleRoots map[int]string          // keyed by declared shard index
}

// ErrChecksumMismatch is returned when a shard file's bytes no longer
// match the checksum recorded in meta.json.
type ErrChecksumMismatch struct{ Shard int }

func (e ErrChecksumMismatch) Error() string {
	return fmt.Sprintf("snapshot: checksum mismatch for shard %d", e.Shard)
}

// ErrShardMissing is returned when meta.json references a shard file
// that is absent from disk.
type ErrShardMissing struct{ Index int }

func (e ErrShardMissing) Error() string {
	return fmt.Sprintf("snapshot: shard %d is missing", e.Index)
}

// ErrMetaCorrupt is returned when meta.json cannot be parsed.
type ErrMetaCorrupt struct{ Cause error }

func (e ErrMetaCorrupt) Error() string {
	return fmt.Sprintf("snapshot: meta.json is corrupt: %v", e.Cause)
}

func (e ErrMetaCorrupt) Unwrap() error { return e.Cause }

// Manager persists and loads sharded snapshots for one collection.
type Manager struct {
	baseDir      string
	collection   string
	router       *shard.Router
	shardCount   int
	virtualNodes int
}

// NewManager creates a Manager rooted at <baseDir>/<collection>.
func NewManager(baseDir, collection string, shardCount, virtualNodes int) *Manager {
	if shardCount < 1 {
		shardCount = 1
	}
	if virtualNodes < 1 {
		virtualNodes = shard.DefaultVirtualNodes
	}
	return &Manager{
		baseDir:      baseDir,
		collection:   collection,
		router:       shard.NewRouter(shardCount, virtualNodes),
		shardCount:   shardCount,
		virtualNodes: virtualNodes,
	}
}

// targetDir is the published snapshot directory.
func (m *Manager) targetDir() string {
	return filepath.Join(m.baseDir, m.collection)
}

// Exists reports whether a published snapshot is present.
func (m *Manager) Exists() bool {
	_, err := os.Stat(filepath.Join(m.targetDir(), "meta.json"))
	return err == nil
}

// Delete removes the published snapshot directory recursively. It is
// not an error if no snapshot exists.
func (m *Manager) Delete() error {
	return os.RemoveAll(m.targetDir())
}

// Save partitions files by shard, writes one shard file per shard plus
// meta.json, then atomically swaps the result in as the published
// snapshot. On any error the temp directory is removed and the
// previously published snapshot is left untouched.
func (m *Manager) Save(codebasePath string, files map[string]FileMetadata) error {
	parent := m.baseDir
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("snapshot: create base dir: %w", err)
	}

	if err := m.cleanStaleTempDirs(); err != nil {
		return fmt.Errorf("snapshot: clean stale temp dirs: %w", err)
	}

	tempDir := filepath.Join(parent, fmt.Sprintf("%s.tmp.%d", m.collection, time.Now().UnixNano()))
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return fmt.Errorf("snapshot: create temp dir: %w", err)
	}
	cleanup := true
	defer func() {
		if cleanup {
			os.RemoveAll(tempDir)
		}
	}()

	byShard := make(map[int]map[string]FileMetadata, m.shardCount)
	for i := 0; i < m.shardCount; i++ {
		byShard[i] = make(map[string]FileMetadata)
	}
	for path, meta := range files {
		idx := m.router.ShardOf(path)
		byShard[idx][path] = meta
	}

	shardRoots := make(map[string]string, m.shardCount)
	summaries := make([]ShardSummary, 0, m.shardCount)

	for i := 0; i < m.shardCount; i++ {
		shardFiles := byShard[i]

		leaves := make(map[string]string, len(shardFiles))
		for path, meta := range shardFiles {
			leaves[path] = meta.ContentHash
		}
		root := merkle.BuildRoot(leaves)

		record := ShardRecord{
			ShardIndex: i,
			Files:      shardFiles,
			MerkleRoot: root,
		}
		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return fmt.Errorf("snapshot: marshal shard %d: %w", i, err)
		}

		shardPath := filepath.Join(tempDir, shardFileName(i))
		if err := os.WriteFile(shardPath, data, 0o644); err != nil {
			return fmt.Errorf("snapshot: write shard %d: %w", i, err)
		}

		checksum := sha256.Sum256(data)
		summaries = append(summaries, ShardSummary{
			Index:      i,
			FileCount:  len(shardFiles),
			MerkleRoot: root,
			Checksum:   hex.EncodeToString(checksum[:]),
		})
		shardRoots[fmt.Sprintf("shard-%d", i)] = root
	}

	meta := Meta{
		Version:      SchemaVersion,
		CodebasePath: codebasePath,
		Timestamp:    time.Now(),
		HashRing:     HashRingConfig{VirtualNodes: m.virtualNodes, ShardCount: m.shardCount},
		Shards:       summaries,
		MetaRootHash: merkle.BuildRoot(shardRoots),
	}
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshal meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "meta.json"), metaData, 0o644); err != nil {
		return fmt.Errorf("snapshot: write meta: %w", err)
	}

	target := m.targetDir()
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("snapshot: remove previous snapshot: %w", err)
	}
	if err := os.Rename(tempDir, target); err != nil {
		return fmt.Errorf("snapshot: publish snapshot: %w", err)
	}
	cleanup = false
	return nil
}

// cleanStaleTempDirs removes any leftover <collection>.tmp.* directories
// from a previous crashed Save.
func (m *Manager) cleanStaleTempDirs() error {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	prefix := m.collection + ".tmp."
	for _, e := range entries {
		if e.IsDir() && len(e.Name()) > len(prefix) && e.Name()[:len(prefix)] == prefix {
			if err := os.RemoveAll(filepath.Join(m.baseDir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads meta.json and every shard file in parallel, verifying each
// shard's checksum. It returns ErrMetaCorrupt, ErrShardMissing, or
// ErrChecksumMismatch on the first failure encountered; on success,
// files from all shards are merged into a single map.
func (m *Manager) Load() (*Loaded, error) {
	target := m.targetDir()
	metaData, err := os.ReadFile(filepath.Join(target, "meta.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: read meta: %w", err)
	}

	var meta Meta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, ErrMetaCorrupt{Cause: err}
	}

	type shardResult struct {
		index int
		files map[string]FileMetadata
		root  string
		err   error
	}

	results := make([]shardResult, len(meta.Shards))
	var wg sync.WaitGroup
	for i, summary := range meta.Shards {
		wg.Add(1)
		go func(i int, summary ShardSummary) {
			defer wg.Done()
			data, err := os.ReadFile(filepath.Join(target, shardFileName(summary.Index)))
			if err != nil {
				if os.IsNotExist(err) {
					results[i] = shardResult{err: ErrShardMissing{Index: summary.Index}}
					return
				}
				results[i] = shardResult{err: fmt.Errorf("snapshot: read shard %d: %w", summary.Index, err)}
				return
			}

			sum := sha256.Sum256(data)
			if hex.EncodeToString(sum[:]) != summary.Checksum {
				results[i] = shardResult{err: ErrChecksumMismatch{Shard: summary.Index}}
				return
			}

			var record ShardRecord
			if err := json.Unmarshal(data, &record); err != nil {
				results[i] = shardResult{err: fmt.Errorf("snapshot: unmarshal shard %d: %w", summary.Index, err)}
				return
			}

			results[i] = shardResult{index: summary.Index, files: record.Files, root: record.MerkleRoot}
		}(i, summary)
	}
	wg.Wait()

	merged := make(map[string]FileMetadata)
	roots := make(map[int]string, len(results))
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		for path, fm := range r.files {
			merged[path] = fm
		}
		roots[r.index] = r.root
	}

	return &Loaded{Meta: meta, Files: merged, ShardMerkleRoots: roots}, nil
}

func shardFileName(index int) string {
	return fmt.Sprintf("shard-%02d.json", index)
}
