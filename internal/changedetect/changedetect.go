// Package changedetect compares the current state of a file tree to its
// last published snapshot, classifying files as added, modified, or
// deleted, and does so in parallel across shards so large trees stay
// cheap to check.
package changedetect

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ziadkadry99/codesearch/internal/merkle"
	"github.com/ziadkadry99/codesearch/internal/shard"
	"github.com/ziadkadry99/codesearch/internal/snapshot"
)

// mtimeTolerance accommodates filesystems with second-resolution mtime:
// a file whose mtime moved by less than this, with an unchanged size,
// is assumed unchanged without re-reading its content.
const mtimeTolerance = 1000 * time.Millisecond

// Changes classifies every file considered by DetectChanges.
type Changes struct {
	Added     []string
	Modified  []string
	Deleted   []string
	Unchanged []string
}

// Detector compares a codebase against the previously published
// snapshot for one collection.
type Detector struct {
	mgr      *snapshot.Manager
	router   *shard.Router
	codebase string

	mu       sync.Mutex
	previous *snapshot.Loaded
}

// NewDetector creates a Detector for the given codebase root using mgr
// to load and save snapshots.
func NewDetector(mgr *snapshot.Manager, router *shard.Router, codebasePath string) *Detector {
	return &Detector{mgr: mgr, router: router, codebase: codebasePath}
}

// Initialize loads the previous snapshot, migrating a legacy single-file
// snapshot first if one is present. It returns whether a previous
// snapshot existed.
func (d *Detector) Initialize() (bool, error) {
	if _, err := d.mgr.EnsureMigrated(d.codebase); err != nil {
		return false, fmt.Errorf("changedetect: migrate: %w", err)
	}

	loaded, err := d.mgr.Load()
	if err != nil {
		return false, fmt.Errorf("changedetect: load snapshot: %w", err)
	}

	d.mu.Lock()
	d.previous = loaded
	d.mu.Unlock()

	return loaded != nil, nil
}

// DetectChanges classifies every path in currentFiles (absolute paths)
// against the previous snapshot. Paths are grouped by shard and every
// shard group is processed concurrently; within a group, files are also
// hashed concurrently. Deleted files are whatever previous relative
// paths are absent from currentFiles.
func (d *Detector) DetectChanges(currentFiles []string) (Changes, error) {
	d.mu.Lock()
	previous := d.previous
	d.mu.Unlock()

	var prevFiles map[string]snapshot.FileMetadata
	if previous != nil {
		prevFiles = previous.Files
	}

	relPaths := make([]string, len(currentFiles))
	absByRel := make(map[string]string, len(currentFiles))
	for i, abs := range currentFiles {
		rel, err := relativeSlash(d.codebase, abs)
		if err != nil {
			return Changes{}, fmt.Errorf("changedetect: relativize %q: %w", abs, err)
		}
		relPaths[i] = rel
		absByRel[rel] = abs
	}

	groups := d.router.PartitionByShard(relPaths)

	type fileResult struct {
		rel     string
		status  string // "added", "modified", "unchanged"
		err     error
	}

	var wg sync.WaitGroup
	resultsCh := make(chan fileResult, len(relPaths))

	for _, group := range groups {
		group := group
		wg.Add(1)
		go func() {
			defer wg.Done()
			var innerWG sync.WaitGroup
			for _, rel := range group {
				rel := rel
				innerWG.Add(1)
				go func() {
					defer innerWG.Done()
					status, err := classifyFile(absByRel[rel], prevFiles[rel], hasPrevious(prevFiles, rel))
					resultsCh <- fileResult{rel: rel, status: status, err: err}
				}()
			}
			innerWG.Wait()
		}()
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	var changes Changes
	for r := range resultsCh {
		if r.err != nil {
			return Changes{}, fmt.Errorf("changedetect: classify %q: %w", r.rel, r.err)
		}
		switch r.status {
		case "added":
			changes.Added = append(changes.Added, r.rel)
		case "modified":
			changes.Modified = append(changes.Modified, r.rel)
		default:
			changes.Unchanged = append(changes.Unchanged, r.rel)
		}
	}

	if prevFiles != nil {
		current := make(map[string]struct{}, len(relPaths))
		for _, rel := range relPaths {
			current[rel] = struct{}{}
		}
		for rel := range prevFiles {
			if _, ok := current[rel]; !ok {
				changes.Deleted = append(changes.Deleted, rel)
			}
		}
	}

	return changes, nil
}

func hasPrevious(prevFiles map[string]snapshot.FileMetadata, rel string) bool {
	if prevFiles == nil {
		return false
	}
	_, ok := prevFiles[rel]
	return ok
}

// classifyFile stats absPath and decides whether the previous hash can
// be reused (fast path) or the file must be re-read.
func classifyFile(absPath string, prev snapshot.FileMetadata, hadPrevious bool) (string, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return "", err
	}

	mtimeMS := float64(info.ModTime().UnixNano()) / 1e6
	size := info.Size()

	if !hadPrevious {
		return "added", nil
	}

	if sizesMatch(prev.Size, size) && mtimeWithinTolerance(prev.MTimeMS, mtimeMS) {
		return "unchanged", nil
	}

	hash, err := hashFile(absPath)
	if err != nil {
		return "", err
	}
	if hash == prev.ContentHash {
		return "unchanged", nil
	}
	return "modified", nil
}

func sizesMatch(a, b int64) bool { return a == b }

func mtimeWithinTolerance(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < float64(mtimeTolerance/time.Millisecond)
}

// NeedsReindex rebuilds the meta root from full content hashes of every
// current file (the fast path is deliberately not used, to catch hash
// drift) and compares it to the previously recorded meta root hash.
func (d *Detector) NeedsReindex(currentFiles []string) (bool, error) {
	d.mu.Lock()
	previous := d.previous
	d.mu.Unlock()

	if previous == nil {
		return true, nil
	}

	current, err := hashAllFull(d.codebase, currentFiles)
	if err != nil {
		return false, fmt.Errorf("changedetect: hash current files: %w", err)
	}

	groups := d.router.PartitionByShard(keysOf(current))
	shardRoots := make(map[string]string, d.router.ShardCount())
	for shardIdx := 0; shardIdx < d.router.ShardCount(); shardIdx++ {
		rels := groups[shardIdx]
		leaves := make(map[string]string, len(rels))
		for _, rel := range rels {
			leaves[rel] = current[rel]
		}
		shardRoots[fmt.Sprintf("shard-%d", shardIdx)] = merkle.BuildRoot(leaves)
	}
	metaRoot := merkle.BuildRoot(shardRoots)

	return metaRoot != previous.Meta.MetaRootHash, nil
}

// UpdateSnapshot hashes every current file with no fast path and
// publishes the result as the new snapshot.
func (d *Detector) UpdateSnapshot(currentFiles []string) error {
	files := make(map[string]snapshot.FileMetadata, len(currentFiles))
	var mu sync.Mutex
	var wg sync.WaitGroup
	errCh := make(chan error, len(currentFiles))

	for _, abs := range currentFiles {
		abs := abs
		wg.Add(1)
		go func() {
			defer wg.Done()
			rel, err := relativeSlash(d.codebase, abs)
			if err != nil {
				errCh <- err
				return
			}
			info, err := os.Stat(abs)
			if err != nil {
				errCh <- err
				return
			}
			hash, err := hashFile(abs)
			if err != nil {
				errCh <- err
				return
			}
			fm := snapshot.FileMetadata{
				MTimeMS:     float64(info.ModTime().UnixNano()) / 1e6,
				Size:        info.Size(),
				ContentHash: hash,
			}
			mu.Lock()
			files[rel] = fm
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return fmt.Errorf("changedetect: hash file: %w", err)
		}
	}

	if err := d.mgr.Save(d.codebase, files); err != nil {
		return fmt.Errorf("changedetect: save snapshot: %w", err)
	}

	loaded, err := d.mgr.Load()
	if err != nil {
		return fmt.Errorf("changedetect: reload snapshot: %w", err)
	}
	d.mu.Lock()
	d.previous = loaded
	d.mu.Unlock()
	return nil
}

// DeleteSnapshot removes the published snapshot and clears in-memory
// state so the next Initialize starts fresh.
func (d *Detector) DeleteSnapshot() error {
	if err := d.mgr.Delete(); err != nil {
		return fmt.Errorf("changedetect: delete snapshot: %w", err)
	}
	d.mu.Lock()
	d.previous = nil
	d.mu.Unlock()
	return nil
}

func hashAllFull(codebase string, files []string) (map[string]string, error) {
	hashes := make(map[string]string, len(files))
	for _, abs := range files {
		rel, err := relativeSlash(codebase, abs)
		if err != nil {
			return nil, err
		}
		hash, err := hashFile(abs)
		if err != nil {
			return nil, err
		}
		hashes[rel] = hash
	}
	return hashes, nil
}

func keysOf(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func relativeSlash(base, abs string) (string, error) {
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
