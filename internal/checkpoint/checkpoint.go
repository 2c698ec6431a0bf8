// Package checkpoint persists resumable progress for long indexing runs
// so a crashed or interrupted run can pick up where it left off instead
// of reprocessing every file.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Expiry is how long a checkpoint remains valid. A checkpoint older
// than this is considered stale progress from an abandoned run and is
// discarded rather than resumed from.
const Expiry = 24 * time.Hour

// Phase names the operation a checkpoint was recorded during.
type Phase string

const (
	PhaseIndexing Phase = "indexing"
	PhaseDeleting Phase = "deleting"
)

// Checkpoint is the on-disk progress record for one collection.
type Checkpoint struct {
	ProcessedFiles []string  `json:"processed_files"`
	TotalFiles     int       `json:"total_files"`
	Timestamp      time.Time `json:"timestamp"`
	Phase          Phase     `json:"phase"`
}

// Store reads and writes a single collection's checkpoint file.
type Store struct {
	path string
}

// NewStore creates a Store backed by <baseDir>/<collection>.checkpoint.json.
func NewStore(baseDir, collection string) *Store {
	return &Store{path: filepath.Join(baseDir, collection+".checkpoint.json")}
}

// Save durably records progress via write-temp-then-rename: a reader
// never observes a half-written checkpoint.
func (s *Store) Save(processedFiles []string, totalFiles int, phase Phase) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("checkpoint: create dir: %w", err)
	}

	cp := Checkpoint{
		ProcessedFiles: processedFiles,
		TotalFiles:     totalFiles,
		Timestamp:      time.Now(),
		Phase:          phase,
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}

	tempPath := s.path + fmt.Sprintf(".tmp.%d", time.Now().UnixNano())
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write temp file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("checkpoint: rename temp file: %w", err)
	}
	return nil
}

// Has reports whether a non-expired checkpoint is present. It goes
// through Load, so the file is read and parsed, and an expired
// checkpoint is deleted.
func (s *Store) Has() bool {
	cp, err := s.Load()
	return err == nil && cp != nil
}

// Load reads the checkpoint, returning (nil, nil) if none exists or it
// has expired. An expired checkpoint self-deletes before Load returns.
func (s *Store) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint: read: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("checkpoint: unmarshal: %w", err)
	}

	if time.Since(cp.Timestamp) > Expiry {
		_ = s.Delete()
		return nil, nil
	}
	return &cp, nil
}

// Delete removes the checkpoint file. It is not an error if none
// exists.
func (s *Store) Delete() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: delete: %w", err)
	}
	return nil
}

// FilterProcessed returns the subset of all that is not yet recorded as
// processed in checkpoint. A nil checkpoint is treated as empty
// progress, so every path is returned.
func FilterProcessed(all []string, cp *Checkpoint) []string {
	if cp == nil || len(cp.ProcessedFiles) == 0 {
		return all
	}

	done := make(map[string]struct{}, len(cp.ProcessedFiles))
	for _, f := range cp.ProcessedFiles {
		done[f] = struct{}{}
	}

	remaining := make([]string, 0, len(all))
	for _, f := range all {
		if _, ok := done[f]; !ok {
			remaining = append(remaining, f)
		}
	}
	return remaining
}
