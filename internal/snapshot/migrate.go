package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrMigrationFailed wraps a fatal error encountered while migrating a
// legacy snapshot. Callers should treat this as non-recoverable and
// fall back to a full reindex.
type ErrMigrationFailed struct{ Cause error }

func (e ErrMigrationFailed) Error() string {
	return fmt.Sprintf("snapshot: migration failed: %v", e.Cause)
}

func (e ErrMigrationFailed) Unwrap() error { return e.Cause }

// legacyDocument is the shape of a pre-v3 single-file snapshot. Some
// legacy writers recorded rich metadata under file_metadata; older ones
// recorded only the set of indexed paths.
type legacyDocument struct {
	Files        []string                `json:"files"`
	FileMetadata map[string]FileMetadata `json:"file_metadata"`
}

// MigrationResult reports the outcome of a legacy-to-sharded migration.
type MigrationResult struct {
	Success         bool `json:"success"`
	FilesCount      int  `json:"files_count"`
	SkippedCount    int  `json:"skipped_count"`
	AlreadyMigrated bool `json:"already_migrated"`
}

// legacyPath returns the path of the pre-v3 single-file snapshot for
// this manager's collection.
func (m *Manager) legacyPath() string {
	return filepath.Join(m.baseDir, m.collection+".json")
}

// EnsureMigrated is an idempotent precondition for Load: if a legacy
// single-file snapshot is present and no sharded snapshot has been
// published yet, it migrates in place before returning. Safe to call on
// every load regardless of which format (if any) is on disk.
func (m *Manager) EnsureMigrated(codebasePath string) (MigrationResult, error) {
	if m.Exists() {
		return MigrationResult{Success: true, AlreadyMigrated: true}, nil
	}

	legacy := m.legacyPath()
	if _, err := os.Stat(legacy); err != nil {
		if os.IsNotExist(err) {
			return MigrationResult{Success: true, AlreadyMigrated: true}, nil
		}
		return MigrationResult{}, ErrMigrationFailed{Cause: err}
	}

	return m.MigrateLegacy(codebasePath)
}

// MigrateLegacy parses the legacy single-file snapshot, backs it up,
// reconstructs FileMetadata for every path it references (from the
// legacy file_metadata field when present, otherwise from a fresh stat
// of each path relative to codebasePath), saves the result as a sharded
// v3 snapshot, and finally deletes the legacy file. The backup is never
// touched again once written.
func (m *Manager) MigrateLegacy(codebasePath string) (MigrationResult, error) {
	legacy := m.legacyPath()

	raw, err := os.ReadFile(legacy)
	if err != nil {
		return MigrationResult{}, ErrMigrationFailed{Cause: fmt.Errorf("read legacy snapshot: %w", err)}
	}

	var doc legacyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return MigrationResult{}, ErrMigrationFailed{Cause: fmt.Errorf("parse legacy snapshot: %w", err)}
	}

	backupPath := legacy + ".backup"
	if err := os.WriteFile(backupPath, raw, 0o644); err != nil {
		return MigrationResult{}, ErrMigrationFailed{Cause: fmt.Errorf("write legacy backup: %w", err)}
	}

	paths := doc.Files
	if len(paths) == 0 && len(doc.FileMetadata) > 0 {
		paths = make([]string, 0, len(doc.FileMetadata))
		for p := range doc.FileMetadata {
			paths = append(paths, p)
		}
	}

	files := make(map[string]FileMetadata, len(paths))
	skipped := 0
	for _, relPath := range paths {
		if fm, ok := doc.FileMetadata[relPath]; ok {
			files[relPath] = fm
			continue
		}

		fm, err := statFileMetadata(codebasePath, relPath)
		if err != nil {
			skipped++
			continue
		}
		files[relPath] = fm
	}

	if err := m.Save(codebasePath, files); err != nil {
		return MigrationResult{}, ErrMigrationFailed{Cause: fmt.Errorf("save sharded snapshot: %w", err)}
	}

	if err := os.Remove(legacy); err != nil && !os.IsNotExist(err) {
		return MigrationResult{}, ErrMigrationFailed{Cause: fmt.Errorf("remove legacy snapshot: %w", err)}
	}

	return MigrationResult{
		Success:      true,
		FilesCount:   len(files),
		SkippedCount: skipped,
	}, nil
}

// statFileMetadata reconstructs FileMetadata for a path still present
// on disk. Content hashing is skipped here, so the entry has an empty
// content hash. Because the entry carries the file's current mtime and
// size, the next change-detection pass takes the fast path and reports
// the file unchanged without hashing it.
func statFileMetadata(codebasePath, relPath string) (FileMetadata, error) {
	info, err := os.Stat(filepath.Join(codebasePath, relPath))
	if err != nil {
		return FileMetadata{}, err
	}
	return FileMetadata{
		MTimeMS: float64(info.ModTime().UnixNano()) / float64(time.Millisecond),
		Size:    info.Size(),
	}, nil
}
