package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestMigrateLegacyWithFileMetadata(t *testing.T) {
	dir := t.TempDir()
	codebase := t.TempDir()

	doc := legacyDocument{
		Files: []string{"a.go", "b.go"},
		FileMetadata: map[string]FileMetadata{
			"a.go": {MTimeMS: 1700000000000, Size: 10, ContentHash: "hash-a"},
			"b.go": {MTimeMS: 1700000000001, Size: 20, ContentHash: "hash-b"},
		},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal legacy doc: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "mycoll.json"), raw, 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	mgr := NewManager(dir, "mycoll", 2, 10)
	result, err := mgr.MigrateLegacy(codebase)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !result.Success || result.FilesCount != 2 || result.SkippedCount != 0 {
		t.Fatalf("unexpected migration result: %+v", result)
	}

	if !mgr.Exists() {
		t.Fatal("expected sharded snapshot to exist after migration")
	}
	if _, err := os.Stat(filepath.Join(dir, "mycoll.json")); !os.IsNotExist(err) {
		t.Fatal("expected legacy file to be removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "mycoll.json.backup")); err != nil {
		t.Fatalf("expected backup to exist: %v", err)
	}

	loaded, err := mgr.Load()
	if err != nil {
		t.Fatalf("load after migration: %v", err)
	}
	if loaded.Files["a.go"].ContentHash != "hash-a" {
		t.Fatalf("expected content hash carried over, got %+v", loaded.Files["a.go"])
	}
}

func TestMigrateLegacyWithoutFileMetadataStatsDisk(t *testing.T) {
	dir := t.TempDir()
	codebase := t.TempDir()

	if err := os.WriteFile(filepath.Join(codebase, "present.go"), []byte("package p"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	doc := legacyDocument{Files: []string{"present.go", "missing.go"}}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal legacy doc: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "mycoll.json"), raw, 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	mgr := NewManager(dir, "mycoll", 2, 10)
	result, err := mgr.MigrateLegacy(codebase)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if result.FilesCount != 1 || result.SkippedCount != 1 {
		t.Fatalf("expected 1 migrated, 1 skipped, got %+v", result)
	}
}

func TestEnsureMigratedIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	codebase := t.TempDir()

	doc := legacyDocument{FileMetadata: map[string]FileMetadata{"a.go": {Size: 1, ContentHash: "h"}}}
	raw, _ := json.Marshal(doc)
	if err := os.WriteFile(filepath.Join(dir, "mycoll.json"), raw, 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	mgr := NewManager(dir, "mycoll", 2, 10)
	first, err := mgr.EnsureMigrated(codebase)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if first.AlreadyMigrated {
		t.Fatal("expected first call to perform a migration, not skip it")
	}

	second, err := mgr.EnsureMigrated(codebase)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if !second.AlreadyMigrated {
		t.Fatal("expected second call to be a no-op")
	}
}

func TestEnsureMigratedNoLegacyFileIsNoop(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir, "fresh", 2, 10)

	result, err := mgr.EnsureMigrated(t.TempDir())
	if err != nil {
		t.Fatalf("ensure migrated: %v", err)
	}
	if !result.AlreadyMigrated || !result.Success {
		t.Fatalf("expected no-op success, got %+v", result)
	}
}
