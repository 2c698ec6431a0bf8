package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func sampleFiles(n int) map[string]FileMetadata {
	files := make(map[string]FileMetadata, n)
	for i := 0; i < n; i++ {
		path := filepath.Join("pkg", "file")
		key := path + "_" + string(rune('a'+i%26)) + ".go"
		files[key] = FileMetadata{MTimeMS: float64(1700000000000 + i), Size: int64(100 + i), ContentHash: "h" + key}
	}
	return files
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir, "mycollection", 4, 50)

	files := sampleFiles(40)
	if err := mgr.Save("/repo", files); err != nil {
		t.Fatalf("save: %v", err)
	}

	if !mgr.Exists() {
		t.Fatal("expected snapshot to exist after save")
	}

	loaded, err := mgr.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected non-nil loaded snapshot")
	}
	if len(loaded.Files) != len(files) {
		t.Fatalf("expected %d files, got %d", len(files), len(loaded.Files))
	}
	for k, v := range files {
		got, ok := loaded.Files[k]
		if !ok {
			t.Fatalf("missing file %q after load", k)
		}
		if got.ContentHash != v.ContentHash {
			t.Fatalf("content hash mismatch for %q", k)
		}
	}
	if loaded.Meta.MetaRootHash == "" {
		t.Fatal("expected non-empty meta root hash")
	}
	if loaded.Meta.HashRing.ShardCount != 4 || loaded.Meta.HashRing.VirtualNodes != 50 {
		t.Fatalf("unexpected hash ring config recorded: %+v", loaded.Meta.HashRing)
	}
}

func TestLoadOnMissingSnapshotReturnsNil(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir, "empty", 2, 10)

	loaded, err := mgr.Load()
	if err != nil {
		t.Fatalf("expected no error for missing snapshot, got %v", err)
	}
	if loaded != nil {
		t.Fatal("expected nil loaded snapshot when none exists")
	}
}

func TestDeleteRemovesSnapshot(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir, "coll", 2, 10)
	if err := mgr.Save("/repo", sampleFiles(5)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mgr.Delete(); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mgr.Exists() {
		t.Fatal("expected snapshot to be gone after delete")
	}
}

func TestLoadDetectsChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir, "coll", 2, 10)
	if err := mgr.Save("/repo", sampleFiles(10)); err != nil {
		t.Fatalf("save: %v", err)
	}

	shardPath := filepath.Join(dir, "coll", "shard-00.json")
	data, err := os.ReadFile(shardPath)
	if err != nil {
		t.Fatalf("read shard: %v", err)
	}
	data = append(data, []byte("tampered")...)
	if err := os.WriteFile(shardPath, data, 0o644); err != nil {
		t.Fatalf("write tampered shard: %v", err)
	}

	_, err = mgr.Load()
	if err == nil {
		t.Fatal("expected error loading tampered shard")
	}
	var mismatch ErrChecksumMismatch
	if !asChecksumMismatch(err, &mismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v (%T)", err, err)
	}
}

func TestLoadDetectsMissingShardFile(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir, "coll", 3, 10)
	if err := mgr.Save("/repo", sampleFiles(12)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "coll", "shard-01.json")); err != nil {
		t.Fatalf("remove shard: %v", err)
	}

	_, err := mgr.Load()
	if err == nil {
		t.Fatal("expected error for missing shard")
	}
	if _, ok := err.(ErrShardMissing); !ok {
		t.Fatalf("expected ErrShardMissing, got %v (%T)", err, err)
	}
}

func TestSaveOverwritesPreviousSnapshotAtomically(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir, "coll", 2, 10)

	if err := mgr.Save("/repo", sampleFiles(5)); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := mgr.Save("/repo", sampleFiles(9)); err != nil {
		t.Fatalf("second save: %v", err)
	}

	loaded, err := mgr.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Files) != 9 {
		t.Fatalf("expected second save's file count to win, got %d", len(loaded.Files))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if e.IsDir() && e.Name() != "coll" {
			t.Fatalf("unexpected leftover directory: %s", e.Name())
		}
	}
}

func asChecksumMismatch(err error, out *ErrChecksumMismatch) bool {
	if mismatch, ok := err.(ErrChecksumMismatch); ok {
		*out = mismatch
		return true
	}
	return false
}
