package vectordb

import (
	"context"
	"fmt"
)

// CurrentSchemaVersion is the payload-index generation a freshly
// initialized collection is created at. Bumped whenever a new indexed
// field is introduced; existing collections are migrated lazily by
// EnsureCurrentSchema rather than eagerly on startup.
const CurrentSchemaVersion = 4

// schemaDocID is the reserved point ID used to persist a collection's
// schema version inside stores (like chromem) that have no native
// payload-index or collection-metadata concept of their own.
const schemaDocID = "__schema__"

// SchemaManager tracks and migrates the payload-index generation of a
// vector store's collections.
type SchemaManager struct {
	store VectorStore
}

// NewSchemaManager returns a SchemaManager bound to store.
func NewSchemaManager(store VectorStore) *SchemaManager {
	return &SchemaManager{store: store}
}

// InitializeSchema creates a fresh collection's schema marker at
// CurrentSchemaVersion. Called once, when a collection is first
// created.
func (s *SchemaManager) InitializeSchema(ctx context.Context) error {
	return s.store.SetSchemaVersion(ctx, CurrentSchemaVersion)
}

// EnsureCurrentSchema brings an existing collection's schema up to
// CurrentSchemaVersion, running any migrations needed along the way. A
// collection with data but no schema marker (created before version
// bookkeeping existed) is treated as already at version 1, not as
// uninitialized, since it already carries a keyword index on
// relative_path by construction of every prior store writer.
func (s *SchemaManager) EnsureCurrentSchema(ctx context.Context) error {
	version, err := s.store.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version == 0 {
		if s.store.Count() == 0 {
			return s.InitializeSchema(ctx)
		}
		version = 1
	}
	for version < CurrentSchemaVersion {
		version++
		if err := s.migrate(ctx, version); err != nil {
			return fmt.Errorf("migrate to schema version %d: %w", version, err)
		}
	}
	return s.store.SetSchemaVersion(ctx, version)
}

// migrate performs the side effects (if any) a store needs to reach
// targetVersion. Versions 2-4 only add payload-indexed fields that
// every point already carries, so no data rewrite is required; a
// store implementation that needs to build a real server-side index
// (e.g. a Qdrant collection) does so inside its own SetSchemaVersion.
func (s *SchemaManager) migrate(ctx context.Context, targetVersion int) error {
	switch targetVersion {
	case 2, 3, 4:
		return nil
	default:
		return fmt.Errorf("unknown schema version %d", targetVersion)
	}
}
