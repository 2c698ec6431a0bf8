package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/codesearch/internal/chunker"
	"github.com/ziadkadry99/codesearch/internal/indexer"
	"github.com/ziadkadry99/codesearch/internal/vectordb"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report snapshot, checkpoint, and collection state",
	Long:  `Reports whether the collection has a published snapshot, a resumable checkpoint from an interrupted run, and how many points are currently indexed.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	store, err := vectordb.NewChromemStore(embedder)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	_ = store.Load(ctx, cfg.SnapshotDir)

	registry := chunker.NewRegistry(docLanguages)
	ix := indexer.New(indexerConfigFromConfig(cfg), store, embedder, registry)

	schemaVersion, err := store.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	fmt.Printf("collection:          %s\n", cfg.Collection)
	fmt.Printf("schema_version:      %d\n", schemaVersion)
	fmt.Printf("points_count:        %d\n", store.Count())
	fmt.Printf("has_snapshot:        %v\n", ix.SnapshotManager().Exists())
	fmt.Printf("resumable_checkpoint: %v\n", ix.CheckpointStore().Has())

	return nil
}
