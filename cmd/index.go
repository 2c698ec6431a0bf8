package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/codesearch/internal/chunker"
	"github.com/ziadkadry99/codesearch/internal/indexer"
	"github.com/ziadkadry99/codesearch/internal/progress"
	"github.com/ziadkadry99/codesearch/internal/vectordb"
)

var docLanguages = []string{"markdown", "plaintext", "rst", "asciidoc"}

var indexCmd = &cobra.Command{
	Use:   "index [codebase-path]",
	Short: "Build or incrementally update the semantic index for a codebase",
	Long: `Walks the codebase, detects changes against the last snapshot via
content hashing and a Merkle tree, chunks and embeds changed files, and
upserts/deletes points in the vector store. Progress is checkpointed so
an interrupted run can resume where it left off.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	codebasePath := cfg.CodebasePath
	if len(args) == 1 {
		codebasePath = args[0]
	}
	if codebasePath == "" {
		codebasePath = "."
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	store, err := vectordb.NewChromemStore(embedder)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}

	if err := store.Load(ctx, cfg.SnapshotDir); err != nil && verbose {
		fmt.Fprintf(os.Stderr, "No existing persisted vector store found (fresh index): %v\n", err)
	}

	schemaMgr := vectordb.NewSchemaManager(store)
	if err := schemaMgr.EnsureCurrentSchema(ctx); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	registry := chunker.NewRegistry(docLanguages)

	ix := indexer.New(indexerConfigFromConfig(cfg), store, embedder, registry)

	reporter := progress.NewReporter()
	started := false

	result, err := ix.Run(ctx, codebasePath, func(ev indexer.ProgressEvent) {
		if !started {
			reporter.Start(ev.FilesTotal)
			started = true
		}
		reporter.Update(ev.FilesProcessed, ev.Phase)
	})
	if started {
		reporter.Finish()
	}
	if err != nil {
		return fmt.Errorf("index run failed: %w", err)
	}

	if err := store.Persist(ctx, cfg.SnapshotDir); err != nil {
		return fmt.Errorf("persisting vector store: %w", err)
	}

	duration := time.Since(start)
	fmt.Println()
	fmt.Println("Index run complete!")
	fmt.Printf("  Status:          %s\n", result.Status)
	fmt.Printf("  Files scanned:   %d\n", result.FilesScanned)
	fmt.Printf("  Files indexed:   %d\n", result.FilesIndexed)
	fmt.Printf("  Chunks created:  %d\n", result.ChunksCreated)
	fmt.Printf("  Added/modified/deleted: %d/%d/%d\n", result.Added, result.Modified, result.Deleted)
	fmt.Printf("  Duration:        %s\n", duration.Round(time.Millisecond))

	if len(result.Errors) > 0 {
		fmt.Fprintf(os.Stderr, "\nWarnings (%d):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "  - %v\n", e)
		}
	}

	return nil
}
