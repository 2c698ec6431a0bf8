package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/codesearch/internal/chunker"
	"github.com/ziadkadry99/codesearch/internal/indexer"
	mcpserver "github.com/ziadkadry99/codesearch/internal/mcp"
	"github.com/ziadkadry99/codesearch/internal/query"
	"github.com/ziadkadry99/codesearch/internal/vectordb"
)

var mcpServeCmd = &cobra.Command{
	Use:   "mcp-serve",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing search_code, index_codebase, and index_status tools for AI agents like Claude Code.`,
	RunE:  runMCPServe,
}

func init() {
	rootCmd.AddCommand(mcpServeCmd)
}

func runMCPServe(cmd *cobra.Command, args []string) error {
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

	if err := store.Load(ctx, cfg.SnapshotDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load persisted vector store: %v\n", err)
		fmt.Fprintf(os.Stderr, "Search results will be empty until `index_codebase` is run.\n")
	}

	registry := chunker.NewRegistry(docLanguages)
	ix := indexer.New(indexerConfigFromConfig(cfg), store, embedder, registry)
	engine := query.NewEngine(store, embedder)

	mcpserver.Version = Version

	fmt.Fprintf(os.Stderr, "codesearch MCP server started on stdio (collection=%s, points=%d)\n", cfg.Collection, store.Count())

	srv := mcpserver.NewServer(engine, ix, cfg.Collection, cfg.CodebasePath)
	return srv.Serve()
}
