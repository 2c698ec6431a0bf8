package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/codesearch/internal/query"
	"github.com/ziadkadry99/codesearch/internal/vectordb"
)

// handleSearchCode performs semantic search over the codebase vector store.
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	opts := query.Options{
		Query:             q,
		Limit:             limit,
		PathPattern:       request.GetString("path_pattern", ""),
		DocumentationOnly: request.GetBool("documentation_only", false),
		Rerank:            request.GetString("rerank", ""),
	}

	results, err := s.engine.Search(ctx, opts)
	if err != nil {
		if errors.Is(err, query.ErrNotIndexed) {
			return mcp.NewToolResultText("The codebase has not been indexed yet. Run the index_codebase tool first."), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No results found."), nil
	}

	return mcp.NewToolResultText(vectordb.FormatResults(results)), nil
}

// handleIndexCodebase triggers a full or incremental index run.
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root := request.GetString("codebase_path", s.defaultRoot)
	if root == "" {
		return mcp.NewToolResultError("no codebase_path provided and no default root configured"), nil
	}

	result, err := s.ix.Run(ctx, root, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("index run failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"status=%s files_scanned=%d files_indexed=%d chunks_created=%d added=%d modified=%d deleted=%d errors=%d",
		result.Status, result.FilesScanned, result.FilesIndexed, result.ChunksCreated,
		result.Added, result.Modified, result.Deleted, len(result.Errors),
	)), nil
}

// handleIndexStatus reports snapshot/checkpoint/collection state.
func (s *Server) handleIndexStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hasSnapshot := s.ix.SnapshotManager().Exists()
	hasCheckpoint := s.ix.CheckpointStore().Has()
	count := s.engine.CollectionCount()

	return mcp.NewToolResultText(fmt.Sprintf(
		"collection=%s indexed=%v resumable_checkpoint=%v points_count=%d",
		s.collection, hasSnapshot, hasCheckpoint, count,
	)), nil
}
