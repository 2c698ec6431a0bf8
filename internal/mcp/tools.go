package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchCodeTool defines the search_code MCP tool.
var searchCodeTool = mcp.NewTool("search_code",
	mcp.WithDescription("Search the indexed codebase semantically. Returns relevant code chunks ranked by similarity."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 5)"),
	),
	mcp.WithString("path_pattern",
		mcp.Description("Glob pattern (bash-mode, brace expansion supported) restricting results to matching relative paths"),
	),
	mcp.WithBoolean("documentation_only",
		mcp.Description("Restrict results to documentation chunks"),
	),
	mcp.WithString("rerank",
		mcp.Description("Rerank preset to apply"),
		mcp.Enum("relevance", "recent", "stable", "techDebt", "hotspots", "codeReview", "onboarding", "securityAudit", "refactoring", "ownership", "impactAnalysis"),
	),
)

// indexCodebaseTool defines the index_codebase MCP tool.
var indexCodebaseTool = mcp.NewTool("index_codebase",
	mcp.WithDescription("Run a full or incremental index pass over a codebase directory, embedding changed files into the vector store."),
	mcp.WithString("codebase_path",
		mcp.Description("Path to the codebase root; defaults to the server's configured default root"),
	),
)

// indexStatusTool defines the index_status MCP tool.
var indexStatusTool = mcp.NewTool("index_status",
	mcp.WithDescription("Report whether the collection has a published snapshot, a resumable checkpoint, and how many points are indexed."),
)
