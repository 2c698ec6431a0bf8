package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/codesearch/internal/indexer"
	"github.com/ziadkadry99/codesearch/internal/query"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes codebase search and
// indexing tools over stdio.
type Server struct {
	engine      *query.Engine
	ix          *indexer.Indexer
	collection  string
	defaultRoot string

	mcp *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(engine *query.Engine, ix *indexer.Indexer, collection, defaultRoot string) *Server {
	s := &Server{
		engine:      engine,
		ix:          ix,
		collection:  collection,
		defaultRoot: defaultRoot,
	}

	s.mcp = server.NewMCPServer(
		"codesearch",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchCodeTool, s.handleSearchCode)
	s.mcp.AddTool(indexCodebaseTool, s.handleIndexCodebase)
	s.mcp.AddTool(indexStatusTool, s.handleIndexStatus)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
