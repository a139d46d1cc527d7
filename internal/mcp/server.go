package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"vaultsearch/internal/config"
	"vaultsearch/internal/retrieval"
	"vaultsearch/internal/store"
)

// Server wraps the MCP server with its dependencies.
type Server struct {
	server *mcp.Server
}

// Deps holds the components the tool handlers use.
type Deps struct {
	Store     *store.Store
	Retrieval *retrieval.Engine
	Config    *config.Config
}

// NewServer creates a configured MCP server with the note tools registered.
func NewServer(deps *Deps) *Server {
	impl := &mcp.Implementation{
		Name:    "vaultsearch",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_notes",
		Description: "Search the indexed notes semantically. Returns ranked passages with their source note paths.",
	}, makeSearchHandler(deps.Retrieval, deps.Config))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_notes",
		Description: "Ask a question answered from the indexed notes. Retrieves relevant passages and produces a grounded answer.",
	}, makeAskHandler(deps.Retrieval, deps.Config))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_notes",
		Description: "List all indexed note paths.",
	}, makeListHandler(deps.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_status",
		Description: "Get the current status of the note index: document and passage counts, pending documents, last index time.",
	}, makeStatusHandler(deps.Store))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until the client
// disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance for transport
// handlers that wrap it.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
