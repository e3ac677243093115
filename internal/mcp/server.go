package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/termhelper-rag/internal/rag"
)

const (
	// ServerName is the MCP server name
	ServerName = "termhelper-rag"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with one retrieval engine per project root.
type Server struct {
	mcp *server.MCPServer

	mu      sync.Mutex
	engines map[string]*rag.Engine
}

// NewServer creates a new MCP server instance.
func NewServer() (*Server, error) {
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:     mcpServer,
		engines: make(map[string]*rag.Engine),
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// engineFor returns the engine owning path's indices, opening it on first
// use. Engines are cached per project root for the server's lifetime.
func (s *Server) engineFor(path string) (*rag.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.engines[path]; ok {
		return e, nil
	}

	e, err := rag.Open(path, nil, nil)
	if err != nil {
		return nil, err
	}
	s.engines[path] = e
	return e, nil
}

// registerTools registers all MCP tools.
func (s *Server) registerTools() error {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(retrieveRelevantFilesTool(), s.handleRetrieveRelevantFiles)
	s.mcp.AddTool(indexSingleFileTool(), s.handleIndexSingleFile)
	s.mcp.AddTool(ragStatsTool(), s.handleRagStats)
	return nil
}
