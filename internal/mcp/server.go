// Package mcp exposes the rehydration engine as an MCP stdio server so
// agent runtimes can pull context bundles as a tool call.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/mnemohq/rehydrate/internal/engine"
	"github.com/mnemohq/rehydrate/internal/storage"
)

const (
	// ServerName is the MCP server name.
	ServerName = "rehydrate"
	// ServerVersion is the advertised server version.
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the engine dependencies.
type Server struct {
	mcp    *server.MCPServer
	engine *engine.Engine
	store  storage.Store
	logger *zap.Logger
}

// NewServer creates an MCP server around an existing engine.
func NewServer(eng *engine.Engine, store storage.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion),
		engine: eng,
		store:  store,
		logger: logger,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(rehydrateContextTool(), s.handleRehydrateContext)
	s.mcp.AddTool(engineStatusTool(), s.handleEngineStatus)
}
