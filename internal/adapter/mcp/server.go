// Package mcp exposes a read-only operator surface over the Model Context
// Protocol: chatbot inventory, usage metering, plan limits and retrieval
// previews for AI operator consoles.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/BotForge/internal/domain/chatbot"
	"github.com/Strob0t/BotForge/internal/domain/knowledge"
	"github.com/Strob0t/BotForge/internal/domain/plan"
	"github.com/Strob0t/BotForge/internal/domain/usage"
)

// ChatbotReader reads chatbot inventory.
type ChatbotReader interface {
	Get(ctx context.Context, id string) (*chatbot.Chatbot, error)
	List(ctx context.Context, accountID string) ([]chatbot.Chatbot, error)
}

// UsageReader reads metering records.
type UsageReader interface {
	Get(ctx context.Context, chatbotID, period string) (*usage.Record, error)
}

// KnowledgeSearcher previews tenant-scoped retrieval.
type KnowledgeSearcher interface {
	Search(ctx context.Context, chatbotID, query string) ([]knowledge.ScoredChunk, error)
}

// PlanResolver resolves tier limits.
type PlanResolver interface {
	Resolve(tier plan.Tier) (plan.Limits, error)
}

// ServerDeps are the service dependencies the MCP tools dispatch to. A nil
// dependency disables its tools with an error result rather than a panic.
type ServerDeps struct {
	Chatbots  ChatbotReader
	Usage     UsageReader
	Knowledge KnowledgeSearcher
	Plans     PlanResolver
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Addr    string // empty means tools are registered but no HTTP listener starts
	Name    string
	Version string
	APIKey  string // empty disables auth
}

// Server hosts the MCP tool and resource surface over streamable HTTP.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *http.Server
}

// NewServer creates the MCP server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithResourceCapabilities(true, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying MCP server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start begins serving MCP over streamable HTTP on the configured address.
func (s *Server) Start() error {
	if s.cfg.Addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", AuthMiddleware(s.cfg.APIKey, mcpserver.NewStreamableHTTPServer(s.mcpServer)))

	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("mcp server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server failed", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
