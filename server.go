package convrag

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/memory"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/orchestrator"
)

const Version = "1.0.0"

const serverName = "convrag"

// Conversation is the turn surface the MCP tools and the HTTP api drive.
// *orchestrator.Orchestrator implements it.
type Conversation interface {
	SubmitTurnWithDetails(ctx context.Context, sessionID, message string, details bool) orchestrator.TurnResult
	GetSummary(sessionID string) string
	GetStats(sessionID string) memory.Stats
	Clear(sessionID string)
}

type ConvRAGConfig struct {
	config *config.Config
}

// NewConvRAGConfig starts from config.Default; overlay host settings with
// ParseConfig.
func NewConvRAGConfig(cfg *config.Config) *ConvRAGConfig {
	if cfg == nil {
		cfg = config.Default()
	}
	return &ConvRAGConfig{config: cfg}
}

func (c *ConvRAGConfig) Config() *config.Config {
	return c.config
}

func (c *ConvRAGConfig) ParseConfig(cfg map[string]any) error {
	return c.config.ParseConfig(cfg)
}

// NewServer builds the orchestrator from the parsed configuration and exposes
// it as MCP tools. The returned orchestrator must be closed by the caller.
func (c *ConvRAGConfig) NewServer(ctx context.Context, name string) (*server.MCPServer, *orchestrator.Orchestrator, error) {
	o, err := orchestrator.New(ctx, c.config)
	if err != nil {
		return nil, nil, fmt.Errorf("create orchestrator failed, err: %w", err)
	}
	return NewMCPServer(name, o), o, nil
}

// NewMCPServer registers the conversation tools on a fresh MCP server.
func NewMCPServer(name string, conv Conversation) *server.MCPServer {
	if name == "" {
		name = serverName
	}
	mcpServer := server.NewMCPServer(
		name,
		Version,
		server.WithToolCapabilities(false),
		server.WithInstructions("This is a conversational RAG server answering cosmetics product questions in Vietnamese, with per-session conversation memory"),
	)

	// Conversation Tools
	mcpServer.AddTool(
		mcp.NewToolWithRawSchema("submit-turn", "Answer one user message within a conversation session, retrieving product knowledge when the message is a question", GetSubmitTurnSchema()),
		HandleSubmitTurn(conv),
	)

	// Memory Tools
	mcpServer.AddTool(
		mcp.NewToolWithRawSchema("get-summary", "Return the compact memory digest (recent brands, categories and products) of a session", GetSessionSchema()),
		HandleGetSummary(conv),
	)
	mcpServer.AddTool(
		mcp.NewToolWithRawSchema("get-stats", "Return conversation memory statistics of a session", GetSessionSchema()),
		HandleGetStats(conv),
	)
	mcpServer.AddTool(
		mcp.NewToolWithRawSchema("clear-memory", "Forget every turn and remembered entity of a session", GetSessionSchema()),
		HandleClearMemory(conv),
	)

	return mcpServer
}
