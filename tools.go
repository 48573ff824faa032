package convrag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/memory"
)

func GetSubmitTurnSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"message": {
				"type": "string",
				"description": "The user message to answer"
			},
			"session_id": {
				"type": "string",
				"description": "Conversation session identifier; turns of different sessions never share memory"
			},
			"show_details": {
				"type": "boolean",
				"description": "Include per-chunk scores and prompt sizes in the result"
			}
		},
		"required": ["message"]
	}`)
}

func GetSessionSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"session_id": {
				"type": "string",
				"description": "Conversation session identifier"
			}
		}
	}`)
}

func HandleSubmitTurn(conv Conversation) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := request.RequireString("message")
		if err != nil {
			return mcp.NewToolResultError("invalid message argument"), nil
		}
		sessionID := sessionArg(request)
		details := request.GetBool("show_details", false)

		result := conv.SubmitTurnWithDetails(ctx, sessionID, message, details)
		return jsonResult(result)
	}
}

func HandleGetSummary(conv Conversation) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := sessionArg(request)
		return jsonResult(map[string]any{
			"session_id": sessionID,
			"summary":    conv.GetSummary(sessionID),
		})
	}
}

func HandleGetStats(conv Conversation) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := sessionArg(request)
		return jsonResult(map[string]any{
			"session_id": sessionID,
			"stats":      conv.GetStats(sessionID),
		})
	}
}

func HandleClearMemory(conv Conversation) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := sessionArg(request)
		conv.Clear(sessionID)
		logger.Infof("mcp: cleared memory of session %s", sessionID)
		return jsonResult(map[string]any{
			"session_id": sessionID,
			"cleared":    true,
		})
	}
}

func sessionArg(request mcp.CallToolRequest) string {
	id := strings.TrimSpace(request.GetString("session_id", ""))
	if id == "" {
		return memory.DefaultSessionID
	}
	return id
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result failed, err: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
