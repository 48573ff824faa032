package convrag

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/memory"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/orchestrator"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

type fakeConversation struct {
	sessions []string
	messages []string
	details  []bool
	cleared  []string
}

func (f *fakeConversation) SubmitTurnWithDetails(ctx context.Context, sessionID, message string, details bool) orchestrator.TurnResult {
	f.sessions = append(f.sessions, sessionID)
	f.messages = append(f.messages, message)
	f.details = append(f.details, details)
	return orchestrator.TurnResult{
		Success:   true,
		Answer:    "Chào bạn!",
		Route:     schema.RouteGreeting,
		SessionID: sessionID,
	}
}

func (f *fakeConversation) GetSummary(sessionID string) string {
	return "Thương hiệu đã đề cập: Anessa"
}

func (f *fakeConversation) GetStats(sessionID string) memory.Stats {
	return memory.Stats{TotalMessages: 2, WindowSize: 3, MemoryType: "buffer_window"}
}

func (f *fakeConversation) Clear(sessionID string) {
	f.cleared = append(f.cleared, sessionID)
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content %T", res.Content[0])
	return ""
}

func TestHandleSubmitTurn(t *testing.T) {
	conv := &fakeConversation{}
	res, err := HandleSubmitTurn(conv)(context.Background(), callRequest(map[string]any{
		"message":      "Xin chào",
		"session_id":   "u-1",
		"show_details": true,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var got orchestrator.TurnResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	assert.True(t, got.Success)
	assert.Equal(t, "Chào bạn!", got.Answer)
	assert.Equal(t, schema.RouteGreeting, got.Route)
	assert.Equal(t, []string{"u-1"}, conv.sessions)
	assert.Equal(t, []string{"Xin chào"}, conv.messages)
	assert.Equal(t, []bool{true}, conv.details)
}

func TestHandleSubmitTurnDefaultsSession(t *testing.T) {
	conv := &fakeConversation{}
	_, err := HandleSubmitTurn(conv)(context.Background(), callRequest(map[string]any{"message": "hi"}))
	require.NoError(t, err)
	assert.Equal(t, []string{memory.DefaultSessionID}, conv.sessions)
	assert.Equal(t, []bool{false}, conv.details)
}

func TestHandleSubmitTurnRequiresMessage(t *testing.T) {
	conv := &fakeConversation{}
	res, err := HandleSubmitTurn(conv)(context.Background(), callRequest(map[string]any{"session_id": "u-1"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Empty(t, conv.messages)
}

func TestMemoryTools(t *testing.T) {
	conv := &fakeConversation{}
	ctx := context.Background()
	req := callRequest(map[string]any{"session_id": "u-2"})

	res, err := HandleGetSummary(conv)(ctx, req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"session_id":"u-2","summary":"Thương hiệu đã đề cập: Anessa"}`, resultText(t, res))

	res, err = HandleGetStats(conv)(ctx, req)
	require.NoError(t, err)
	var stats struct {
		SessionID string       `json:"session_id"`
		Stats     memory.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &stats))
	assert.Equal(t, "u-2", stats.SessionID)
	assert.Equal(t, 2, stats.Stats.TotalMessages)
	assert.Equal(t, "buffer_window", stats.Stats.MemoryType)

	res, err = HandleClearMemory(conv)(ctx, req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"session_id":"u-2","cleared":true}`, resultText(t, res))
	assert.Equal(t, []string{"u-2"}, conv.cleared)
}

func TestNewMCPServer(t *testing.T) {
	assert.NotNil(t, NewMCPServer("", &fakeConversation{}))
}
