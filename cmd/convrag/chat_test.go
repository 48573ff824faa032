package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/memory"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/orchestrator"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

type fakeConversation struct {
	messages []string
	sessions []string
	cleared  int
}

func (f *fakeConversation) SubmitTurnWithDetails(ctx context.Context, sessionID, message string, details bool) orchestrator.TurnResult {
	f.messages = append(f.messages, message)
	f.sessions = append(f.sessions, sessionID)
	return orchestrator.TurnResult{Success: true, Answer: "đáp: " + message, Route: schema.RouteQuestion, DocumentsFound: 2}
}

func (f *fakeConversation) GetSummary(string) string { return "Thương hiệu: Cetaphil" }

func (f *fakeConversation) GetStats(string) memory.Stats {
	return memory.Stats{TotalMessages: 2, WindowSize: 3}
}

func (f *fakeConversation) Clear(string) { f.cleared++ }

func TestChatLoop(t *testing.T) {
	conv := &fakeConversation{}
	in := strings.NewReader("Cetaphil giá bao nhiêu\n\n/summary\n/stats\n/clear\n/quit\nkhông được gửi\n")
	var out bytes.Buffer

	require.NoError(t, chatLoop(context.Background(), conv, "s-1", true, in, &out))

	assert.Equal(t, []string{"Cetaphil giá bao nhiêu"}, conv.messages)
	assert.Equal(t, []string{"s-1"}, conv.sessions)
	assert.Equal(t, 1, conv.cleared)
	text := out.String()
	assert.Contains(t, text, "đáp: Cetaphil giá bao nhiêu")
	assert.Contains(t, text, "route=QUESTION documents=2")
	assert.Contains(t, text, "Thương hiệu: Cetaphil")
	assert.Contains(t, text, "messages=2")
	assert.NotContains(t, text, "không được gửi")
}

func TestChatLoopEndsAtEOF(t *testing.T) {
	conv := &fakeConversation{}
	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), conv, "s-2", false, strings.NewReader("hi"), &out))
	assert.Equal(t, []string{"hi"}, conv.messages)
	assert.NotContains(t, out.String(), "route=")
}
