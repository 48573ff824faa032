package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

type mockLLM struct {
	reply   string
	err     error
	block   bool
	prompts []string
}

func (m *mockLLM) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.reply, m.err
}

func (m *mockLLM) GetProviderType() string { return "mock" }

func TestParseUnifiedResponse(t *testing.T) {
	cases := []struct {
		name     string
		reply    string
		route    schema.Route
		enhanced string
	}{
		{"well formed", "Intent: QUESTION\nEnhanced_Query: Anessa giá bao nhiêu?", schema.RouteQuestion, "Anessa giá bao nhiêu?"},
		{"greeting", "Intent: GREETING\nEnhanced_Query: Xin chào", schema.RouteGreeting, "Xin chào"},
		{"arrows and case", "→ intent: greeting\n→ enhanced_query: Cảm ơn bạn", schema.RouteGreeting, "Cảm ơn bạn"},
		{"unknown intent", "Intent: SMALLTALK\nEnhanced_Query: q2", schema.RouteQuestion, "q2"},
		{"missing rewrite uses last free line", "Intent: QUESTION\nAnessa có tốt không?", schema.RouteQuestion, "Anessa có tốt không?"},
		{"empty reply", "", schema.RouteQuestion, "nó có tốt không"},
		{"blank rewrite", "Intent: QUESTION\nEnhanced_Query:   ", schema.RouteQuestion, "nó có tốt không"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			qc := parseUnifiedResponse(tc.reply, "nó có tốt không")
			assert.Equal(t, tc.route, qc.Route)
			assert.Equal(t, string(tc.route), qc.Intent)
			assert.Equal(t, tc.enhanced, qc.EnhancedQuery)
			assert.Equal(t, []string{tc.enhanced}, qc.SubQueries)
			assert.Equal(t, "nó có tốt không", qc.OriginalQuery)
		})
	}
}

func TestUnifiedPromptCarriesInputs(t *testing.T) {
	p := UnifiedPrompt("nó giá bao nhiêu", "Thương hiệu đã đề cập: Anessa")
	assert.Contains(t, p, `CÂU HỎI HIỆN TẠI: "nó giá bao nhiêu"`)
	assert.Contains(t, p, "Thương hiệu đã đề cập: Anessa")
	assert.Contains(t, UnifiedPrompt("q", "  "), noSummary)
}

func TestLLMRouterResolvesAnaphor(t *testing.T) {
	m := &mockLLM{reply: "Intent: QUESTION\nEnhanced_Query: Anessa giá bao nhiêu"}
	qc, err := NewLLMRouter(m).Route(context.Background(), "nó giá bao nhiêu", "Thương hiệu đã đề cập: Anessa")
	require.NoError(t, err)
	assert.Equal(t, schema.RouteQuestion, qc.Route)
	assert.Contains(t, qc.EnhancedQuery, "Anessa")
	assert.False(t, qc.Fallback)
	require.Len(t, m.prompts, 1)
}

func TestLLMRouterRejectsInjectedEntity(t *testing.T) {
	m := &mockLLM{reply: "Intent: QUESTION\nEnhanced_Query: Vichy giá bao nhiêu"}
	qc, err := NewLLMRouter(m).Route(context.Background(), "giá bao nhiêu", "Thương hiệu đã đề cập: Anessa")
	require.NoError(t, err)
	assert.Equal(t, "giá bao nhiêu", qc.EnhancedQuery)
	assert.Equal(t, []string{"giá bao nhiêu"}, qc.SubQueries)
}

func TestRuleBasedRouter(t *testing.T) {
	r := NewRuleBasedRouter(nil)
	for q, want := range map[string]schema.Route{
		"Xin chào":               schema.RouteGreeting,
		"CẢM ƠN BẠN nhiều":       schema.RouteGreeting,
		"bye nhé":                schema.RouteGreeting,
		"kem dưỡng cho da khô":   schema.RouteQuestion,
		"Cetaphil giá bao nhiêu": schema.RouteQuestion,
		"chi tiết sản phẩm":      schema.RouteQuestion,
	} {
		qc, err := r.Route(context.Background(), q, "")
		require.NoError(t, err)
		assert.Equal(t, want, qc.Route, q)
		assert.Equal(t, q, qc.EnhancedQuery)
	}

	custom := NewRuleBasedRouter([]string{" Hey "})
	qc, _ := custom.Route(context.Background(), "hey there", "")
	assert.Equal(t, schema.RouteGreeting, qc.Route)
	qc, _ = custom.Route(context.Background(), "xin chào", "")
	assert.Equal(t, schema.RouteQuestion, qc.Route)
}

func TestHybridRouterFallsBackOnError(t *testing.T) {
	m := &mockLLM{err: errors.New("quota exceeded")}
	r := NewHybridRouter(NewLLMRouter(m), NewRuleBasedRouter(nil), time.Second)

	qc, err := r.Route(context.Background(), "Xin chào", "Thương hiệu đã đề cập: Anessa")
	require.NoError(t, err)
	assert.Equal(t, schema.RouteGreeting, qc.Route)
	assert.True(t, qc.Fallback)

	qc, err = r.Route(context.Background(), "nó giá bao nhiêu", "Thương hiệu đã đề cập: Anessa")
	require.NoError(t, err)
	assert.Equal(t, schema.RouteQuestion, qc.Route)
	assert.Equal(t, "nó giá bao nhiêu", qc.EnhancedQuery, "fallback never rewrites")
}

func TestHybridRouterFallsBackOnTimeout(t *testing.T) {
	m := &mockLLM{block: true}
	r := NewHybridRouter(NewLLMRouter(m), NewRuleBasedRouter(nil), 10*time.Millisecond)

	start := time.Now()
	qc, err := r.Route(context.Background(), "thanks", "")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, schema.RouteGreeting, qc.Route)
	assert.True(t, qc.Fallback)
}

func TestNewRouter(t *testing.T) {
	m := &mockLLM{}
	r, err := NewRouter(config.RouterConfig{Provider: PROVIDER_TYPE_RULE}, nil)
	require.NoError(t, err)
	assert.IsType(t, &RuleBasedRouter{}, r)

	r, err = NewRouter(config.RouterConfig{Provider: PROVIDER_TYPE_LLM}, m)
	require.NoError(t, err)
	assert.IsType(t, &LLMRouter{}, r)

	r, err = NewRouter(config.RouterConfig{}, m)
	require.NoError(t, err)
	h, ok := r.(*HybridRouter)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, h.Timeout)

	_, err = NewRouter(config.RouterConfig{Provider: PROVIDER_TYPE_HYBRID}, nil)
	assert.Error(t, err)
	_, err = NewRouter(config.RouterConfig{Provider: "http"}, m)
	assert.Error(t, err)
}
