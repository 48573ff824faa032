package generator

import (
	"context"
	"time"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/llm"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

// Fixed answers used when the model cannot be reached.
const (
	FallbackGreeting = "Xin chào! Tôi có thể giúp gì cho bạn về mỹ phẩm?"
	FallbackQuestion = "Xin lỗi, tôi không thể trả lời câu hỏi này. Bạn có thể hỏi khác không?"
)

// Answer is the generated reply for one turn.
type Answer struct {
	Text         string
	Fallback     bool
	PromptTokens int
}

type Generator struct {
	Provider llm.Provider
	Timeout  time.Duration
	Counter  *llm.TokenCounter
}

func NewGenerator(provider llm.Provider, cfg config.LLMConfig) *Generator {
	return &Generator{
		Provider: provider,
		Timeout:  config.Duration(cfg.TimeoutMs, 30*time.Second),
		Counter:  llm.NewTokenCounter(cfg.Model),
	}
}

// Generate picks the template for route and calls the model. A failed or
// empty completion yields the route's fallback text and the error is only
// logged.
func (g *Generator) Generate(ctx context.Context, qc schema.QueryContext, contextText, history string, route schema.Route) Answer {
	query := qc.EnhancedQuery
	if query == "" {
		query = qc.OriginalQuery
	}
	var prompt, fallback string
	if route == schema.RouteGreeting {
		prompt, fallback = GreetingPrompt(query, history), FallbackGreeting
	} else {
		prompt, fallback = QuestionPrompt(query, contextText, history), FallbackQuestion
	}

	ans := Answer{}
	if g.Counter != nil {
		ans.PromptTokens = g.Counter.Count(prompt)
	}
	if g.Provider == nil {
		ans.Text, ans.Fallback = fallback, true
		return ans
	}

	callCtx := ctx
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}
	text, err := g.Provider.GenerateCompletion(callCtx, prompt)
	if err == nil && text == "" {
		err = llm.ErrEmptyCompletion
	}
	if err != nil {
		logger.With("stage", "generation", "route", string(route), "err", err).Warn("generator: completion failed, using fallback answer")
		ans.Text, ans.Fallback = fallback, true
		return ans
	}
	logger.Debugf("generator: route=%s prompt_tokens=%d context_chars=%d history_chars=%d",
		route, ans.PromptTokens, len(contextText), len(history))
	ans.Text = text
	return ans
}
