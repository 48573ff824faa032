package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/llm"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/memory"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

const (
	PROVIDER_TYPE_LLM    = "llm"
	PROVIDER_TYPE_RULE   = "rule"
	PROVIDER_TYPE_HYBRID = "hybrid"
)

// DefaultGreetingKeywords is the lexicon used when the model is unavailable.
var DefaultGreetingKeywords = []string{
	"xin chào", "hello", "hi", "chào", "cảm ơn", "thanks", "tạm biệt", "bye",
}

// Router classifies a query and rewrites it against the memory summary.
type Router interface {
	Route(ctx context.Context, query, memorySummary string) (schema.QueryContext, error)
}

// LLMRouter classifies and rewrites in a single generation call.
type LLMRouter struct {
	Provider llm.Provider
}

func NewLLMRouter(provider llm.Provider) *LLMRouter {
	return &LLMRouter{Provider: provider}
}

// Route returns an error only when the generation call itself fails. A
// malformed reply is parsed with safe defaults.
func (r *LLMRouter) Route(ctx context.Context, query, memorySummary string) (schema.QueryContext, error) {
	reply, err := r.Provider.GenerateCompletion(ctx, UnifiedPrompt(query, memorySummary))
	if err != nil {
		return schema.QueryContext{}, fmt.Errorf("route query failed, err: %w", err)
	}
	qc := parseUnifiedResponse(reply, query)
	if qc.EnhancedQuery != query && injectsEntity(qc.EnhancedQuery, query, memorySummary) {
		logger.Warnf("router: rewrite %q names an entity absent from query and memory, keeping original", qc.EnhancedQuery)
		qc.EnhancedQuery = query
		qc.SubQueries = []string{query}
	}
	logger.Debugf("router: route=%s enhanced=%q", qc.Route, qc.EnhancedQuery)
	return qc, nil
}

// RuleBasedRouter assigns intent from a greeting lexicon and never rewrites.
// Keywords match case-insensitively on word boundaries, so "hi" does not fire
// inside "Cetaphil".
type RuleBasedRouter struct {
	keywords []string
}

// NewRuleBasedRouter uses DefaultGreetingKeywords when keywords is empty.
func NewRuleBasedRouter(keywords []string) *RuleBasedRouter {
	if len(keywords) == 0 {
		keywords = DefaultGreetingKeywords
	}
	lower := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lower = append(lower, k)
		}
	}
	return &RuleBasedRouter{keywords: lower}
}

func (r *RuleBasedRouter) Route(_ context.Context, query, _ string) (schema.QueryContext, error) {
	route := schema.RouteQuestion
	q := strings.ToLower(query)
	for _, k := range r.keywords {
		if memory.ContainsWord(q, k) {
			route = schema.RouteGreeting
			break
		}
	}
	return schema.QueryContext{
		OriginalQuery: query,
		EnhancedQuery: query,
		Intent:        string(route),
		Route:         route,
		SubQueries:    []string{query},
	}, nil
}

// HybridRouter asks the model first and recovers locally with the keyword
// lexicon when the call fails or exceeds the timeout.
type HybridRouter struct {
	Primary  Router
	Fallback *RuleBasedRouter
	Timeout  time.Duration
}

func NewHybridRouter(primary Router, fallback *RuleBasedRouter, timeout time.Duration) *HybridRouter {
	return &HybridRouter{Primary: primary, Fallback: fallback, Timeout: timeout}
}

// Route never returns an error.
func (r *HybridRouter) Route(ctx context.Context, query, memorySummary string) (schema.QueryContext, error) {
	callCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	qc, err := r.Primary.Route(callCtx, query, memorySummary)
	if err == nil {
		return qc, nil
	}
	logger.With("stage", "router", "err", err).Warn("router: model call failed, using keyword fallback")
	qc, _ = r.Fallback.Route(ctx, query, memorySummary)
	qc.Fallback = true
	return qc, nil
}

// NewRouter builds the router named in cfg. provider may be nil only for the
// rule router.
func NewRouter(cfg config.RouterConfig, provider llm.Provider) (Router, error) {
	rule := NewRuleBasedRouter(cfg.GreetingKeywords)
	switch cfg.Provider {
	case PROVIDER_TYPE_RULE:
		return rule, nil
	case PROVIDER_TYPE_LLM, PROVIDER_TYPE_HYBRID, "":
		if provider == nil {
			return nil, fmt.Errorf("router provider %q requires an llm provider", cfg.Provider)
		}
		if cfg.Provider == PROVIDER_TYPE_LLM {
			return NewLLMRouter(provider), nil
		}
		return NewHybridRouter(NewLLMRouter(provider), rule, config.Duration(cfg.TimeoutMs, 10*time.Second)), nil
	default:
		return nil, fmt.Errorf("unknown router provider type: %s", cfg.Provider)
	}
}
