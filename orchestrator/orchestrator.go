package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/generator"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/memory"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/metrics"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/retrieval"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/router"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

// Orchestrator runs one conversation turn at a time per session:
// route, retrieve and assemble context for questions, generate, append to
// memory. Different sessions run concurrently.
type Orchestrator struct {
	Router    router.Router
	Retriever retrieval.Provider
	Generator *generator.Generator
	Memory    *memory.Manager

	TopK        int
	ContextTopK int
	// LLMModel is reported in detailed results.
	LLMModel string

	// fallback recovers when Router returns an error.
	fallback     *router.RuleBasedRouter
	fallbackOnce sync.Once
	closers      []func() error
}

func (o *Orchestrator) keywordRouter() *router.RuleBasedRouter {
	o.fallbackOnce.Do(func() {
		if o.fallback == nil {
			o.fallback = router.NewRuleBasedRouter(nil)
		}
	})
	return o.fallback
}

// SubmitTurn processes one user message.
func (o *Orchestrator) SubmitTurn(ctx context.Context, sessionID, message string) TurnResult {
	return o.SubmitTurnWithDetails(ctx, sessionID, message, false)
}

// SubmitTurnWithDetails also reports per-chunk scores and prompt sizes when
// details is set.
func (o *Orchestrator) SubmitTurnWithDetails(ctx context.Context, sessionID, message string, details bool) TurnResult {
	start := time.Now()
	if sessionID == "" {
		sessionID = memory.DefaultSessionID
	}
	res := TurnResult{SessionID: sessionID, TurnID: uuid.NewString()}
	log := logger.With("session_id", sessionID, "turn_id", res.TurnID)

	query := strings.TrimSpace(message)
	if query == "" {
		res.Answer = EmptyMessageAnswer
		res.MemoryStats = o.Memory.Peek(sessionID).Stats()
		res.ProcessingTimeMs = time.Since(start).Milliseconds()
		return res
	}

	window, release := o.Memory.Acquire(sessionID)
	defer release()

	m := metrics.NewTurnMetrics(res.TurnID, sessionID, query)
	defer func() {
		m.Route = string(res.Route)
		m.Success = res.Success
		m.TotalLatencyMs = time.Since(start).Milliseconds()
		metrics.ObserveTurn(string(res.Route), res.Success, start)
		m.Log()
	}()

	// route
	routeStart := time.Now()
	qc, err := o.Router.Route(ctx, query, window.Summary())
	if err != nil {
		log.Warnw("orchestrator: router failed, using keyword fallback", "stage", "router", "err", err)
		qc, _ = o.keywordRouter().Route(ctx, query, "")
		qc.Fallback = true
	}
	if qc.Fallback {
		metrics.IncFallback("router")
	}
	if qc.Route == schema.RouteQuestion && qc.EnhancedQuery == query {
		qc.EnhancedQuery = window.Enhance(query)
		qc.SubQueries = []string{qc.EnhancedQuery}
	}
	m.RouterLatencyMs = time.Since(routeStart).Milliseconds()
	m.RouterFallback = qc.Fallback
	m.EnhancedQuery = qc.EnhancedQuery
	res.Route = qc.Route
	res.EnhancedQuery = qc.EnhancedQuery

	// retrieve and assemble; greetings never touch the store
	var results []schema.RankedResult
	contextText := ""
	if qc.Route == schema.RouteQuestion {
		results, err = o.Retriever.Retrieve(ctx, qc.EnhancedQuery, nil, o.TopK, m)
		if err != nil {
			log.Warnw("orchestrator: retrieval failed", "stage", "retrieval", "err", err)
			metrics.IncFallback("store")
			m.ErrorMsg = err.Error()
			res.Answer = ErrorAnswer
			window.Append(schema.ConversationTurn{
				UserInput:   qc.EnhancedQuery,
				BotResponse: ErrorAnswer,
				Intent:      qc.Intent,
			})
			res.MemoryStats = window.Stats()
			res.ProcessingTimeMs = time.Since(start).Milliseconds()
			return res
		}
		contextText = generator.BuildContext(qc.Route, results, o.ContextTopK)
	}
	history := window.FormattedHistory()

	// generate
	genStart := time.Now()
	ans := o.Generator.Generate(ctx, qc, contextText, history, qc.Route)
	if ans.Fallback {
		metrics.IncFallback("generation")
	}
	m.GenerationLatencyMs = time.Since(genStart).Milliseconds()
	m.GenerationFallback = ans.Fallback
	m.ContextLength = len(contextText)
	m.PromptTokens = ans.PromptTokens

	turn := schema.ConversationTurn{
		UserInput:   qc.EnhancedQuery,
		BotResponse: ans.Text,
		Intent:      qc.Intent,
	}
	if len(results) > 0 {
		turn.ProductID = results[0].Metadata.ProductID
		turn.ProductName = results[0].Metadata.Name
	}
	window.Append(turn)

	res.Success = true
	res.Answer = ans.Text
	res.DocumentsFound = len(results)
	res.IDProduct = turn.ProductID
	res.NameProduct = turn.ProductName
	res.MemoryStats = window.Stats()
	if details {
		res.ChunksInfo = chunksInfo(results)
		res.ContextInfo = &ContextInfo{
			ContextLength:           len([]rune(contextText)),
			HistoryLength:           len([]rune(history)),
			DocumentsUsedForContext: documentsUsed(qc.Route, len(results), o.ContextTopK),
			Route:                   qc.Route,
			LLMModel:                o.LLMModel,
			RouterFallback:          qc.Fallback,
			FallbackUsed:            ans.Fallback,
			PromptTokens:            ans.PromptTokens,
		}
	}
	res.ProcessingTimeMs = time.Since(start).Milliseconds()
	log.Infof("orchestrator: route=%s documents=%d fallback=%v elapsed_ms=%d",
		res.Route, res.DocumentsFound, ans.Fallback, res.ProcessingTimeMs)
	return res
}

func documentsUsed(route schema.Route, n, topK int) int {
	if route == schema.RouteGreeting {
		return 0
	}
	if topK > 0 && n > topK {
		return topK
	}
	return n
}

// GetSummary returns the compact memory digest for a session.
func (o *Orchestrator) GetSummary(sessionID string) string {
	return o.Memory.Peek(sessionID).Summary()
}

func (o *Orchestrator) GetStats(sessionID string) memory.Stats {
	return o.Memory.Peek(sessionID).Stats()
}

// Clear forgets the session's turns and entities.
func (o *Orchestrator) Clear(sessionID string) {
	o.Memory.Clear(sessionID)
}
