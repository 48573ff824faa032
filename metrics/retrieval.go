package metrics

import (
	"encoding/json"
	"time"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
)

// TurnMetrics records one conversation turn end to end.
type TurnMetrics struct {
	TurnID    string    `json:"turn_id"`
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`

	// Router
	Route           string `json:"route"`
	EnhancedQuery   string `json:"enhanced_query,omitempty"`
	RouterFallback  bool   `json:"router_fallback"`
	RouterLatencyMs int64  `json:"router_latency_ms"`

	// Retrieval
	RetrievalPhases    []string `json:"retrieval_phases,omitempty"` // ["search", "relaxed_search", "rerank"]
	CandidatesFound    int      `json:"candidates_found"`
	FilterRelaxed      bool     `json:"filter_relaxed"`
	RerankEnabled      bool     `json:"rerank_enabled"`
	RerankFailed       bool     `json:"rerank_failed"`
	RerankLatencyMs    int64    `json:"rerank_latency_ms,omitempty"`
	ResultCount        int      `json:"result_count"`
	TopScore           float64  `json:"top_score,omitempty"`
	RetrievalLatencyMs int64    `json:"retrieval_latency_ms"`

	// Generation
	ContextLength       int   `json:"context_length"`
	GenerationFallback  bool  `json:"generation_fallback"`
	GenerationLatencyMs int64 `json:"generation_latency_ms"`
	PromptTokens        int   `json:"prompt_tokens,omitempty"`

	TotalLatencyMs int64  `json:"total_latency_ms"`
	Success        bool   `json:"success"`
	ErrorMsg       string `json:"error_msg,omitempty"`
}

func NewTurnMetrics(turnID, sessionID, query string) *TurnMetrics {
	return &TurnMetrics{
		TurnID:          turnID,
		SessionID:       sessionID,
		Query:           query,
		Timestamp:       time.Now(),
		RetrievalPhases: make([]string, 0, 3),
	}
}

// AddRetrievalPhase records a retrieval step. Safe on a nil receiver.
func (m *TurnMetrics) AddRetrievalPhase(phase string) {
	if m == nil {
		return
	}
	m.RetrievalPhases = append(m.RetrievalPhases, phase)
}

// Log writes the metrics as one JSON line.
func (m *TurnMetrics) Log() {
	if data, err := json.Marshal(m); err == nil {
		logger.Infof("[CONVRAG_METRICS] %s", string(data))
	}
}
