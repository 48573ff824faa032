package orchestrator

import (
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/memory"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

// User facing answers for turns that could not be served normally.
const (
	EmptyMessageAnswer = "Vui lòng nhập câu hỏi của bạn!"
	ErrorAnswer        = "Xin lỗi, đã xảy ra lỗi khi xử lý câu hỏi của bạn."
)

// TurnResult is returned for every submitted message. It never carries a raw
// error.
type TurnResult struct {
	Success        bool         `json:"success"`
	Answer         string       `json:"answer"`
	Route          schema.Route `json:"route,omitempty"`
	EnhancedQuery  string       `json:"enhanced_query,omitempty"`
	DocumentsFound int          `json:"documents_found"`
	IDProduct      string       `json:"id_product,omitempty"`
	NameProduct    string       `json:"name_product,omitempty"`
	MemoryStats    memory.Stats `json:"memory_stats"`

	SessionID        string       `json:"session_id"`
	TurnID           string       `json:"turn_id,omitempty"`
	ProcessingTimeMs int64        `json:"processing_time_ms"`
	ChunksInfo       []ChunkInfo  `json:"chunks_info,omitempty"`
	ContextInfo      *ContextInfo `json:"context_info,omitempty"`
}

// ChunkInfo describes one ranked result in a detailed turn result.
type ChunkInfo struct {
	Rank             int      `json:"rank"`
	ProductID        string   `json:"product_id,omitempty"`
	Name             string   `json:"name,omitempty"`
	Brand            string   `json:"brand,omitempty"`
	Category         string   `json:"category,omitempty"`
	ChunkType        string   `json:"chunk_type,omitempty"`
	VectorScore      float64  `json:"vector_score"`
	RerankScore      *float64 `json:"rerank_score,omitempty"`
	ScoreImprovement float64  `json:"score_improvement"`
	RankChange       int      `json:"rank_change"`
}

// ContextInfo sizes the prompt inputs of a detailed turn result.
type ContextInfo struct {
	ContextLength           int          `json:"context_length"`
	HistoryLength           int          `json:"history_length"`
	DocumentsUsedForContext int          `json:"documents_used_for_context"`
	Route                   schema.Route `json:"route"`
	LLMModel                string       `json:"llm_model,omitempty"`
	RouterFallback          bool         `json:"router_fallback"`
	FallbackUsed            bool         `json:"fallback_used"`
	PromptTokens            int          `json:"prompt_tokens,omitempty"`
}

func chunksInfo(results []schema.RankedResult) []ChunkInfo {
	out := make([]ChunkInfo, len(results))
	for i, r := range results {
		out[i] = ChunkInfo{
			Rank:             i + 1,
			ProductID:        r.Metadata.ProductID,
			Name:             r.Metadata.Name,
			Brand:            r.Metadata.Brand,
			Category:         r.Metadata.CategoryName,
			ChunkType:        r.Metadata.Type,
			VectorScore:      r.VectorScore,
			RerankScore:      r.RerankScore,
			ScoreImprovement: r.ScoreImprovement,
			RankChange:       r.RankChange,
		}
	}
	return out
}
