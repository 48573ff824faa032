package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/embedding"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/metrics"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/post"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/vectordb"
)

// Provider turns a query into ranked candidates.
type Provider interface {
	Retrieve(ctx context.Context, query string, filters schema.FilterSpec, topK int, m *metrics.TurnMetrics) ([]schema.RankedResult, error)
}

// Engine embeds the query, searches the candidate store with one unfiltered
// retry, and reranks the pool when a reranker is configured.
type Engine struct {
	Embedder embedding.Provider
	Store    vectordb.CandidateStore
	// Reranker is nil when reranking is disabled.
	Reranker      *post.Reranker
	RerankTimeout time.Duration
}

func NewEngine(embedder embedding.Provider, store vectordb.CandidateStore, reranker *post.Reranker, cfg config.RerankConfig) *Engine {
	return &Engine{
		Embedder:      embedder,
		Store:         store,
		Reranker:      reranker,
		RerankTimeout: config.Duration(cfg.TimeoutMs, 5*time.Second),
	}
}

// Retrieve returns at most topK results. An empty result is not an error;
// errors mean the query could not be embedded or the store stayed unreachable.
func (e *Engine) Retrieve(ctx context.Context, query string, filters schema.FilterSpec, topK int, m *metrics.TurnMetrics) ([]schema.RankedResult, error) {
	start := time.Now()
	if topK <= 0 {
		topK = 5
	}
	pool := topK
	if e.Reranker != nil {
		pool = topK * 2
	}

	vector, err := e.Embedder.GetEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query failed, err: %v", vectordb.ErrStoreUnavailable, err)
	}

	filters = filters.Normalized()
	m.AddRetrievalPhase("search")
	candidates, err := e.Store.Search(ctx, vector, pool, filters)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 && filters != nil {
		logger.With("stage", "retrieval", "filters", filters).Warn("retrieval: filtered search found nothing, retrying without filters")
		metrics.IncFilterRelaxed()
		m.AddRetrievalPhase("relaxed_search")
		if m != nil {
			m.FilterRelaxed = true
		}
		candidates, err = e.Store.Search(ctx, vector, pool, nil)
		if err != nil {
			return nil, err
		}
	}
	if m != nil {
		m.CandidatesFound = len(candidates)
		m.RerankEnabled = e.Reranker != nil
	}

	var ranked []schema.RankedResult
	if e.Reranker != nil && len(candidates) > 0 {
		ranked = e.rerank(ctx, query, candidates, m)
	} else {
		ranked = post.RankByVector(candidates)
	}
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	metrics.ObserveRetrieval(len(ranked))
	if m != nil {
		m.ResultCount = len(ranked)
		if len(ranked) > 0 {
			m.TopScore = ranked[0].FinalScore()
		}
		m.RetrievalLatencyMs = time.Since(start).Milliseconds()
	}
	logger.Debugf("retrieval: query=%q candidates=%d results=%d", query, len(candidates), len(ranked))
	return ranked, nil
}

// rerank falls back to vector order on any scorer failure.
func (e *Engine) rerank(ctx context.Context, query string, candidates []schema.Candidate, m *metrics.TurnMetrics) []schema.RankedResult {
	m.AddRetrievalPhase("rerank")
	rctx := ctx
	if e.RerankTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, e.RerankTimeout)
		defer cancel()
	}
	start := time.Now()
	ranked, err := e.Reranker.Rerank(rctx, query, candidates)
	metrics.ObserveRerank(start, err)
	if m != nil {
		m.RerankLatencyMs = time.Since(start).Milliseconds()
		m.RerankFailed = err != nil
	}
	if err != nil {
		if !errors.Is(err, post.ErrRerankFailed) {
			err = fmt.Errorf("%w: %v", post.ErrRerankFailed, err)
		}
		logger.With("stage", "rerank", "err", err).Warn("retrieval: rerank failed, keeping vector order")
		return post.RankByVector(candidates)
	}
	return ranked
}
