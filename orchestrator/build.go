package orchestrator

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/embedding"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/generator"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/llm"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/memory"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/post"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/retrieval"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/router"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/vectordb"
)

// sweepInterval is how often idle sessions are collected.
const sweepInterval = time.Minute

// New wires every pipeline stage from cfg and starts the session sweeper.
// Callers must Close the orchestrator.
func New(ctx context.Context, cfg *config.Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider, err := llm.NewLLMProvider(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider failed, err: %w", err)
	}
	embedder, err := embedding.NewEmbeddingProvider(ctx, cfg.Embedding, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("create embedding provider failed, err: %w", err)
	}
	store, err := vectordb.NewVectorDBProvider(ctx, &cfg.VectorDB)
	if err != nil {
		closeEmbedder(embedder)
		return nil, fmt.Errorf("create vector database provider failed, err: %w", err)
	}

	var reranker *post.Reranker
	if cfg.Rerank.Enable {
		scorer, serr := post.NewScorer(cfg.Rerank, &cfg.HTTP, provider)
		if serr != nil {
			closeEmbedder(embedder)
			store.Close()
			return nil, fmt.Errorf("create rerank scorer failed, err: %w", serr)
		}
		reranker = post.NewReranker(scorer, cfg.Rerank)
	}

	rt, err := router.NewRouter(cfg.Router, provider)
	if err != nil {
		closeEmbedder(embedder)
		store.Close()
		return nil, fmt.Errorf("create router failed, err: %w", err)
	}

	mem := memory.NewManager(cfg.Memory, llm.NewTokenCounter(cfg.LLM.Model))
	mem.Start(context.Background(), sweepInterval)

	o := &Orchestrator{
		Router:      rt,
		Retriever:   retrieval.NewEngine(embedder, store, reranker, cfg.Rerank),
		Generator:   generator.NewGenerator(provider, cfg.LLM),
		Memory:      mem,
		TopK:        cfg.Retrieval.TopK,
		ContextTopK: cfg.Retrieval.ContextTopK,
		LLMModel:    cfg.LLM.Model,
	}
	o.closers = append(o.closers, mem.Close, store.Close)
	if c, ok := embedder.(io.Closer); ok {
		o.closers = append(o.closers, c.Close)
	}
	logger.Infof("orchestrator: llm=%s embedding=%s store=%s rerank=%v router=%s window=%d",
		provider.GetProviderType(), embedder.GetProviderType(), store.GetProviderType(),
		cfg.Rerank.Enable, cfg.Router.Provider, cfg.Memory.WindowSize)
	return o, nil
}

func closeEmbedder(p embedding.Provider) {
	if c, ok := p.(io.Closer); ok {
		c.Close()
	}
}

// Close releases the store, caches and the session sweeper.
func (o *Orchestrator) Close() error {
	var result *multierror.Error
	for _, c := range o.closers {
		if err := c(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	o.closers = nil
	return result.ErrorOrNil()
}
