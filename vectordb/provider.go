package vectordb

import (
	"context"
	"errors"
	"fmt"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

const (
	PROVIDER_TYPE_MILVUS = "milvus"
	PROVIDER_TYPE_MEMORY = "memory"
)

// ErrStoreUnavailable marks a search that could not reach the store even
// after its retry.
var ErrStoreUnavailable = errors.New("vectordb: store unavailable")

// CandidateStore is the query side of the product index. Results are ordered
// by similarity, best first.
type CandidateStore interface {
	Search(ctx context.Context, vector []float32, limit int, filter schema.FilterSpec) ([]schema.Candidate, error)
	GetProviderType() string
	Close() error
}

// NewVectorDBProvider opens the store named in cfg.
func NewVectorDBProvider(ctx context.Context, cfg *config.VectorDBConfig) (CandidateStore, error) {
	switch cfg.Provider {
	case PROVIDER_TYPE_MILVUS:
		return NewMilvusStore(ctx, cfg)
	case PROVIDER_TYPE_MEMORY:
		s := NewMemoryStore()
		if cfg.Seed != "" {
			if err := s.LoadFile(cfg.Seed); err != nil {
				return nil, fmt.Errorf("load seed failed, err: %w", err)
			}
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown vector database provider type: %s", cfg.Provider)
	}
}
