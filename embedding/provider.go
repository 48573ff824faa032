package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/cache"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
)

const (
	PROVIDER_TYPE_OPENAI = "openai"
	PROVIDER_TYPE_GEMINI = "gemini"
)

// ErrEmptyEmbedding is returned when the service yields no vector.
var ErrEmptyEmbedding = errors.New("embedding: empty vector")

// Provider converts text into a dense query vector.
type Provider interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	GetProviderType() string
}

// NewEmbeddingProvider builds the provider named in cfg and wraps it in the
// configured query cache.
func NewEmbeddingProvider(ctx context.Context, cfg config.EmbeddingConfig, cc config.CacheConfig) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case PROVIDER_TYPE_OPENAI:
		p, err = NewOpenAIProvider(cfg)
	case PROVIDER_TYPE_GEMINI:
		p, err = NewGeminiProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider type: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	switch cc.Provider {
	case "none":
		return p, nil
	case "redis":
		l2, rerr := cache.NewRedisVectorStore(cc)
		if rerr != nil {
			return nil, rerr
		}
		return NewCachedProvider(p, cfg.CacheSize, time.Duration(cfg.CacheTTLSeconds)*time.Second, l2), nil
	default:
		return NewCachedProvider(p, cfg.CacheSize, time.Duration(cfg.CacheTTLSeconds)*time.Second, nil), nil
	}
}

// CachedProvider memoizes query vectors in an LRU and, when configured, a
// shared Redis store. L2 failures are logged and never fail the call.
type CachedProvider struct {
	inner Provider
	l1    cache.Cache[[]float32]
	l2    cache.VectorStore
}

func NewCachedProvider(inner Provider, size int, ttl time.Duration, l2 cache.VectorStore) *CachedProvider {
	return &CachedProvider{inner: inner, l1: cache.NewLRU[[]float32](size, ttl), l2: l2}
}

func cacheKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func (c *CachedProvider) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if v, ok := c.l1.Get(key); ok {
		return v, nil
	}
	if c.l2 != nil {
		v, ok, err := c.l2.Get(ctx, key)
		if err != nil {
			logger.Warnf("embedding: l2 cache get failed: %v", err)
		} else if ok {
			c.l1.Set(key, v, 0)
			return v, nil
		}
	}
	v, err := c.inner.GetEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	c.l1.Set(key, v, 0)
	if c.l2 != nil {
		if err := c.l2.Set(ctx, key, v); err != nil {
			logger.Warnf("embedding: l2 cache set failed: %v", err)
		}
	}
	return v, nil
}

func (c *CachedProvider) GetProviderType() string { return c.inner.GetProviderType() }

// Close releases the shared cache connection, if any.
func (c *CachedProvider) Close() error {
	if c.l2 == nil {
		return nil
	}
	return c.l2.Close()
}
