package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
)

type countingProvider struct {
	calls int32
	err   error
}

func (c *countingProvider) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingProvider) GetProviderType() string { return "counting" }

type memL2 struct {
	data   map[string][]float32
	getErr error
}

func (m *memL2) Get(ctx context.Context, key string) ([]float32, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memL2) Set(ctx context.Context, key string, vec []float32) error {
	m.data[key] = vec
	return nil
}

func (m *memL2) Close() error { return nil }

func TestCachedProviderMemoizesNormalizedQuery(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachedProvider(inner, 8, time.Minute, nil)

	a, err := p.GetEmbedding(context.Background(), "Kem chống nắng")
	require.NoError(t, err)
	b, err := p.GetEmbedding(context.Background(), "  kem chống nắng ")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.EqualValues(t, 1, atomic.LoadInt32(&inner.calls))
	assert.Equal(t, "counting", p.GetProviderType())
}

func TestCachedProviderUsesL2AndToleratesItsFailure(t *testing.T) {
	l2 := &memL2{data: map[string][]float32{"serum": {9, 9}}}
	inner := &countingProvider{}
	p := NewCachedProvider(inner, 8, time.Minute, l2)

	v, err := p.GetEmbedding(context.Background(), "serum")
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 9}, v)
	assert.EqualValues(t, 0, inner.calls)

	_, err = p.GetEmbedding(context.Background(), "toner")
	require.NoError(t, err)
	assert.Contains(t, l2.data, "toner")

	l2.getErr = errors.New("redis down")
	_, err = p.GetEmbedding(context.Background(), "mask")
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.calls)
}

func TestCachedProviderDoesNotCacheErrors(t *testing.T) {
	inner := &countingProvider{err: errors.New("quota")}
	p := NewCachedProvider(inner, 8, time.Minute, nil)
	_, err := p.GetEmbedding(context.Background(), "q")
	assert.Error(t, err)
	_, err = p.GetEmbedding(context.Background(), "q")
	assert.Error(t, err)
	assert.EqualValues(t, 2, inner.calls)
}

func TestOpenAIProviderGetEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["input"] != "serum" {
			t.Errorf("unexpected input %v", body["input"])
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": []float64{0.5, -0.25}}},
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	defer srv.Close()

	p, err := NewEmbeddingProvider(context.Background(),
		config.EmbeddingConfig{Provider: PROVIDER_TYPE_OPENAI, APIKey: "k", BaseURL: srv.URL + "/"},
		config.CacheConfig{Provider: "none"})
	require.NoError(t, err)
	v, err := p.GetEmbedding(context.Background(), "serum")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25}, v)
}

func TestNewEmbeddingProviderRejectsUnknown(t *testing.T) {
	_, err := NewEmbeddingProvider(context.Background(), config.EmbeddingConfig{Provider: "hf"}, config.CacheConfig{})
	assert.Error(t, err)
}
