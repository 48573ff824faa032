package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
)

const defaultOpenAIEmbeddingModel = "text-embedding-3-small"

type OpenAIProvider struct {
	client     openai.Client
	model      string
	dimensions int
}

func NewOpenAIProvider(cfg config.EmbeddingConfig) (*OpenAIProvider, error) {
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIEmbeddingModel
	}
	opts := []option.RequestOption{
		option.WithRequestTimeout(config.Duration(cfg.TimeoutMs, 5*time.Second)),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIProvider{client: openai.NewClient(opts...), model: model, dimensions: cfg.Dimensions}, nil
}

func (p *OpenAIProvider) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(p.model),
	}
	if p.dimensions > 0 {
		params.Dimensions = openai.Int(int64(p.dimensions))
	}
	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embedding failed, err: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, f := range src {
		vec[i] = float32(f)
	}
	return vec, nil
}

func (p *OpenAIProvider) GetProviderType() string { return PROVIDER_TYPE_OPENAI }
