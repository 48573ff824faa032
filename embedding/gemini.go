package embedding

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
)

const defaultGeminiEmbeddingModel = "gemini-embedding-001"

type GeminiProvider struct {
	client     *genai.Client
	model      string
	dimensions int
	timeout    time.Duration
}

func NewGeminiProvider(ctx context.Context, cfg config.EmbeddingConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini embedding: api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiEmbeddingModel
	}
	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{
		client:     client,
		model:      model,
		dimensions: cfg.Dimensions,
		timeout:    config.Duration(cfg.TimeoutMs, 5*time.Second),
	}, nil
}

func (p *GeminiProvider) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	req := &genai.EmbedContentConfig{TaskType: "RETRIEVAL_QUERY"}
	if p.dimensions > 0 {
		req.OutputDimensionality = genai.Ptr(int32(p.dimensions))
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	result, err := p.client.Models.EmbedContent(ctx, p.model, contents, req)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed, err: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return result.Embeddings[0].Values, nil
}

func (p *GeminiProvider) GetProviderType() string { return PROVIDER_TYPE_GEMINI }
