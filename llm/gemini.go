package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
)

// GeminiProvider generates completions with the Google GenAI SDK.
type GeminiProvider struct {
	client  *genai.Client
	model   string
	gen     *genai.GenerateContentConfig
	// timeout bounds each call; the SDK applies none by default.
	timeout time.Duration
}

func NewGeminiProvider(ctx context.Context, cfg config.LLMConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini llm: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	gen := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(cfg.Temperature)),
	}
	if cfg.MaxTokens > 0 {
		gen.MaxOutputTokens = int32(cfg.MaxTokens)
	}
	return &GeminiProvider{
		client:  client,
		model:   cfg.Model,
		gen:     gen,
		timeout: config.Duration(cfg.TimeoutMs, 30*time.Second),
	}, nil
}

func (p *GeminiProvider) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), p.gen)
	if err != nil {
		return "", fmt.Errorf("gemini completion failed, err: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func (p *GeminiProvider) GetProviderType() string { return PROVIDER_TYPE_GEMINI }
