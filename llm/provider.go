package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
)

const (
	PROVIDER_TYPE_OPENAI = "openai"
	PROVIDER_TYPE_GEMINI = "gemini"
)

// ErrEmptyCompletion is returned when the model answers with no text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Provider generates a single completion for a prompt.
type Provider interface {
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
	GetProviderType() string
}

// NewLLMProvider builds the provider named in cfg.
func NewLLMProvider(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case PROVIDER_TYPE_OPENAI:
		return NewOpenAIProvider(cfg)
	case PROVIDER_TYPE_GEMINI:
		return NewGeminiProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider type: %s", cfg.Provider)
	}
}
