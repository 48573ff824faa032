package llm

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
)

const defaultEncoding = "cl100k_base"

// TokenCounter estimates prompt sizes with a BPE encoding. It loads the
// encoding lazily and falls back to a rune based estimate when the encoding
// cannot be loaded.
type TokenCounter struct {
	model string
	once  sync.Once
	enc   *tiktoken.Tiktoken
}

func NewTokenCounter(model string) *TokenCounter {
	return &TokenCounter{model: model}
}

func (t *TokenCounter) load() {
	t.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(t.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding(defaultEncoding)
		}
		if err != nil {
			logger.Warnf("llm: token encoding unavailable, using estimate: %v", err)
			return
		}
		t.enc = enc
	})
}

// Count returns the number of tokens in text.
func (t *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	t.load()
	if t.enc == nil {
		return EstimateTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// EstimateTokens approximates a token count at four runes per token.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
