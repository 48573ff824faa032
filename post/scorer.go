package post

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/httpx"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/llm"
)

// Scorer returns one relevance score in [0,1] per text, in input order. The
// score of a pair never depends on the other texts in the call.
type Scorer interface {
	ScoreBatch(ctx context.Context, query string, texts []string) ([]float64, error)
}

// ModelScorer calls a dedicated cross-encoder service (e.g. bge-reranker).
// Request body:
// {"query":"...","documents":["..."],"model":"..."}
// Either response shape is accepted:
// {"results":[{"index":0,"relevance_score":0.9}]}
// {"ranking":[{"index":0,"score":0.9}]}
type ModelScorer struct {
	Endpoint string
	Model    string
	APIKey   string
	// Logits marks services that return raw logits; scores then pass through a sigmoid.
	Logits bool
	Client *httpx.Client
}

type modelScoreReq struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

func (m *ModelScorer) ScoreBatch(ctx context.Context, query string, texts []string) ([]float64, error) {
	if m.Endpoint == "" {
		return nil, fmt.Errorf("rerank endpoint is not configured")
	}
	bs, err := json.Marshal(modelScoreReq{Query: query, Documents: texts, Model: m.Model})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("create rerank request failed, err: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+m.APIKey)
	}
	if m.Client == nil {
		m.Client = httpx.NewFromConfig(nil)
	}
	resp, err := m.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed, err: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rerank response failed, err: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("rerank service returned status %d", resp.StatusCode)
	}
	scores, err := parseScores(body, len(texts))
	if err != nil {
		return nil, err
	}
	for i, s := range scores {
		if m.Logits {
			s = 1 / (1 + math.Exp(-s))
		}
		scores[i] = clamp01(s)
	}
	return scores, nil
}

// parseScores reads indexed scores and requires exactly one per document.
func parseScores(body []byte, n int) ([]float64, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("rerank response is not valid json")
	}
	root := gjson.ParseBytes(body)
	items := root.Get("results")
	scoreKey := "relevance_score"
	if !items.IsArray() {
		items = root.Get("ranking")
		scoreKey = "score"
	}
	if !items.IsArray() {
		return nil, fmt.Errorf("rerank response has neither results nor ranking")
	}
	scores := make([]float64, n)
	seen := make([]bool, n)
	var perr error
	items.ForEach(func(_, item gjson.Result) bool {
		idx := item.Get("index")
		val := item.Get(scoreKey)
		if !val.Exists() {
			val = item.Get("score")
		}
		if !idx.Exists() || !val.Exists() {
			perr = fmt.Errorf("rerank item missing index or score: %s", item.Raw)
			return false
		}
		i := int(idx.Int())
		if i < 0 || i >= n {
			perr = fmt.Errorf("rerank item index %d out of range", i)
			return false
		}
		scores[i] = val.Float()
		seen[i] = true
		return true
	})
	if perr != nil {
		return nil, perr
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank response missing score for document %d", i)
		}
	}
	return scores, nil
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

const llmScorePrompt = `You are an expert at evaluating document relevance for search queries.
Rate the document on a scale from 0 to 10 based on how well it answers the query.

Guidelines:
- Score 0-2: Document is completely irrelevant
- Score 3-5: Document has some relevant information but doesn't directly answer the query
- Score 6-8: Document is relevant and partially answers the query
- Score 9-10: Document is highly relevant and directly answers the query

You MUST respond with ONLY a single number between 0 and 10.

Query: %s
Document:
%s

Score:`

var scoreRegex = regexp.MustCompile(`\b(10(?:\.0+)?|[0-9](?:\.[0-9]+)?)\b`)

// LLMScorer asks a generation model for a 0-10 relevance score per document.
type LLMScorer struct {
	Provider llm.Provider
}

func (l *LLMScorer) ScoreBatch(ctx context.Context, query string, texts []string) ([]float64, error) {
	if l.Provider == nil {
		return nil, fmt.Errorf("llm scorer has no provider")
	}
	scores := make([]float64, len(texts))
	for i, text := range texts {
		response, err := l.Provider.GenerateCompletion(ctx, fmt.Sprintf(llmScorePrompt, query, text))
		if err != nil {
			return nil, fmt.Errorf("score document %d failed, err: %w", i, err)
		}
		s, err := parseLLMScore(response)
		if err != nil {
			return nil, fmt.Errorf("score document %d: %w", i, err)
		}
		scores[i] = s
	}
	return scores, nil
}

func parseLLMScore(response string) (float64, error) {
	match := scoreRegex.FindStringSubmatch(strings.TrimSpace(response))
	if match == nil {
		return 0, fmt.Errorf("could not extract score from %q", response)
	}
	v, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, err
	}
	return clamp01(v / 10), nil
}

const (
	PROVIDER_TYPE_MODEL = "model"
	PROVIDER_TYPE_LLM   = "llm"
)

// NewScorer builds the scorer named in cfg. provider is only used by the llm
// scorer.
func NewScorer(cfg config.RerankConfig, httpCfg *config.HTTPClientConfig, provider llm.Provider) (Scorer, error) {
	switch cfg.Provider {
	case PROVIDER_TYPE_MODEL, "":
		var hc config.HTTPClientConfig
		if httpCfg != nil {
			hc = *httpCfg
		}
		if cfg.TimeoutMs > 0 {
			hc.TimeoutMs = cfg.TimeoutMs
		}
		return &ModelScorer{
			Endpoint: cfg.Endpoint,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
			Logits:   cfg.Logits,
			Client:   httpx.NewFromConfig(&hc).WithRPS(cfg.RPS),
		}, nil
	case PROVIDER_TYPE_LLM:
		if provider == nil {
			return nil, fmt.Errorf("llm scorer requires an llm provider")
		}
		return &LLMScorer{Provider: provider}, nil
	default:
		return nil, fmt.Errorf("unknown rerank provider type: %s", cfg.Provider)
	}
}
