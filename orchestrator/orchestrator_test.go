package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/generator"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/memory"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/retrieval"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/router"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/vectordb"
)

// scriptedLLM answers routing prompts and generation prompts separately.
type scriptedLLM struct {
	mu       sync.Mutex
	route    func(prompt string) (string, error)
	generate func(prompt string) (string, error)
	prompts  []string
}

func (s *scriptedLLM) GenerateCompletion(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	if strings.Contains(prompt, "Enhanced_Query:") {
		return s.route(prompt)
	}
	return s.generate(prompt)
}

func (s *scriptedLLM) GetProviderType() string { return "mock" }

type recordingEmbedder struct {
	mu      sync.Mutex
	queries []string
}

func (e *recordingEmbedder) GetEmbedding(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.queries = append(e.queries, text)
	e.mu.Unlock()
	return []float32{1, 0}, nil
}

func (e *recordingEmbedder) GetProviderType() string { return "mock" }

type countingStore struct {
	vectordb.CandidateStore
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingStore) Search(ctx context.Context, v []float32, limit int, f schema.FilterSpec) ([]schema.Candidate, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.CandidateStore.Search(ctx, v, limit, f)
}

// echoRoute classifies with the keyword lexicon and echoes the query back.
func echoRoute(prompt string) (string, error) {
	q := prompt[strings.Index(prompt, `CÂU HỎI HIỆN TẠI: "`)+len(`CÂU HỎI HIỆN TẠI: "`):]
	q = q[:strings.Index(q, `"`)]
	qc, _ := router.NewRuleBasedRouter(nil).Route(context.Background(), q, "")
	return fmt.Sprintf("Intent: %s\nEnhanced_Query: %s", qc.Route, q), nil
}

type fixture struct {
	o        *Orchestrator
	llm      *scriptedLLM
	embedder *recordingEmbedder
	store    *countingStore
}

func newFixture(llmRouter bool) *fixture {
	f := &fixture{
		llm: &scriptedLLM{
			route:    echoRoute,
			generate: func(string) (string, error) { return "Anessa Perfect UV rất tốt cho da dầu", nil },
		},
		embedder: &recordingEmbedder{},
		store: &countingStore{CandidateStore: vectordb.NewMemoryStore(
			vectordb.Record{ID: "1", Text: "Kem chống nắng Anessa SPF50", Vector: []float32{1, 0},
				Metadata: schema.Metadata{ProductID: "p-anessa", Name: "Kem Chống Nắng Anessa", Brand: "Anessa", Type: "description"}},
			vectordb.Record{ID: "2", Text: "Sữa rửa mặt Cetaphil", Vector: []float32{0.6, 0.8},
				Metadata: schema.Metadata{ProductID: "p-cetaphil", Name: "Sữa Rửa Mặt Cetaphil", Brand: "Cetaphil"}},
		)},
	}
	var rt router.Router = router.NewHybridRouter(router.NewLLMRouter(f.llm), router.NewRuleBasedRouter(nil), 0)
	if llmRouter {
		rt = router.NewLLMRouter(f.llm)
	}
	f.o = &Orchestrator{
		Router:      rt,
		Retriever:   retrieval.NewEngine(f.embedder, f.store, nil, config.RerankConfig{}),
		Generator:   &generator.Generator{Provider: f.llm},
		Memory:      memory.NewManager(config.MemoryConfig{WindowSize: 3}, nil),
		TopK:        5,
		ContextTopK: 3,
		LLMModel:    "gemini-2.5-flash",
	}
	return f
}

func TestGreetingSkipsRetrieval(t *testing.T) {
	f := newFixture(false)
	f.llm.generate = func(string) (string, error) { return "Xin chào! Bạn cần tư vấn gì?", nil }

	res := f.o.SubmitTurn(context.Background(), "s1", "Xin chào")
	assert.True(t, res.Success)
	assert.Equal(t, schema.RouteGreeting, res.Route)
	assert.Equal(t, "Xin chào! Bạn cần tư vấn gì?", res.Answer)
	assert.Equal(t, 0, res.DocumentsFound)
	assert.Equal(t, 0, f.store.calls)
	assert.Empty(t, f.embedder.queries)
	assert.Empty(t, res.IDProduct)
	assert.Equal(t, 2, res.MemoryStats.TotalMessages)
}

func TestGreetingNeverSeesStaleContext(t *testing.T) {
	f := newFixture(false)
	f.o.SubmitTurn(context.Background(), "s1", "Kem chống nắng Anessa có tốt không")
	res := f.o.SubmitTurn(context.Background(), "s1", "cảm ơn")
	assert.Equal(t, schema.RouteGreeting, res.Route)
	last := f.llm.prompts[len(f.llm.prompts)-1]
	assert.Contains(t, last, "Câu chào: cảm ơn")
	assert.NotContains(t, last, "THÔNG TIN SẢN PHẨM")
	assert.Equal(t, 1, f.store.calls)
}

func TestQuestionRetrievesAndAppendsEnhancedQuery(t *testing.T) {
	f := newFixture(false)
	res := f.o.SubmitTurnWithDetails(context.Background(), "s1", "Kem chống nắng Anessa có tốt không", true)
	require.True(t, res.Success)
	assert.Equal(t, schema.RouteQuestion, res.Route)
	assert.Equal(t, 2, res.DocumentsFound)
	assert.Equal(t, "p-anessa", res.IDProduct)
	assert.Equal(t, "Kem Chống Nắng Anessa", res.NameProduct)
	assert.Equal(t, "s1", res.SessionID)
	assert.NotEmpty(t, res.TurnID)

	require.Len(t, res.ChunksInfo, 2)
	assert.Equal(t, 1, res.ChunksInfo[0].Rank)
	assert.Equal(t, "description", res.ChunksInfo[0].ChunkType)
	require.NotNil(t, res.ContextInfo)
	assert.Equal(t, 2, res.ContextInfo.DocumentsUsedForContext)
	assert.Equal(t, "gemini-2.5-flash", res.ContextInfo.LLMModel)
	assert.False(t, res.ContextInfo.FallbackUsed)

	last := f.llm.prompts[len(f.llm.prompts)-1]
	assert.Contains(t, last, "[1] Kem Chống Nắng Anessa (Score: 1.000)")

	turns := f.o.Memory.Window("s1").Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, "p-anessa", turns[0].ProductID)
	assert.Equal(t, "QUESTION", turns[0].Intent)
}

func TestAnaphorResolvedFromMemoryWhenRouterFails(t *testing.T) {
	f := newFixture(false)
	f.o.SubmitTurn(context.Background(), "s1", "Kem chống nắng Anessa có tốt không")

	f.llm.route = func(string) (string, error) { return "", errors.New("deadline exceeded") }
	res := f.o.SubmitTurn(context.Background(), "s1", "nó giá bao nhiêu")
	require.True(t, res.Success)
	assert.Equal(t, schema.RouteQuestion, res.Route)
	assert.Contains(t, res.EnhancedQuery, "Anessa")
	assert.Equal(t, res.EnhancedQuery, f.embedder.queries[len(f.embedder.queries)-1])

	turns := f.o.Memory.Window("s1").Turns()
	assert.Equal(t, res.EnhancedQuery, turns[len(turns)-1].UserInput)
}

func TestRouterRewriteUsedForRetrieval(t *testing.T) {
	f := newFixture(false)
	f.o.SubmitTurn(context.Background(), "s1", "Kem chống nắng Anessa có tốt không")
	f.llm.route = func(string) (string, error) {
		return "Intent: QUESTION\nEnhanced_Query: Kem chống nắng Anessa giá bao nhiêu", nil
	}
	res := f.o.SubmitTurn(context.Background(), "s1", "giá bao nhiêu")
	assert.Equal(t, "Kem chống nắng Anessa giá bao nhiêu", res.EnhancedQuery)
	assert.Equal(t, "Kem chống nắng Anessa giá bao nhiêu", f.embedder.queries[len(f.embedder.queries)-1])
}

func TestPlainLLMRouterErrorFallsBackToKeywords(t *testing.T) {
	f := newFixture(true)
	f.llm.route = func(string) (string, error) { return "", errors.New("quota") }
	res := f.o.SubmitTurnWithDetails(context.Background(), "s1", "hello", true)
	assert.True(t, res.Success)
	assert.Equal(t, schema.RouteGreeting, res.Route)
	assert.True(t, res.ContextInfo.RouterFallback)
	assert.Equal(t, 0, f.store.calls)
}

func TestStoreFailureIsTerminalButRemembered(t *testing.T) {
	f := newFixture(false)
	f.store.err = fmt.Errorf("%w: connection refused", vectordb.ErrStoreUnavailable)

	res := f.o.SubmitTurn(context.Background(), "s1", "Cetaphil giá bao nhiêu")
	assert.False(t, res.Success)
	assert.Equal(t, ErrorAnswer, res.Answer)
	assert.NotContains(t, res.Answer, "connection refused")
	assert.Equal(t, 2, res.MemoryStats.TotalMessages)

	turns := f.o.Memory.Window("s1").Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, ErrorAnswer, turns[0].BotResponse)
}

func TestGenerationFailureUsesFallback(t *testing.T) {
	f := newFixture(false)
	f.llm.generate = func(string) (string, error) { return "", errors.New("503 from upstream") }

	res := f.o.SubmitTurn(context.Background(), "s1", "Cetaphil giá bao nhiêu")
	assert.True(t, res.Success)
	assert.Equal(t, generator.FallbackQuestion, res.Answer)
	assert.Equal(t, 1, f.o.Memory.Window("s1").Len())

	res = f.o.SubmitTurn(context.Background(), "s1", "bye")
	assert.Equal(t, generator.FallbackGreeting, res.Answer)
}

func TestEmptyMessage(t *testing.T) {
	f := newFixture(false)
	res := f.o.SubmitTurn(context.Background(), "", "   ")
	assert.False(t, res.Success)
	assert.Equal(t, EmptyMessageAnswer, res.Answer)
	assert.Equal(t, memory.DefaultSessionID, res.SessionID)
	assert.Empty(t, f.llm.prompts)
	assert.Equal(t, 0, f.o.Memory.Len())
}

func TestReadsDoNotCreateSessions(t *testing.T) {
	f := newFixture(false)
	assert.Equal(t, memory.EmptyHistory, f.o.GetSummary("unknown"))
	assert.Equal(t, 0, f.o.GetStats("unknown").TotalMessages)
	f.o.Clear("unknown")
	assert.Equal(t, 0, f.o.Memory.Len())
}

func TestSessionsAreIsolated(t *testing.T) {
	f := newFixture(false)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.o.SubmitTurn(context.Background(), fmt.Sprintf("user-%d", i%2), "Vichy serum có tốt không")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 3, f.o.Memory.Window("user-0").Len())
	assert.Equal(t, 3, f.o.Memory.Window("user-1").Len())

	f.o.Clear("user-0")
	assert.Equal(t, memory.EmptyHistory, f.o.GetSummary("user-0"))
	assert.Equal(t, 0, f.o.GetStats("user-0").TotalMessages)
	assert.Equal(t, 6, f.o.GetStats("user-1").TotalMessages)
}
