package post

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

// ErrRerankFailed wraps any scorer failure. A failed rerank yields no partial
// scores.
var ErrRerankFailed = errors.New("rerank failed")

const defaultBatchSize = 32

// Reranker scores candidates through a Scorer and reorders them.
type Reranker struct {
	Scorer Scorer
	// BatchSize bounds the texts sent per scorer call.
	BatchSize int
	// Parallelism bounds concurrent batches within one call.
	Parallelism int
	// Enrich prepends the metadata preamble to each text.
	Enrich bool
}

func NewReranker(scorer Scorer, cfg config.RerankConfig) *Reranker {
	return &Reranker{
		Scorer:      scorer,
		BatchSize:   cfg.BatchSize,
		Parallelism: cfg.Parallelism,
		Enrich:      cfg.Enrich,
	}
}

// Rerank returns every candidate ordered by rerank score, best first, with
// rank diagnostics filled in. Ties keep their vector order.
func (r *Reranker) Rerank(ctx context.Context, query string, in []schema.Candidate) ([]schema.RankedResult, error) {
	if len(in) == 0 {
		return nil, nil
	}
	if r.Scorer == nil {
		return nil, fmt.Errorf("%w: no scorer configured", ErrRerankFailed)
	}
	texts := make([]string, len(in))
	for i, c := range in {
		if r.Enrich {
			texts[i] = EnrichText(c)
		} else {
			texts[i] = c.Text
		}
	}

	scores, err := r.score(ctx, query, texts)
	if err != nil {
		return nil, err
	}

	out := make([]schema.RankedResult, len(in))
	for i, c := range in {
		s := scores[i]
		out[i] = schema.RankedResult{
			Candidate:        c,
			VectorScore:      c.Score,
			RerankScore:      &s,
			OriginalRank:     i + 1,
			ScoreImprovement: s - c.Score,
			ChunkLength:      utf8.RuneCountInString(c.Text),
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].RerankScore > *out[j].RerankScore })
	improved := 0
	for i := range out {
		out[i].FinalRank = i + 1
		out[i].RankChange = out[i].OriginalRank - out[i].FinalRank
		if out[i].ScoreImprovement > 0 {
			improved++
		}
	}
	logger.Debugf("rerank: scored %d candidates, %d improved over vector score", len(out), improved)
	return out, nil
}

func (r *Reranker) score(ctx context.Context, query string, texts []string) ([]float64, error) {
	size := r.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	scores := make([]float64, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	if r.Parallelism > 0 {
		g.SetLimit(r.Parallelism)
	} else {
		g.SetLimit(1)
	}
	for start := 0; start < len(texts); start += size {
		start := start
		end := min(start+size, len(texts))
		g.Go(func() error {
			got, err := r.Scorer.ScoreBatch(gctx, query, texts[start:end])
			if err != nil {
				return fmt.Errorf("%w: batch %d-%d: %v", ErrRerankFailed, start, end, err)
			}
			if len(got) != end-start {
				return fmt.Errorf("%w: batch %d-%d returned %d scores", ErrRerankFailed, start, end, len(got))
			}
			copy(scores[start:end], got)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// RankByVector keeps the store order and fills in diagnostics for results
// that were never reranked.
func RankByVector(in []schema.Candidate) []schema.RankedResult {
	out := make([]schema.RankedResult, len(in))
	for i, c := range in {
		out[i] = schema.RankedResult{
			Candidate:    c,
			VectorScore:  c.Score,
			OriginalRank: i + 1,
			FinalRank:    i + 1,
			ChunkLength:  utf8.RuneCountInString(c.Text),
		}
	}
	return out
}
