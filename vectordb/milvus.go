package vectordb

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

// Scalar columns read back with every hit.
var milvusOutputFields = []string{
	"product_id", "name", "english_name", "category_name", "brand", "price",
	"data_variant", "item_count_by", "url", "options", "average_rating",
	"total_rating", "type",
}

// searcher is the slice of client.Client used by the store.
type searcher interface {
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string,
		vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int,
		sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
	Close() error
}

type MilvusStore struct {
	client      searcher
	collection  string
	vectorField string
	textField   string
	metric      entity.MetricType
	ef          int
	timeout     time.Duration
	retryDelay  time.Duration
}

func NewMilvusStore(ctx context.Context, cfg *config.VectorDBConfig) (*MilvusStore, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("milvus host is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 19530
	}
	c, err := client.NewClient(ctx, client.Config{
		Address:  fmt.Sprintf("%s:%d", cfg.Host, port),
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client, err: %w", err)
	}
	return newMilvusStore(c, cfg), nil
}

func newMilvusStore(c searcher, cfg *config.VectorDBConfig) *MilvusStore {
	s := &MilvusStore{
		client:      c,
		collection:  cfg.Collection,
		vectorField: cfg.VectorField,
		textField:   cfg.TextField,
		metric:      entity.MetricType(cfg.MetricType),
		ef:          cfg.EF,
		timeout:     config.Duration(cfg.TimeoutMs, 3*time.Second),
		retryDelay:  200 * time.Millisecond,
	}
	if s.vectorField == "" {
		s.vectorField = "vector"
	}
	if s.textField == "" {
		s.textField = "text"
	}
	if s.metric == "" {
		s.metric = entity.IP
	}
	if s.ef <= 0 {
		s.ef = 64
	}
	return s
}

// Search runs one similarity query, retrying a failed call once before
// reporting ErrStoreUnavailable.
func (s *MilvusStore) Search(ctx context.Context, vector []float32, limit int, filter schema.FilterSpec) ([]schema.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	sp, err := entity.NewIndexHNSWSearchParam(s.ef)
	if err != nil {
		return nil, fmt.Errorf("build search param failed, err: %w", err)
	}
	expr := BuildFilterExpr(filter)
	fields := append([]string{s.textField}, milvusOutputFields...)

	var results []client.SearchResult
	err = retry.Do(
		func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			var serr error
			results, serr = s.client.Search(cctx, s.collection, nil, expr, fields,
				[]entity.Vector{entity.FloatVector(vector)}, s.vectorField, s.metric, limit, sp)
			return serr
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(s.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warnf("milvus: search failed (try %d/2): %v", n+1, err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return s.toCandidates(results[0]), nil
}

func (s *MilvusStore) toCandidates(r client.SearchResult) []schema.Candidate {
	out := make([]schema.Candidate, 0, r.ResultCount)
	for i := 0; i < r.ResultCount; i++ {
		c := schema.Candidate{Text: str(r, s.textField, i)}
		if i < len(r.Scores) {
			c.Score = float64(r.Scores[i])
		}
		if r.IDs != nil {
			if n, err := r.IDs.GetAsInt64(i); err == nil {
				c.ID = fmt.Sprint(n)
			} else if id, err := r.IDs.GetAsString(i); err == nil {
				c.ID = id
			}
		}
		c.Metadata = schema.Metadata{
			ProductID:     str(r, "product_id", i),
			Name:          str(r, "name", i),
			EnglishName:   str(r, "english_name", i),
			CategoryName:  str(r, "category_name", i),
			Brand:         str(r, "brand", i),
			Price:         float(r, "price", i),
			DataVariant:   str(r, "data_variant", i),
			ItemCountBy:   integer(r, "item_count_by", i),
			URL:           str(r, "url", i),
			Options:       str(r, "options", i),
			AverageRating: float(r, "average_rating", i),
			TotalRating:   integer(r, "total_rating", i),
			Type:          str(r, "type", i),
		}
		out = append(out, c)
	}
	return out
}

func column(r client.SearchResult, name string) entity.Column {
	if r.Fields == nil {
		return nil
	}
	return r.Fields.GetColumn(name)
}

func str(r client.SearchResult, name string, i int) string {
	col := column(r, name)
	if col == nil {
		return ""
	}
	v, err := col.GetAsString(i)
	if err != nil {
		return ""
	}
	return v
}

func float(r client.SearchResult, name string, i int) *float64 {
	col := column(r, name)
	if col == nil {
		return nil
	}
	v, err := col.GetAsDouble(i)
	if err != nil {
		return nil
	}
	return &v
}

func integer(r client.SearchResult, name string, i int) *int64 {
	col := column(r, name)
	if col == nil {
		return nil
	}
	v, err := col.GetAsInt64(i)
	if err != nil {
		return nil
	}
	return &v
}

func (s *MilvusStore) GetProviderType() string { return PROVIDER_TYPE_MILVUS }

func (s *MilvusStore) Close() error { return s.client.Close() }
