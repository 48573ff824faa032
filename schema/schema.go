// Package schema holds the turn-scoped records shared by the pipeline stages.
package schema

// Route is the intent class selected for a turn.
type Route string

const (
	RouteGreeting Route = "GREETING"
	RouteQuestion Route = "QUESTION"
)

// ParseRoute maps a model label onto a Route. Anything unrecognized is a
// question so the turn is never dropped.
func ParseRoute(label string) Route {
	if Route(label) == RouteGreeting {
		return RouteGreeting
	}
	return RouteQuestion
}

// Metadata carries the product attributes indexed with a fragment. Optional
// numeric attributes are pointers so absence stays distinguishable from zero.
type Metadata struct {
	ProductID     string   `json:"product_id,omitempty"`
	Name          string   `json:"name,omitempty"`
	EnglishName   string   `json:"english_name,omitempty"`
	CategoryName  string   `json:"category_name,omitempty"`
	Brand         string   `json:"brand,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	DataVariant   string   `json:"data_variant,omitempty"`
	ItemCountBy   *int64   `json:"item_count_by,omitempty"`
	URL           string   `json:"url,omitempty"`
	Options       string   `json:"options,omitempty"`
	AverageRating *float64 `json:"average_rating,omitempty"`
	TotalRating   *int64   `json:"total_rating,omitempty"`
	Type          string   `json:"type,omitempty"`
}

// Candidate is one fragment returned by the candidate store.
type Candidate struct {
	ID       string   `json:"id,omitempty"`
	Text     string   `json:"text"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// RankedResult is a candidate placed in final order. RerankScore is nil when
// the order comes from vector similarity alone.
type RankedResult struct {
	Candidate
	VectorScore      float64  `json:"vector_score"`
	RerankScore      *float64 `json:"rerank_score,omitempty"`
	OriginalRank     int      `json:"original_rank"`
	FinalRank        int      `json:"final_rank"`
	RankChange       int      `json:"rank_change"`
	ScoreImprovement float64  `json:"score_improvement"`
	ChunkLength      int      `json:"chunk_length"`
}

// FinalScore is the score the result was ordered by.
func (r RankedResult) FinalScore() float64 {
	if r.RerankScore != nil {
		return *r.RerankScore
	}
	return r.VectorScore
}

// Field names accepted in a FilterSpec.
const (
	FieldProductID    = "product_id"
	FieldProductName  = "product_name"
	FieldCategoryName = "category_name"
	FieldBrand        = "brand"
)

// FilterSpec maps an indexed field to the literals it must be one of. Fields
// with no literals impose no constraint.
type FilterSpec map[string][]string

// Normalized drops unknown fields and empty value sets. It returns nil when
// nothing remains.
func (f FilterSpec) Normalized() FilterSpec {
	if len(f) == 0 {
		return nil
	}
	out := FilterSpec{}
	for _, field := range []string{FieldProductID, FieldProductName, FieldCategoryName, FieldBrand} {
		var vals []string
		for _, v := range f[field] {
			if v != "" {
				vals = append(vals, v)
			}
		}
		if len(vals) > 0 {
			out[field] = vals
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// QueryContext is the router's output for one turn.
type QueryContext struct {
	OriginalQuery string   `json:"original_query"`
	EnhancedQuery string   `json:"enhanced_query"`
	Intent        string   `json:"intent"`
	Route         Route    `json:"route"`
	SubQueries    []string `json:"sub_queries,omitempty"`
	// Fallback is set when the route came from the keyword lexicon.
	Fallback bool `json:"fallback,omitempty"`
}

// ConversationTurn is one exchange retained by conversation memory.
type ConversationTurn struct {
	UserInput   string `json:"user_input"`
	BotResponse string `json:"bot_response"`
	Intent      string `json:"intent,omitempty"`
	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
}
