// Command reranker is a deterministic stand-in for the cross-encoder rerank
// service, for local runs. Score is the share of query tokens present in the
// document.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
)

type rerankReq struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

type result struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResp struct {
	Model   string   `json:"model,omitempty"`
	Results []result `json:"results"`
}

func tokens(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[f] = struct{}{}
	}
	return out
}

func overlap(query map[string]struct{}, doc string) float64 {
	if len(query) == 0 {
		return 0
	}
	d := tokens(doc)
	hit := 0
	for t := range query {
		if _, ok := d[t]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(query))
}

func score(req rerankReq) rerankResp {
	q := tokens(req.Query)
	out := rerankResp{Model: req.Model, Results: make([]result, len(req.Documents))}
	for i, doc := range req.Documents {
		out.Results[i] = result{Index: i, RelevanceScore: overlap(q, doc)}
	}
	sort.SliceStable(out.Results, func(i, j int) bool {
		return out.Results[i].RelevanceScore > out.Results[j].RelevanceScore
	})
	return out
}

func handleRerank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req rerankReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(score(req)); err != nil {
		logger.Warnf("reranker mock: encode response failed, err: %v", err)
	}
}

func main() {
	if err := logger.Init("info", "console"); err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	addr := ":8082"
	if v := os.Getenv("RERANK_ADDR"); v != "" {
		addr = v
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/rerank", handleRerank)
	logger.Infof("reranker mock listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorf("reranker mock stopped, err: %v", err)
		os.Exit(1)
	}
}
