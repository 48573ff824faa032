package vectordb

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

// Record is one indexed fragment held by the in-memory store and the shape of
// each line in a seed file.
type Record struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Vector   []float32       `json:"vector"`
	Metadata schema.Metadata `json:"metadata"`
}

// MemoryStore is a brute-force cosine index for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryStore(records ...Record) *MemoryStore {
	s := &MemoryStore{}
	s.Add(records...)
	return s
}

func (s *MemoryStore) Add(records ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

// LoadFile appends the JSON lines in path.
func (s *MemoryStore) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	var batch []Record
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
		batch = append(batch, r)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	s.Add(batch...)
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) Search(ctx context.Context, vector []float32, limit int, filter schema.FilterSpec) ([]schema.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if limit <= 0 {
		return nil, nil
	}
	filter = filter.Normalized()

	s.mu.RLock()
	out := make([]schema.Candidate, 0, len(s.records))
	for _, r := range s.records {
		if filter != nil && !matchFilter(r.Metadata, filter) {
			continue
		}
		out = append(out, schema.Candidate{
			ID:       r.ID,
			Text:     r.Text,
			Score:    cosine(vector, r.Vector),
			Metadata: r.Metadata,
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (s *MemoryStore) GetProviderType() string { return PROVIDER_TYPE_MEMORY }

func (s *MemoryStore) Close() error { return nil }
