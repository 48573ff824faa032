package memory

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/llm"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

// Window keeps the last k turns of one conversation together with the
// brands, categories and products they mentioned. Entity lists are updated
// on append and are not recomputed when old turns leave the window.
type Window struct {
	mu         sync.RWMutex
	k          int
	turns      []schema.ConversationTurn
	brands     []string
	categories []string
	products   []string
	counter    TokenCounter
}

// NewWindow creates a window holding at most k turns. A nil counter falls
// back to a rune based estimate.
func NewWindow(k int, counter TokenCounter) *Window {
	if k <= 0 {
		k = 3
	}
	return &Window{k: k, counter: counter}
}

// Append stores a finished turn, evicting the oldest one on overflow.
func (w *Window) Append(turn schema.ConversationTurn) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.turns = append(w.turns, turn)
	if len(w.turns) > w.k {
		w.turns = append([]schema.ConversationTurn(nil), w.turns[len(w.turns)-w.k:]...)
	}
	w.extract(turn.UserInput, turn.BotResponse)
}

func (w *Window) extract(user, bot string) {
	for _, side := range []string{strings.ToLower(user), strings.ToLower(bot)} {
		for _, b := range Brands {
			if ContainsWord(side, strings.ToLower(b)) {
				w.brands = remember(w.brands, b, maxBrands)
			}
		}
		for _, c := range Categories {
			if ContainsWord(side, c) {
				w.categories = remember(w.categories, c, maxCategories)
			}
		}
	}

	quotesProducts := false
	for _, ind := range productIndicators {
		if strings.Contains(bot, ind) {
			quotesProducts = true
			break
		}
	}
	if !quotesProducts {
		return
	}
	for _, line := range strings.Split(bot, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) <= minProductLineRunes {
			continue
		}
		for _, b := range Brands {
			if strings.Contains(line, b) {
				w.products = remember(w.products, truncateRunes(line, maxProductLineRunes), maxProducts)
				break
			}
		}
	}
}

// Summary is a compact digest of the entity lists and the last two questions,
// sized for routing prompts.
func (w *Window) Summary() string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(w.turns) == 0 {
		return EmptyHistory
	}
	var parts []string
	if len(w.brands) > 0 {
		parts = append(parts, "Thương hiệu đã đề cập: "+strings.Join(w.brands, ", "))
	}
	if len(w.categories) > 0 {
		parts = append(parts, "Loại sản phẩm quan tâm: "+strings.Join(w.categories, ", "))
	}
	if len(w.products) > 0 {
		parts = append(parts, "Sản phẩm đã tư vấn: "+strings.Join(w.products[:min(2, len(w.products))], "; "))
	}
	recent := w.turns
	if len(recent) > 2 {
		recent = recent[len(recent)-2:]
	}
	for _, t := range recent {
		q := t.UserInput
		if utf8.RuneCountInString(q) > previewRunes {
			q = truncateRunes(q, previewRunes) + "..."
		}
		parts = append(parts, "Đã hỏi: "+q)
	}
	return strings.Join(parts, " | ")
}

// FormattedHistory returns every turn in the window verbatim.
func (w *Window) FormattedHistory() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.formattedLocked()
}

func (w *Window) formattedLocked() string {
	if len(w.turns) == 0 {
		return EmptyHistory
	}
	lines := make([]string, 0, 2*len(w.turns))
	for _, t := range w.turns {
		lines = append(lines, "Người dùng: "+t.UserInput, "Bot: "+t.BotResponse)
	}
	return strings.Join(lines, "\n")
}

// RecentContext names the latest brands, categories and product.
func (w *Window) RecentContext() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.recentContextLocked()
}

func (w *Window) recentContextLocked() string {
	var parts []string
	if len(w.brands) > 0 {
		parts = append(parts, "Thương hiệu: "+strings.Join(lastN(w.brands, 2), ", "))
	}
	if len(w.categories) > 0 {
		parts = append(parts, "Loại: "+strings.Join(lastN(w.categories, 2), ", "))
	}
	if len(w.products) > 0 {
		parts = append(parts, "Sản phẩm: "+w.products[len(w.products)-1])
	}
	return strings.Join(parts, " | ")
}

// Enhance prefixes an anaphoric query with the recent entity context. Queries
// without an anaphor, or with nothing to resolve against, come back unchanged.
func (w *Window) Enhance(query string) string {
	if !HasAnaphor(query) {
		return query
	}
	w.mu.RLock()
	ctx := w.recentContextLocked()
	w.mu.RUnlock()
	if ctx == "" {
		return query
	}
	return ctx + " - " + query
}

// Clear drops all turns and entities.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = nil
	w.brands = nil
	w.categories = nil
	w.products = nil
}

// Turns returns a copy of the window contents, oldest first.
func (w *Window) Turns() []schema.ConversationTurn {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]schema.ConversationTurn(nil), w.turns...)
}

func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.turns)
}

// RecentBrands returns the brand list, most recent last.
func (w *Window) RecentBrands() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.brands...)
}

func (w *Window) RecentCategories() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.categories...)
}

func (w *Window) RecentProducts() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.products...)
}

func (w *Window) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	chars := 0
	for _, t := range w.turns {
		chars += utf8.RuneCountInString(t.UserInput) + utf8.RuneCountInString(t.BotResponse)
	}
	tokens := 0
	if len(w.turns) > 0 {
		history := w.formattedLocked()
		if w.counter != nil {
			tokens = w.counter.Count(history)
		} else {
			tokens = llm.EstimateTokens(history)
		}
	}
	return Stats{
		TotalMessages:         2 * len(w.turns),
		TotalCharacters:       chars,
		WindowSize:            w.k,
		RecentBrandsCount:     len(w.brands),
		RecentCategoriesCount: len(w.categories),
		RecentProductsCount:   len(w.products),
		MemoryType:            "buffer_window",
		HistoryTokens:         tokens,
	}
}
