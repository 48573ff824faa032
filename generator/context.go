package generator

import (
	"fmt"
	"strings"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

// NoProductInfo stands in for an empty candidate list so the prompt states
// the absence of grounding explicitly.
const NoProductInfo = "Không có thông tin sản phẩm."

// BuildContext renders the first topK results as numbered blocks in rank
// order. Greetings get no context at all. Fragment text is never truncated.
func BuildContext(route schema.Route, results []schema.RankedResult, topK int) string {
	if route == schema.RouteGreeting {
		return ""
	}
	if len(results) == 0 {
		return NoProductInfo
	}
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}

	parts := make([]string, 0, len(results))
	for i, r := range results {
		name := r.Metadata.Name
		if name == "" {
			name = fmt.Sprintf("Sản phẩm %d", i+1)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "[%d] %s (Score: %.3f)", i+1, name, r.FinalScore())
		if r.Text != "" {
			b.WriteString("\n")
			b.WriteString(r.Text)
		}
		// The URL line is the only source the answer may link to.
		if r.Metadata.URL != "" {
			b.WriteString("\nURL: ")
			b.WriteString(r.Metadata.URL)
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n\n")
}
