package router

import (
	"strings"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/memory"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

const (
	intentPrefix   = "Intent:"
	enhancedPrefix = "Enhanced_Query:"

	// noSummary replaces an empty memory summary inside the prompt.
	noSummary = "Chưa có lịch sử."
)

// UnifiedPrompt asks for the intent and the rewritten query in one call.
func UnifiedPrompt(query, memorySummary string) string {
	if strings.TrimSpace(memorySummary) == "" {
		memorySummary = noSummary
	}
	var b strings.Builder
	b.WriteString(`
Bạn là AI chuyên gia xử lý câu hỏi về mỹ phẩm. Nhiệm vụ của bạn là:
1. Phân loại intent của câu hỏi
2. Cải thiện câu hỏi để tìm kiếm chính xác sản phẩm

LỊCH SỬ HỘI THOẠI (chỉ để tham khảo):
`)
	b.WriteString(memorySummary)
	b.WriteString("\n\nCÂU HỎI HIỆN TẠI: \"")
	b.WriteString(query)
	b.WriteString(`"

NGUYÊN TẮC QUAN TRỌNG:
- Luôn ưu tiên sản phẩm được đề cập TRỰC TIẾP trong câu hỏi hiện tại
- Chỉ sử dụng lịch sử khi câu hỏi có đại từ không rõ ràng
- Không tự động kết hợp thông tin từ lịch sử nếu câu hỏi đã rõ ràng

=== BƯỚC 1: PHÂN LOẠI INTENT ===
1. GREETING: Chào hỏi, cảm ơn, tạm biệt
   - "Xin chào", "Hello", "Hi", "Chào bạn"
   - "Cảm ơn", "Thanks", "Thank you"
   - "Tạm biệt", "Bye", "Goodbye"
2. QUESTION: Tất cả các câu hỏi khác về mỹ phẩm
   - Hỏi về sản phẩm cụ thể: "Kem Anessa có tốt không?"
   - Hỏi giá: "Giá bao nhiêu?" (cần context)
   - Tư vấn: "Nên dùng gì cho da khô?"

=== BƯỚC 2: TĂNG CƯỜNG CÂU HỎI (CHỈ KHI INTENT = QUESTION) ===
1. Câu hỏi ĐÃ CÓ TÊN SẢN PHẨM cụ thể: giữ nguyên hoàn toàn.
2. Câu hỏi có ĐẠI TỪ không rõ ràng ("nó", "sản phẩm này", "cái đó", "thứ này"):
   thay thế bằng sản phẩm gần nhất từ lịch sử.
3. Câu hỏi THIẾU NGỮ CẢNH ("giá bao nhiêu?", "có tốt không?"):
   bổ sung sản phẩm từ lịch sử gần nhất.
4. Câu hỏi TƯ VẤN CHUNG: giữ nguyên.

TRÁNH LẪN LỘN:
- Nếu câu hỏi về sản phẩm A, KHÔNG thêm thông tin về sản phẩm B từ lịch sử
- Không bao giờ thêm tên sản phẩm hay thương hiệu không có trong câu hỏi hoặc lịch sử

=== ĐỊNH DẠNG TRẢ VỀ ===
Intent: <GREETING hoặc QUESTION>
Enhanced_Query: <câu hỏi đã được cải thiện>

=== VÍ DỤ ===
Lịch sử: "Kem chống nắng Anessa có tốt không?"
Query: "La Roche Posay giá bao nhiêu?"
Intent: QUESTION
Enhanced_Query: La Roche Posay giá bao nhiêu?

Lịch sử: "Kem chống nắng Anessa có tốt không?"
Query: "nó có phù hợp với da nhạy cảm không?"
Intent: QUESTION
Enhanced_Query: Anessa có phù hợp với da nhạy cảm không?

Lịch sử: "Cetaphil có tốt không?"
Query: "giá bao nhiêu?"
Intent: QUESTION
Enhanced_Query: Cetaphil giá bao nhiêu?

Query: "Cảm ơn bạn"
Intent: GREETING
Enhanced_Query: Cảm ơn bạn
`)
	return b.String()
}

// parseUnifiedResponse reads the "Intent:" and "Enhanced_Query:" lines of a
// model reply. It never fails: an unknown intent is a question, and a missing
// rewrite falls back to the last unlabeled line, then to the query itself.
func parseUnifiedResponse(reply, query string) schema.QueryContext {
	route := schema.RouteQuestion
	enhanced := ""
	lastFree := ""

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "→->*"))
		switch {
		case line == "":
		case hasPrefixFold(line, intentPrefix):
			label := strings.ToUpper(strings.Trim(strings.TrimSpace(line[len(intentPrefix):]), "*`\"' "))
			route = schema.ParseRoute(label)
		case hasPrefixFold(line, enhancedPrefix):
			enhanced = strings.Trim(strings.TrimSpace(line[len(enhancedPrefix):]), "`\"")
		default:
			lastFree = line
		}
	}
	if enhanced == "" {
		enhanced = lastFree
	}
	if enhanced == "" {
		enhanced = query
	}
	return schema.QueryContext{
		OriginalQuery: query,
		EnhancedQuery: enhanced,
		Intent:        string(route),
		Route:         route,
		SubQueries:    []string{enhanced},
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// injectsEntity reports whether the rewrite names a known brand that appears
// in neither the query nor the memory summary.
func injectsEntity(enhanced, query, memorySummary string) bool {
	e := strings.ToLower(enhanced)
	known := strings.ToLower(query + "\n" + memorySummary)
	for _, b := range memory.Brands {
		lb := strings.ToLower(b)
		if strings.Contains(e, lb) && !strings.Contains(known, lb) {
			return true
		}
	}
	return false
}
