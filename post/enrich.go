package post

import (
	"strconv"
	"strings"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

// EnrichText prefixes the candidate text with a compact metadata preamble so
// the cross-encoder sees product identity next to the fragment. Candidates
// without metadata score on their raw text.
func EnrichText(c schema.Candidate) string {
	md := c.Metadata
	var parts []string
	add := func(label, value string) {
		if value != "" {
			parts = append(parts, label+": "+value)
		}
	}
	add("Mã sản phẩm", md.ProductID)
	add("Tên sản phẩm", md.Name)
	add("Tên tiếng Anh", md.EnglishName)
	add("Thương hiệu", md.Brand)
	add("Danh mục", md.CategoryName)
	if md.Price != nil && *md.Price != 0 {
		add("Giá", formatNumber(*md.Price)+" VND")
	}
	if md.AverageRating != nil && *md.AverageRating != 0 {
		add("Đánh giá", formatNumber(*md.AverageRating)+"/5")
	}
	if md.TotalRating != nil && *md.TotalRating != 0 {
		add("Số lượt đánh giá", strconv.FormatInt(*md.TotalRating, 10))
	}
	add("Dung tích/Phiên bản", md.DataVariant)
	add("Loại thông tin", md.Type)

	if len(parts) == 0 {
		return c.Text
	}
	return strings.Join(parts, " | ") + "\n\nNội dung: " + c.Text
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
