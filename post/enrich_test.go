package post

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

func TestEnrichText(t *testing.T) {
	price := 459000.0
	rating := 4.8
	total := int64(1200)
	c := schema.Candidate{
		Text: "Chống nắng SPF50+",
		Metadata: schema.Metadata{
			ProductID:     "p-1",
			Name:          "Sữa chống nắng Anessa",
			Brand:         "Anessa",
			CategoryName:  "Kem chống nắng",
			Price:         &price,
			AverageRating: &rating,
			TotalRating:   &total,
			DataVariant:   "60ml",
			Type:          "description",
		},
	}
	assert.Equal(t,
		"Mã sản phẩm: p-1 | Tên sản phẩm: Sữa chống nắng Anessa | Thương hiệu: Anessa | Danh mục: Kem chống nắng | "+
			"Giá: 459000 VND | Đánh giá: 4.8/5 | Số lượt đánh giá: 1200 | Dung tích/Phiên bản: 60ml | Loại thông tin: description"+
			"\n\nNội dung: Chống nắng SPF50+",
		EnrichText(c))
}

func TestEnrichTextWithoutMetadata(t *testing.T) {
	zero := 0.0
	c := schema.Candidate{Text: "raw", Metadata: schema.Metadata{Price: &zero}}
	assert.Equal(t, "raw", EnrichText(c))
}
