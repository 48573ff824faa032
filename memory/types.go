package memory

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Brands recognized when scanning a turn.
var Brands = []string{
	"Anessa", "Cetaphil", "La Roche", "Vichy", "Eucerin", "Neutrogena",
	"Bioré", "Nivea", "Olay", "L'Oreal", "Maybelline", "Innisfree",
}

// Categories recognized when scanning a turn.
var Categories = []string{
	"kem chống nắng", "sữa rửa mặt", "serum", "toner", "kem dưỡng",
	"mask", "tẩy trang", "nước hoa hồng", "kem mắt", "son môi",
}

// Anaphors that make a query depend on earlier turns.
var Anaphors = []string{
	"nó", "cái đó", "sản phẩm này", "thứ này", "loại này", "thương hiệu đó",
}

// Markers of a bot answer that quotes concrete products.
var productIndicators = []string{"VND", "đ", "Giá:", "Tên sản phẩm:"}

const (
	maxBrands     = 5
	maxCategories = 5
	maxProducts   = 3

	maxProductLineRunes = 100
	minProductLineRunes = 10
	previewRunes        = 50

	EmptyHistory = "Chưa có lịch sử hội thoại."
)

// Stats describes one session window.
type Stats struct {
	TotalMessages         int    `json:"total_messages"`
	TotalCharacters       int    `json:"total_characters"`
	WindowSize            int    `json:"window_size"`
	RecentBrandsCount     int    `json:"recent_brands_count"`
	RecentCategoriesCount int    `json:"recent_categories_count"`
	RecentProductsCount   int    `json:"recent_products_count"`
	MemoryType            string `json:"memory_type"`
	HistoryTokens         int    `json:"history_tokens"`
}

// TokenCounter sizes the formatted history for Stats.
type TokenCounter interface {
	Count(text string) int
}

// ContainsWord reports whether phrase occurs in lower-cased text bounded by
// non-letters, so "nó" does not match inside "nóng".
func ContainsWord(text, phrase string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], phrase)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(phrase)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !unicode.IsLetter(before)) && (end == len(text) || !unicode.IsLetter(after)) {
			return true
		}
		i = start + 1
		for i < len(text) && !utf8.RuneStart(text[i]) {
			i++
		}
	}
}

// HasAnaphor reports whether query refers back to an earlier entity.
func HasAnaphor(query string) bool {
	lower := strings.ToLower(query)
	for _, a := range Anaphors {
		if ContainsWord(lower, a) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// remember appends v as the most recent entry, moving it when already
// present, and keeps the last max entries.
func remember(list []string, v string, max int) []string {
	for i, e := range list {
		if e == v {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	list = append(list, v)
	if len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}

func lastN(list []string, n int) []string {
	if len(list) <= n {
		return list
	}
	return list[len(list)-n:]
}
