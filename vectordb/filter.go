package vectordb

import (
	"strconv"
	"strings"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/schema"
)

// filterColumns maps FilterSpec fields onto stored scalar columns, in the
// order they appear in a compiled expression.
var filterColumns = []struct {
	field  string
	column string
}{
	{schema.FieldProductID, "product_id"},
	{schema.FieldProductName, "name"},
	{schema.FieldCategoryName, "category_name"},
	{schema.FieldBrand, "brand"},
}

// BuildFilterExpr compiles f into a boolean expression of conjoined "in"
// predicates, for example `brand in ["Cetaphil"]`. Empty fields are omitted
// and an empty spec compiles to "".
func BuildFilterExpr(f schema.FilterSpec) string {
	f = f.Normalized()
	if f == nil {
		return ""
	}
	var parts []string
	for _, fc := range filterColumns {
		vals := f[fc.field]
		if len(vals) == 0 {
			continue
		}
		quoted := make([]string, len(vals))
		for i, v := range vals {
			quoted[i] = strconv.Quote(v)
		}
		parts = append(parts, fc.column+" in ["+strings.Join(quoted, ", ")+"]")
	}
	return strings.Join(parts, " && ")
}

// matchFilter reports whether md satisfies every predicate in f.
func matchFilter(md schema.Metadata, f schema.FilterSpec) bool {
	for field, vals := range f {
		var got string
		switch field {
		case schema.FieldProductID:
			got = md.ProductID
		case schema.FieldProductName:
			got = md.Name
		case schema.FieldCategoryName:
			got = md.CategoryName
		case schema.FieldBrand:
			got = md.Brand
		}
		ok := false
		for _, v := range vals {
			if v == got {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
