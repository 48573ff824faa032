package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRouteDefaultsToQuestion(t *testing.T) {
	assert.Equal(t, RouteGreeting, ParseRoute("GREETING"))
	assert.Equal(t, RouteQuestion, ParseRoute("QUESTION"))
	assert.Equal(t, RouteQuestion, ParseRoute("SMALLTALK"))
	assert.Equal(t, RouteQuestion, ParseRoute(""))
}

func TestFilterSpecNormalized(t *testing.T) {
	f := FilterSpec{
		FieldBrand:        {"Cetaphil", ""},
		FieldCategoryName: {},
		"color":           {"red"},
	}
	assert.Equal(t, FilterSpec{FieldBrand: {"Cetaphil"}}, f.Normalized())
	assert.Nil(t, FilterSpec{FieldProductID: {""}}.Normalized())
	assert.Nil(t, FilterSpec(nil).Normalized())
}

func TestFinalScore(t *testing.T) {
	r := RankedResult{VectorScore: 0.4}
	assert.Equal(t, 0.4, r.FinalScore())
	s := 0.9
	r.RerankScore = &s
	assert.Equal(t, 0.9, r.FinalScore())
}
