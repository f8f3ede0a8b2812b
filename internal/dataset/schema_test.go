package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSupportedCity(t *testing.T) {
	for _, c := range Cities {
		assert.True(t, IsSupportedCity(c))
	}
	assert.False(t, IsSupportedCity("Paris"))
	assert.False(t, IsSupportedCity("san francisco"), "matching is exact")
}

func TestKnownColumn(t *testing.T) {
	assert.True(t, KnownColumn("price"))
	assert.True(t, KnownColumn("review_scores_rating"))
	assert.False(t, KnownColumn("budget"))
	assert.False(t, KnownColumn(""))
}

func TestSchemaDescriptionListsEveryColumn(t *testing.T) {
	desc := SchemaDescription()
	for _, c := range Columns {
		assert.Contains(t, desc, c.Name)
	}
}

func TestCategoryValuesDescribe(t *testing.T) {
	cv := CategoryValues{
		Locations:     []string{"Oslo", "Tokyo"},
		PropertyTypes: []string{"Apartment"},
	}
	out := cv.Describe()
	assert.Contains(t, out, "Oslo, Tokyo")
	assert.Contains(t, out, "Apartment")
}
