package overpass

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/1F47E/trip-spots/pkg/models"
)

func TestRadiusQuery(t *testing.T) {
	qb := NewQueryBuilder(25)

	q := qb.RadiusQuery(35.68, 139.76, 2, []string{"restaurant"})

	assert.True(t, strings.HasPrefix(q, "[out:json][timeout:25];"))
	assert.Contains(t, q, `node["amenity"~"^(restaurant)$"]["name"~"."](around:2000,35.68,139.76);`)
	assert.Contains(t, q, `way["amenity"~"^(restaurant)$"]["name"~"."](around:2000,35.68,139.76);`)
	assert.Contains(t, q, "out center;")
}

func TestRadiusQueryConvertsKilometersToMeters(t *testing.T) {
	q := NewQueryBuilder(0).RadiusQuery(1, 2, 0.5, []string{"cafe"})
	assert.Contains(t, q, "(around:500,1,2)")
	assert.Contains(t, q, "[timeout:25]")
}

func TestBoundsQuery(t *testing.T) {
	qb := NewQueryBuilder(30)
	b := models.Bounds{South: 35.66, West: 139.74, North: 35.7, East: 139.78}

	q := qb.BoundsQuery(b, []string{"bar", "pub"})

	assert.Contains(t, q, "[timeout:30]")
	assert.Contains(t, q, `node["amenity"~"^(bar|pub)$"]["name"~"."](35.66,139.74,35.7,139.78);`)
	assert.Contains(t, q, `way["amenity"~"^(bar|pub)$"]["name"~"."](35.66,139.74,35.7,139.78);`)
}

func TestCategoryPattern(t *testing.T) {
	testCases := []struct {
		name       string
		categories []string
		expected   string
	}{
		{"single", []string{"cafe"}, "^(cafe)$"},
		{"caller order kept", []string{"pub", "bar"}, "^(pub|bar)$"},
		{"blank entries skipped", []string{" ", "cafe", ""}, "^(cafe)$"},
		{"empty falls back to defaults", nil, "^(restaurant|cafe|fast_food|bar|pub)$"},
		{"only blanks falls back to defaults", []string{"", "  "}, "^(restaurant|cafe|fast_food|bar|pub)$"},
		{"regex meta doubly escaped", []string{"ice.cream"}, `^(ice\\.cream)$`},
		{"quote escaped", []string{`bar"`}, `^(bar\")$`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, categoryPattern(tc.categories))
		})
	}
}

func TestQueryEscapesMetaCharacters(t *testing.T) {
	q := NewQueryBuilder(0).RadiusQuery(35.68, 139.76, 1, []string{"ice.cream", "cafe"})
	assert.Contains(t, q, `["amenity"~"^(ice\\.cream|cafe)$"]`)
}

func TestQueryUsesCallerCategories(t *testing.T) {
	q := NewQueryBuilder(25).RadiusQuery(0, 0, 1, []string{"museum"})
	assert.Contains(t, q, `"^(museum)$"`)
	assert.NotContains(t, q, "restaurant")
}
