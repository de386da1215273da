// Package overpass builds Overpass QL queries and talks to an Overpass interpreter.
package overpass

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/1F47E/trip-spots/pkg/models"
)

// DefaultTimeoutSeconds is the [timeout:N] hint embedded in every query.
const DefaultTimeoutSeconds = 25

// DefaultCategories is used when a caller passes no categories.
var DefaultCategories = []string{"restaurant", "cafe", "fast_food", "bar", "pub"}

// QueryBuilder renders region + category filters into Overpass QL.
type QueryBuilder struct {
	TimeoutSeconds int
}

// NewQueryBuilder creates a builder with the given timeout hint
func NewQueryBuilder(timeoutSeconds int) QueryBuilder {
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultTimeoutSeconds
	}
	return QueryBuilder{TimeoutSeconds: timeoutSeconds}
}

// RadiusQuery returns nodes and ways tagged with one of the amenity categories
// and a non-empty name within radiusKm of (lat, lng).
func (qb QueryBuilder) RadiusQuery(lat, lng, radiusKm float64, categories []string) string {
	meters := radiusKm * 1000
	filter := fmt.Sprintf("(around:%s,%s,%s)", formatFloat(meters), formatFloat(lat), formatFloat(lng))
	return qb.render(filter, categories)
}

// BoundsQuery returns the same selection restricted to a bounding box.
func (qb QueryBuilder) BoundsQuery(b models.Bounds, categories []string) string {
	filter := fmt.Sprintf("(%s,%s,%s,%s)",
		formatFloat(b.South), formatFloat(b.West), formatFloat(b.North), formatFloat(b.East))
	return qb.render(filter, categories)
}

func (qb QueryBuilder) render(region string, categories []string) string {
	selector := fmt.Sprintf(`["amenity"~"%s"]["name"~"."]`, categoryPattern(categories))

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n", qb.TimeoutSeconds)
	b.WriteString("(\n")
	fmt.Fprintf(&b, "  node%s%s;\n", selector, region)
	fmt.Fprintf(&b, "  way%s%s;\n", selector, region)
	b.WriteString(");\n")
	b.WriteString("out center;\n")
	return b.String()
}

// qlString escapes a value for a double-quoted Overpass QL string, where a
// backslash starts a string escape before the regex engine sees it.
var qlString = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// categoryPattern builds an anchored alternation such as ^(bar|cafe)$, ready
// to sit inside a QL string literal.
func categoryPattern(categories []string) string {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	quoted := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		quoted = append(quoted, qlString.Replace(regexp.QuoteMeta(c)))
	}
	if len(quoted) == 0 {
		return categoryPattern(DefaultCategories)
	}
	return "^(" + strings.Join(quoted, "|") + ")$"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
