package cache

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/1F47E/trip-spots/pkg/models"
)

const (
	// coordPrecision rounds radius-query centres to 3 decimals (~110 m).
	coordPrecision = 1000

	// DefaultGridDegrees is the bbox snapping grid (~2 km).
	DefaultGridDegrees = 0.02
)

// RadiusKey derives the key for a point-radius query. Nearby centres within
// the rounding cell share a key; category order does not matter.
func RadiusKey(lat, lng, radiusKm float64, categories []string) string {
	return fmt.Sprintf("radius:%d:%d:%s:%s",
		int64(math.Round(lat*coordPrecision)),
		int64(math.Round(lng*coordPrecision)),
		strconv.FormatFloat(radiusKm, 'f', -1, 64),
		joinCategories(categories),
	)
}

// Snapped is a viewport expanded onto the bbox grid. Bounds is the region
// that is queried upstream; Key identifies it in the cache.
type Snapped struct {
	Bounds models.Bounds
	Key    string
}

// Grid snaps bounding boxes outward to a fixed cell size and pads them by one cell.
type Grid struct {
	Degrees float64
}

// NewGrid creates a grid; a non-positive size falls back to DefaultGridDegrees.
func NewGrid(degrees float64) Grid {
	if degrees <= 0 {
		degrees = DefaultGridDegrees
	}
	return Grid{Degrees: degrees}
}

// Snap floors south/west and ceils north/east to the grid, then expands one
// cell in every direction. The key is built from integer cell indices so two
// viewports in the same expanded cell always collide.
func (g Grid) Snap(b models.Bounds, categories []string) Snapped {
	south := int64(math.Floor(b.South/g.Degrees)) - 1
	west := int64(math.Floor(b.West/g.Degrees)) - 1
	north := int64(math.Ceil(b.North/g.Degrees)) + 1
	east := int64(math.Ceil(b.East/g.Degrees)) + 1

	return Snapped{
		Bounds: models.Bounds{
			South: g.coord(south),
			West:  g.coord(west),
			North: g.coord(north),
			East:  g.coord(east),
		},
		Key: fmt.Sprintf("bounds:%s:%d:%d:%d:%d:%s",
			strconv.FormatFloat(g.Degrees, 'f', -1, 64),
			south, west, north, east,
			joinCategories(categories),
		),
	}
}

// coord converts a cell index back to degrees, trimmed of float noise.
func (g Grid) coord(idx int64) float64 {
	return math.Round(float64(idx)*g.Degrees*1e9) / 1e9
}

// BoundsKey snaps with the default grid.
func BoundsKey(b models.Bounds, categories []string) Snapped {
	return NewGrid(DefaultGridDegrees).Snap(b, categories)
}

func joinCategories(categories []string) string {
	sorted := make([]string, 0, len(categories))
	for _, c := range categories {
		if c = strings.TrimSpace(c); c != "" {
			sorted = append(sorted, c)
		}
	}
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
