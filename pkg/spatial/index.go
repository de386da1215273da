// Package spatial implements an R-Tree index over spots for viewport and
// proximity queries on already-fetched result sets.
package spatial

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"

	"github.com/1F47E/trip-spots/pkg/models"
)

const (
	tolerance   = 1e-7
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	earthRadius = 6371.0 // km
)

// spatialSpot wraps a spot to implement rtreego.Spatial.
// order keeps the insertion position so results can be returned in input order.
type spatialSpot struct {
	spot  models.Spot
	order int
	rect  *rtreego.Rect
}

func (s *spatialSpot) Bounds() *rtreego.Rect {
	return s.rect
}

// Index is a thread-safe R-Tree over spots
type Index struct {
	tree      *rtreego.Rtree
	mu        sync.RWMutex
	itemCount atomic.Int64
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren),
	}
}

// Build creates an index holding spots
func Build(spots []models.Spot) *Index {
	idx := NewIndex()
	idx.Insert(spots)
	return idx
}

// Insert adds spots to the index
func (idx *Index) Insert(spots []models.Spot) {
	if len(spots) == 0 {
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	base := int(idx.itemCount.Load())
	for i, s := range spots {
		p := rtreego.Point{s.Lat, s.Lng}
		idx.tree.Insert(&spatialSpot{spot: s, order: base + i, rect: p.ToRect(tolerance)})
	}
	idx.itemCount.Add(int64(len(spots)))
}

// QueryBox returns the spots inside b, edges included, in insertion order
func (idx *Index) QueryBox(b models.Bounds) ([]models.Spot, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rect, err := rtreego.NewRect(
		rtreego.Point{b.South, b.West},
		[]float64{nonZero(b.North - b.South), nonZero(b.East - b.West)},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid bounding box: %w", err)
	}

	hits := make([]*spatialSpot, 0)
	for _, result := range idx.tree.SearchIntersect(rect) {
		item, ok := result.(*spatialSpot)
		if !ok {
			continue
		}
		// Strict boundary check, the tree works on padded rectangles
		if b.Contains(item.spot.Location()) {
			hits = append(hits, item)
		}
	}
	return inOrder(hits), nil
}

// QueryRadius returns spots within radiusKm of center, in insertion order
func (idx *Index) QueryRadius(center models.Location, radiusKm float64) ([]models.Spot, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	latDeg := (radiusKm / earthRadius) * (180 / math.Pi)
	lngDeg := latDeg
	if c := math.Cos(center.Lat * math.Pi / 180); c > 1e-6 {
		lngDeg = latDeg / c
	}

	rect, err := rtreego.NewRect(
		rtreego.Point{center.Lat - latDeg, center.Lng - lngDeg},
		[]float64{nonZero(2 * latDeg), nonZero(2 * lngDeg)},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid radius search: %w", err)
	}

	hits := make([]*spatialSpot, 0)
	for _, result := range idx.tree.SearchIntersect(rect) {
		item, ok := result.(*spatialSpot)
		if !ok {
			continue
		}
		if Distance(center.Lat, center.Lng, item.spot.Lat, item.spot.Lng) <= radiusKm {
			hits = append(hits, item)
		}
	}
	return inOrder(hits), nil
}

// Nearest returns up to n spots ordered by haversine distance from center
func (idx *Index) Nearest(center models.Location, n int) []models.Spot {
	if n <= 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	// The tree ranks by planar distance in degrees; over-fetch and re-rank.
	candidates := idx.tree.NearestNeighbors(n*2, rtreego.Point{center.Lat, center.Lng})

	type ranked struct {
		spot     models.Spot
		distance float64
	}
	results := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		item, ok := c.(*spatialSpot)
		if !ok || item == nil {
			continue
		}
		results = append(results, ranked{
			spot:     item.spot,
			distance: Distance(center.Lat, center.Lng, item.spot.Lat, item.spot.Lng),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].distance < results[j].distance
	})
	if len(results) > n {
		results = results[:n]
	}

	spots := make([]models.Spot, len(results))
	for i, r := range results {
		spots[i] = r.spot
	}
	return spots
}

// Count returns the number of indexed spots
func (idx *Index) Count() int64 {
	return idx.itemCount.Load()
}

// Distance calculates the Haversine distance between two points in kilometers
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lng1Rad := lng1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lng2Rad := lng2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLng := lng2Rad - lng1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadius * c
}

// RadiusBounds approximates the box enclosing a circle of radiusKm around center
func RadiusBounds(center models.Location, radiusKm float64) models.Bounds {
	latDeg := (radiusKm / earthRadius) * (180 / math.Pi)
	lngDeg := latDeg
	if c := math.Cos(center.Lat * math.Pi / 180); c > 1e-6 {
		lngDeg = latDeg / c
	}
	return models.Bounds{
		South: center.Lat - latDeg,
		West:  center.Lng - lngDeg,
		North: center.Lat + latDeg,
		East:  center.Lng + lngDeg,
	}
}

// rtreego rejects zero-length rectangle sides.
func nonZero(v float64) float64 {
	if v <= 0 {
		return tolerance
	}
	return v
}

func inOrder(hits []*spatialSpot) []models.Spot {
	sort.Slice(hits, func(i, j int) bool { return hits[i].order < hits[j].order })
	spots := make([]models.Spot, len(hits))
	for i, h := range hits {
		spots[i] = h.spot
	}
	return spots
}
