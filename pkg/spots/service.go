// Package spots is the entry point for spot retrieval: it consults the cache,
// queries Overpass on a miss, normalizes and samples the result, and stores it.
//
// Public methods never return errors. Upstream failures are logged and come
// back as an empty result, which is not cached.
package spots

import (
	"context"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/1F47E/trip-spots/pkg/cache"
	"github.com/1F47E/trip-spots/pkg/logger"
	"github.com/1F47E/trip-spots/pkg/models"
	"github.com/1F47E/trip-spots/pkg/normalize"
	"github.com/1F47E/trip-spots/pkg/overpass"
	"github.com/1F47E/trip-spots/pkg/sampler"
	"github.com/1F47E/trip-spots/pkg/spatial"
)

// DefaultMaxSpots caps point-radius results.
const DefaultMaxSpots = 50

// POIFetcher runs an Overpass query.
type POIFetcher interface {
	Fetch(ctx context.Context, query string) ([]overpass.Element, error)
}

// Reverser resolves a coordinate to a human-readable address.
type Reverser interface {
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

// Service mediates every POI call through the cache.
type Service struct {
	cache    *cache.Cache
	poi      POIFetcher
	reverser Reverser
	queries  overpass.QueryBuilder
	grid     cache.Grid
	maxSpots int

	// Concurrent misses on one key share a single upstream call.
	flights singleflight.Group
}

// Lookup is a result together with whether the cache answered it.
type Lookup struct {
	Spots []models.Spot
	Hit   bool
}

// Option configures a Service.
type Option func(*Service)

// WithReverser enables address enrichment.
func WithReverser(r Reverser) Option {
	return func(s *Service) { s.reverser = r }
}

// WithQueryBuilder replaces the default query builder.
func WithQueryBuilder(qb overpass.QueryBuilder) Option {
	return func(s *Service) { s.queries = qb }
}

// WithGrid replaces the bbox snapping grid.
func WithGrid(g cache.Grid) Option {
	return func(s *Service) { s.grid = g }
}

// WithMaxSpots sets the point-radius sampling cap.
func WithMaxSpots(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSpots = n
		}
	}
}

// NewService wires a cache and a POI fetcher together.
func NewService(c *cache.Cache, poi POIFetcher, opts ...Option) *Service {
	s := &Service{
		cache:    c,
		poi:      poi,
		queries:  overpass.NewQueryBuilder(overpass.DefaultTimeoutSeconds),
		grid:     cache.NewGrid(cache.DefaultGridDegrees),
		maxSpots: DefaultMaxSpots,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache exposes the underlying cache for stats and clearing.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// SpotsNear returns sampled spots within radiusKm of (lat, lng).
func (s *Service) SpotsNear(ctx context.Context, lat, lng, radiusKm float64, categories []string) []models.Spot {
	cats := resolveCategories(categories)
	key := cache.RadiusKey(lat, lng, radiusKm, cats)

	return s.load(ctx, key, func(ctx context.Context) ([]models.Spot, error) {
		elements, err := s.poi.Fetch(ctx, s.queries.RadiusQuery(lat, lng, radiusKm, cats))
		if err != nil {
			return nil, err
		}
		center := models.Location{Lat: lat, Lng: lng}
		found := normalize.NormalizeAll(elements)
		sampled := sampler.Sample(found, spatial.RadiusBounds(center, radiusKm), s.maxSpots)
		logger.Debug("spots: %d elements, %d spots, %d after sampling for %s", len(elements), len(found), len(sampled), key)
		return sampled, nil
	}).Spots
}

// NearKey is the cache key SpotsNear stores its result under.
func (s *Service) NearKey(lat, lng, radiusKm float64, categories []string) string {
	return cache.RadiusKey(lat, lng, radiusKm, resolveCategories(categories))
}

// BoundsKey is the cache key SpotsInBounds and SpotsInView store b under.
func (s *Service) BoundsKey(b models.Bounds, categories []string) string {
	return s.grid.Snap(b, resolveCategories(categories)).Key
}

// SpotsInBounds returns every spot in the grid-expanded region around b.
// The result covers more than b so that small pans hit the same entry.
func (s *Service) SpotsInBounds(ctx context.Context, b models.Bounds, categories []string) []models.Spot {
	return s.lookupBounds(ctx, b, categories).Spots
}

func (s *Service) lookupBounds(ctx context.Context, b models.Bounds, categories []string) Lookup {
	cats := resolveCategories(categories)
	snapped := s.grid.Snap(b, cats)

	return s.load(ctx, snapped.Key, func(ctx context.Context) ([]models.Spot, error) {
		elements, err := s.poi.Fetch(ctx, s.queries.BoundsQuery(snapped.Bounds, cats))
		if err != nil {
			return nil, err
		}
		found := normalize.NormalizeAll(elements)
		logger.Debug("spots: %d elements, %d spots for %s", len(elements), len(found), snapped.Key)
		return found, nil
	})
}

// SpotsInView fetches the expanded region, keeps the spots inside the exact
// viewport and samples them down to max.
func (s *Service) SpotsInView(ctx context.Context, viewport models.Bounds, categories []string, max int) []models.Spot {
	return s.LookupView(ctx, viewport, categories, max).Spots
}

// LookupView is SpotsInView that also reports whether this call was answered
// from the cache.
func (s *Service) LookupView(ctx context.Context, viewport models.Bounds, categories []string, max int) Lookup {
	res := s.lookupBounds(ctx, viewport, categories)
	if len(res.Spots) == 0 {
		return res
	}

	visible, err := spatial.Build(res.Spots).QueryBox(viewport)
	if err != nil {
		logger.Error("spots: viewport filter failed: %v", err)
		return Lookup{Spots: []models.Spot{}, Hit: res.Hit}
	}
	res.Spots = sampler.Sample(visible, viewport, max)
	return res
}

// EnrichAddress returns a copy of spot with an address from reverse
// geocoding. Spots that already carry an address, or lookups that fail, come
// back unchanged.
func (s *Service) EnrichAddress(ctx context.Context, spot models.Spot) models.Spot {
	if spot.Address != "" || s.reverser == nil {
		return spot
	}
	address, err := s.reverser.Reverse(ctx, spot.Lat, spot.Lng)
	if err != nil {
		logger.Error("spots: reverse lookup for %s failed: %v", spot.ID, err)
		return spot
	}
	return spot.WithAddress(address)
}

// load serves key from the cache or runs fetch once for all concurrent callers.
// The shared fetch is detached from any single caller's cancellation; each
// caller stops waiting when its own ctx is done.
func (s *Service) load(ctx context.Context, key string, fetch func(context.Context) ([]models.Spot, error)) Lookup {
	if spots, ok := s.cache.Get(key); ok {
		logger.Debug("spots: cache hit %s (%d spots)", key, len(spots))
		return Lookup{Spots: spots, Hit: true}
	}
	logger.Debug("spots: cache miss %s", key)

	flightCtx := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(key, func() (interface{}, error) {
		spots, err := fetch(flightCtx)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, spots)
		return spots, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		logger.Debug("spots: stopped waiting for %s: %v", key, ctx.Err())
		return Lookup{Spots: []models.Spot{}}
	}
	if res.Err != nil {
		logger.Error("spots: fetch for %s failed: %v", key, res.Err)
		return Lookup{Spots: []models.Spot{}}
	}
	if res.Shared {
		logger.Debug("spots: joined in-flight fetch for %s", key)
	}

	spots, _ := res.Val.([]models.Spot)
	out := make([]models.Spot, len(spots))
	copy(out, spots)
	return Lookup{Spots: out}
}

// resolveCategories trims blanks and falls back to the default amenity set.
func resolveCategories(categories []string) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return append(out, overpass.DefaultCategories...)
	}
	return out
}
