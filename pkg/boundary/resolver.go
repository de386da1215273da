// Package boundary resolves place names to administrative polygons, falling
// back to a bare centroid when no polygon is available.
package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	geojson "github.com/paulmach/go.geojson"

	"github.com/1F47E/trip-spots/pkg/logger"
	"github.com/1F47E/trip-spots/pkg/models"
	"github.com/1F47E/trip-spots/pkg/nominatim"
)

// Geocoder is the subset of the Nominatim client the resolver needs.
type Geocoder interface {
	SearchPolygon(ctx context.Context, q string) (*nominatim.Place, error)
	SearchPoint(ctx context.Context, q string) (lat, lng float64, err error)
}

// Resolver looks up boundaries for place names within one country.
type Resolver struct {
	geocoder Geocoder
	country  string
}

// NewResolver creates a resolver that appends country to every query.
func NewResolver(geocoder Geocoder, country string) *Resolver {
	return &Resolver{geocoder: geocoder, country: strings.TrimSpace(country)}
}

// Resolve tries the polygon lookup first and the centroid lookup second.
// A nil result means no boundary is available; it is not a retryable error.
func (r *Resolver) Resolve(ctx context.Context, name string) *models.BoundaryRecord {
	q := r.query(name)

	record, err := r.polygon(ctx, q)
	if err == nil {
		return record
	}
	logger.Info("boundary: no polygon for %q, falling back to centroid: %v", q, err)

	lat, lng, err := r.geocoder.SearchPoint(ctx, q)
	if err != nil {
		logger.Error("boundary: centroid lookup for %q failed: %v", q, err)
		return nil
	}
	return &models.BoundaryRecord{Coordinates: models.Location{Lat: lat, Lng: lng}}
}

func (r *Resolver) query(name string) string {
	name = strings.TrimSpace(name)
	if r.country == "" {
		return name
	}
	return name + ", " + r.country
}

func (r *Resolver) polygon(ctx context.Context, q string) (*models.BoundaryRecord, error) {
	place, err := r.geocoder.SearchPolygon(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(place.GeoJSON) == 0 || string(place.GeoJSON) == "null" {
		return nil, fmt.Errorf("no geometry for %q", q)
	}

	geometry, err := geojson.UnmarshalGeometry(place.GeoJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode geometry: %w", err)
	}
	if !geometry.IsPolygon() && !geometry.IsMultiPolygon() {
		return nil, fmt.Errorf("geometry for %q is a %s, not a polygon", q, geometry.Type)
	}

	lat, lng, err := place.Point()
	if err != nil {
		return nil, err
	}

	record := &models.BoundaryRecord{
		GeoJSON:     geometry,
		Coordinates: models.Location{Lat: lat, Lng: lng},
	}
	if bbox, ok := BBoxOf(place.GeoJSON); ok {
		record.BBox = &bbox
	}
	return record, nil
}

// BBoxOf computes [minLng, minLat, maxLng, maxLat] of a GeoJSON geometry by
// walking its coordinates at any nesting depth.
func BBoxOf(raw json.RawMessage) (models.BBox, bool) {
	var geometry struct {
		Coordinates interface{} `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &geometry); err != nil {
		return models.BBox{}, false
	}

	b := bboxWalker{
		minLng: math.Inf(1), minLat: math.Inf(1),
		maxLng: math.Inf(-1), maxLat: math.Inf(-1),
	}
	b.walk(geometry.Coordinates)
	if !b.found {
		return models.BBox{}, false
	}
	return models.BBox{b.minLng, b.minLat, b.maxLng, b.maxLat}, true
}

type bboxWalker struct {
	minLng, minLat, maxLng, maxLat float64
	found                          bool
}

// walk treats an array whose first element is a number as a [lng, lat] position
// and recurses into anything else.
func (b *bboxWalker) walk(v interface{}) {
	arr, ok := v.([]interface{})
	if !ok || len(arr) == 0 {
		return
	}
	if _, isNum := arr[0].(float64); isNum {
		if len(arr) < 2 {
			return
		}
		lng, ok1 := arr[0].(float64)
		lat, ok2 := arr[1].(float64)
		if !ok1 || !ok2 {
			return
		}
		b.minLng = math.Min(b.minLng, lng)
		b.maxLng = math.Max(b.maxLng, lng)
		b.minLat = math.Min(b.minLat, lat)
		b.maxLat = math.Max(b.maxLat, lat)
		b.found = true
		return
	}
	for _, child := range arr {
		b.walk(child)
	}
}
