package models

import (
	geojson "github.com/paulmach/go.geojson"
)

// Location represents a geographic location with latitude and longitude
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is an axis-aligned search region in decimal degrees.
// Map-library specific bounds are converted to this shape before use.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Contains reports whether the location lies inside the bounds, edges included.
func (b Bounds) Contains(loc Location) bool {
	return loc.Lat >= b.South && loc.Lat <= b.North &&
		loc.Lng >= b.West && loc.Lng <= b.East
}

// Spot is the canonical point-of-interest record.
type Spot struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Type         string  `json:"type"`
	Subtype      string  `json:"subtype"`
	Address      string  `json:"address,omitempty"`
	Website      string  `json:"website,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	OpeningHours string  `json:"opening_hours,omitempty"`
	Description  string  `json:"description,omitempty"`
}

// Location returns the spot coordinates.
func (s Spot) Location() Location {
	return Location{Lat: s.Lat, Lng: s.Lng}
}

// WithAddress returns a copy of the spot carrying the given address.
func (s Spot) WithAddress(address string) Spot {
	s.Address = address
	return s
}

// BBox is [minLng, minLat, maxLng, maxLat].
type BBox [4]float64

// BoundaryRecord is the resolved geometry of an administrative region.
// Coordinates is always set; GeoJSON and BBox only when polygon data was available.
type BoundaryRecord struct {
	GeoJSON     *geojson.Geometry `json:"geojson"`
	BBox        *BBox             `json:"bbox,omitempty"`
	Coordinates Location          `json:"coordinates"`
}

// HasPolygon reports whether the record carries polygon geometry.
func (r *BoundaryRecord) HasPolygon() bool {
	return r != nil && r.GeoJSON != nil
}
