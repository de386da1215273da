// Package normalize turns raw Overpass elements into canonical spots.
package normalize

import (
	"strconv"
	"strings"

	"github.com/1F47E/trip-spots/pkg/models"
	"github.com/1F47E/trip-spots/pkg/overpass"
)

const (
	FallbackType    = "other"
	FallbackSubtype = "general"
)

var (
	typeTags    = []string{"amenity", "tourism", "shop", "historic", "leisure", "natural"}
	subtypeTags = []string{"cuisine", "tourism", "shop", "historic"}
)

// Normalize converts one element. The second result is false when the element
// has no coordinates or no name and must be dropped.
func Normalize(el overpass.Element) (models.Spot, bool) {
	lat, lon, ok := el.Coordinates()
	if !ok {
		return models.Spot{}, false
	}
	name := strings.TrimSpace(el.Tags["name"])
	if name == "" {
		return models.Spot{}, false
	}

	return models.Spot{
		ID:           el.Type + "-" + strconv.FormatInt(el.ID, 10),
		Name:         name,
		Lat:          lat,
		Lng:          lon,
		Type:         firstTag(el.Tags, typeTags, FallbackType),
		Subtype:      firstTag(el.Tags, subtypeTags, FallbackSubtype),
		Address:      Address(el.Tags),
		Website:      firstTag(el.Tags, []string{"website", "contact:website"}, ""),
		Phone:        firstTag(el.Tags, []string{"phone", "contact:phone"}, ""),
		OpeningHours: el.Tags["opening_hours"],
		Description:  el.Tags["description"],
	}, true
}

// NormalizeAll keeps the input order and silently drops excluded elements.
func NormalizeAll(elements []overpass.Element) []models.Spot {
	spots := make([]models.Spot, 0, len(elements))
	for _, el := range elements {
		if spot, ok := Normalize(el); ok {
			spots = append(spots, spot)
		}
	}
	return spots
}

// Address prefers addr:full, else "housenumber street". An all-blank result is "".
func Address(tags map[string]string) string {
	if full := strings.TrimSpace(tags["addr:full"]); full != "" {
		return full
	}
	return strings.TrimSpace(strings.TrimSpace(tags["addr:housenumber"]) + " " + strings.TrimSpace(tags["addr:street"]))
}

func firstTag(tags map[string]string, keys []string, fallback string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(tags[k]); v != "" {
			return v
		}
	}
	return fallback
}
