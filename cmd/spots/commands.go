package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/1F47E/trip-spots/pkg/models"
	"github.com/1F47E/trip-spots/pkg/spatial"
)

var (
	lat, lng      float64
	radiusKm      float64
	categories    []string
	asJSON        bool
	withAddresses bool
	maxSpots      int

	south, west, north, east float64
)

var nearCmd = &cobra.Command{
	Use:   "near",
	Short: "Find spots within a radius of a point",
	Long:  `Query spots within --radius km of --lat/--lng, sampled evenly over the area.`,
	RunE:  runNear,
}

var boundsCmd = &cobra.Command{
	Use:   "bounds",
	Short: "Find every spot in a bounding box",
	Long: `Query every spot in the bounding box, snapped outward to the cache grid.
The result covers slightly more than the requested box.`,
	RunE: runBounds,
}

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Find spots visible in a map viewport",
	Long:  `Fetch the grid-snapped box around the viewport, keep the spots inside it and sample them down to --max.`,
	RunE:  runView,
}

var boundaryCmd = &cobra.Command{
	Use:   "boundary <place name>",
	Short: "Resolve a place name to its boundary polygon",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBoundary,
}

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Reverse geocode a coordinate",
	RunE:  runAddress,
}

func init() {
	for _, cmd := range []*cobra.Command{nearCmd, boundsCmd, viewCmd} {
		cmd.Flags().StringSliceVarP(&categories, "category", "t", nil, "Amenity categories (default restaurant,cafe,fast_food,bar,pub)")
		cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
		cmd.Flags().BoolVar(&withAddresses, "addresses", false, "Reverse geocode spots without an address")
	}

	nearCmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	nearCmd.Flags().Float64Var(&lng, "lng", 0, "Longitude")
	nearCmd.Flags().Float64VarP(&radiusKm, "radius", "r", 1, "Search radius in km")
	_ = nearCmd.MarkFlagRequired("lat")
	_ = nearCmd.MarkFlagRequired("lng")

	for _, cmd := range []*cobra.Command{boundsCmd, viewCmd} {
		cmd.Flags().Float64Var(&south, "south", 0, "South latitude")
		cmd.Flags().Float64Var(&west, "west", 0, "West longitude")
		cmd.Flags().Float64Var(&north, "north", 0, "North latitude")
		cmd.Flags().Float64Var(&east, "east", 0, "East longitude")
		cmd.MarkFlagsRequiredTogether("south", "west", "north", "east")
	}
	viewCmd.Flags().IntVarP(&maxSpots, "max", "m", 0, "Maximum spots to show (default from config)")

	boundaryCmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	addressCmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	addressCmd.Flags().Float64Var(&lng, "lng", 0, "Longitude")
	_ = addressCmd.MarkFlagRequired("lat")
	_ = addressCmd.MarkFlagRequired("lng")
}

func runNear(cmd *cobra.Command, args []string) error {
	if radiusKm <= 0 {
		return errors.New("radius must be positive")
	}
	ctx := cmd.Context()
	center := models.Location{Lat: lat, Lng: lng}

	found := spotsApp.service.SpotsNear(ctx, lat, lng, radiusKm, categories)
	found = enrich(cmd, found)

	// Closest first
	sorted := found
	if len(found) > 0 {
		sorted = spatial.Build(found).Nearest(center, len(found))
	}

	if asJSON {
		return printJSON(sorted)
	}
	printTitle(fmt.Sprintf("Spots within %g km of %.5f, %.5f", radiusKm, lat, lng))
	printSpots(sorted, &center)
	printCacheStats(spotsApp.service.NearKey(lat, lng, radiusKm, categories))
	return nil
}

func runBounds(cmd *cobra.Command, args []string) error {
	b, err := boundsFromFlags()
	if err != nil {
		return err
	}

	found := spotsApp.service.SpotsInBounds(cmd.Context(), b, categories)
	found = enrich(cmd, found)

	if asJSON {
		return printJSON(found)
	}
	printTitle(fmt.Sprintf("Spots around %s", formatBounds(b)))
	printSpots(found, nil)
	printCacheStats(spotsApp.service.BoundsKey(b, categories))
	return nil
}

func runView(cmd *cobra.Command, args []string) error {
	b, err := boundsFromFlags()
	if err != nil {
		return err
	}
	limit := maxSpots
	if limit <= 0 {
		limit = spotsApp.cfg.Sampler.MaxSpots
	}

	found := spotsApp.service.SpotsInView(cmd.Context(), b, categories, limit)
	found = enrich(cmd, found)

	if asJSON {
		return printJSON(found)
	}
	printTitle(fmt.Sprintf("Spots in view %s", formatBounds(b)))
	printSpots(found, nil)
	printCacheStats(spotsApp.service.BoundsKey(b, categories))
	return nil
}

func runBoundary(cmd *cobra.Command, args []string) error {
	name := strings.Join(args, " ")
	record := spotsApp.resolver.Resolve(cmd.Context(), name)
	if record == nil {
		return fmt.Errorf("no boundary found for %q", name)
	}

	if asJSON {
		return printJSON(record)
	}
	printTitle("Boundary of " + name)
	printBoundary(record)
	return nil
}

func runAddress(cmd *cobra.Command, args []string) error {
	spot := spotsApp.service.EnrichAddress(cmd.Context(), models.Spot{ID: "point", Lat: lat, Lng: lng})
	if spot.Address == "" {
		return fmt.Errorf("no address found for %.5f, %.5f", lat, lng)
	}
	fmt.Println(spot.Address)
	return nil
}

// enrich fills missing addresses when --addresses is set. Geocoding is
// throttled, so this is slow for large result sets.
func enrich(cmd *cobra.Command, found []models.Spot) []models.Spot {
	if !withAddresses {
		return found
	}
	out := make([]models.Spot, len(found))
	for i, s := range found {
		out[i] = spotsApp.service.EnrichAddress(cmd.Context(), s)
	}
	return out
}

func boundsFromFlags() (models.Bounds, error) {
	b := models.Bounds{South: south, West: west, North: north, East: east}
	if b.South > b.North {
		return b, fmt.Errorf("south %g is above north %g", b.South, b.North)
	}
	if b.West > b.East {
		return b, fmt.Errorf("west %g is east of east %g", b.West, b.East)
	}
	return b, nil
}
