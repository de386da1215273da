package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/1F47E/trip-spots/pkg/models"
	"github.com/1F47E/trip-spots/pkg/spatial"
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1)

	subtitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(0, 1)

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))

	// Disabled when stdout is not a terminal
	colorEnabled = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
)

func paint(style lipgloss.Style, s string) string {
	if !colorEnabled {
		return s
	}
	return style.Render(s)
}

func printTitle(title string) {
	fmt.Printf("\n%s\n", paint(titleStyle, "🍜 "+title))
	fmt.Println(strings.Repeat("=", 60))
}

func printSubtitle(subtitle string) {
	fmt.Printf("\n%s\n", paint(subtitleStyle, subtitle))
}

func printInfo(message string) {
	fmt.Println(paint(infoStyle, "• "+message))
}

func printStat(label string, value interface{}) {
	fmt.Printf("  %s: %s\n", label, paint(statStyle, fmt.Sprint(value)))
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSpots lists spots; with a center each line also shows the distance.
func printSpots(found []models.Spot, center *models.Location) {
	if len(found) == 0 {
		fmt.Println(paint(errorStyle, "✗ No spots found"))
		return
	}
	fmt.Println(paint(successStyle, fmt.Sprintf("✓ %s spots", humanize.Comma(int64(len(found))))))
	fmt.Println()

	for i, s := range found {
		line := fmt.Sprintf("%3d. %s %s", i+1, paint(statStyle, s.Name), paint(dimStyle, "("+s.Type+"/"+s.Subtype+")"))
		if center != nil {
			meters := spatial.Distance(center.Lat, center.Lng, s.Lat, s.Lng) * 1000
			line += " " + paint(infoStyle, humanize.SIWithDigits(meters, 1, "m"))
		}
		fmt.Println(line)
		if s.Address != "" {
			fmt.Println("     " + s.Address)
		}
		if s.OpeningHours != "" {
			fmt.Println("     " + paint(dimStyle, s.OpeningHours))
		}
	}
}

// printCacheStats shows the cache counters and the age of the entry under key.
func printCacheStats(key string) {
	c := spotsApp.service.Cache()
	stats := c.Stats()

	printSubtitle("Cache")
	printStat("Entries", humanize.Comma(int64(stats.Entries)))
	printStat("Hits", humanize.Comma(int64(stats.Hits)))
	printStat("Misses", humanize.Comma(int64(stats.Misses)))
	printStat("Expired", humanize.Comma(int64(stats.Expired)))
	if age, ok := c.Age(key); ok {
		printStat("Result age", fmt.Sprintf("%s (expires in %s)", age.Round(time.Second), (c.TTL() - age).Round(time.Second)))
	} else {
		printStat("Result age", "not cached")
	}
}

func printBoundary(record *models.BoundaryRecord) {
	printStat("Centroid", fmt.Sprintf("%.5f, %.5f", record.Coordinates.Lat, record.Coordinates.Lng))
	if !record.HasPolygon() {
		printInfo("No polygon available, centroid only")
		return
	}

	printStat("Geometry", record.GeoJSON.Type)
	rings := 0
	switch {
	case record.GeoJSON.IsPolygon():
		rings = len(record.GeoJSON.Polygon)
	case record.GeoJSON.IsMultiPolygon():
		for _, p := range record.GeoJSON.MultiPolygon {
			rings += len(p)
		}
	}
	printStat("Rings", humanize.Comma(int64(rings)))
	if record.BBox != nil {
		b := record.BBox
		printStat("BBox", formatBounds(models.Bounds{South: b[1], West: b[0], North: b[3], East: b[2]}))
	}
}

func formatBounds(b models.Bounds) string {
	return fmt.Sprintf("[%.4f, %.4f → %.4f, %.4f]", b.South, b.West, b.North, b.East)
}

func renderBox(title, body string) string {
	if !colorEnabled {
		return title + "\n" + body
	}
	return boxStyle.Render(successStyle.Render(title) + "\n\n" + body)
}
