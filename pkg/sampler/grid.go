// Package sampler downsamples spot sets so that dense clusters do not crowd
// out sparse areas of the same region.
package sampler

import (
	"math"

	"github.com/1F47E/trip-spots/pkg/models"
)

const (
	// GridSize is the number of rows and columns the region is split into.
	GridSize  = 4
	cellCount = GridSize * GridSize
)

// Sample returns at most max spots spread over a 4x4 grid laid on bounds.
// Input at or below the cap is returned as is. The result depends only on
// the input order.
func Sample(spots []models.Spot, bounds models.Bounds, max int) []models.Spot {
	if len(spots) <= max {
		return spots
	}
	if max <= 0 {
		return []models.Spot{}
	}

	latStep := (bounds.North - bounds.South) / GridSize
	lngStep := (bounds.East - bounds.West) / GridSize

	cells := make([][]int, cellCount)
	for i, s := range spots {
		row := cellIndex(s.Lat, bounds.South, latStep)
		col := cellIndex(s.Lng, bounds.West, lngStep)
		idx := row*GridSize + col
		cells[idx] = append(cells[idx], i)
	}

	quota := max / cellCount
	if quota < 1 {
		quota = 1
	}

	selected := make([]bool, len(spots))
	result := make([]models.Spot, 0, max)
	for _, cell := range cells {
		for n, i := range cell {
			if n >= quota {
				break
			}
			selected[i] = true
			result = append(result, spots[i])
		}
	}

	// Top up from whatever was not picked, in input order.
	for i := 0; i < len(spots) && len(result) < max; i++ {
		if !selected[i] {
			result = append(result, spots[i])
		}
	}

	if len(result) > max {
		result = result[:max]
	}
	return result
}

// cellIndex maps v onto [0, GridSize). A degenerate axis (step 0 or not finite)
// collapses to a single cell.
func cellIndex(v, origin, step float64) int {
	if step == 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return 0
	}
	f := math.Floor((v - origin) / step)
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > GridSize-1 {
		return GridSize - 1
	}
	return int(f)
}
