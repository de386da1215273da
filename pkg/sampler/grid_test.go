package sampler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/trip-spots/pkg/models"
)

var unitBounds = models.Bounds{South: 0, West: 0, North: 4, East: 4}

func spotAt(id int, lat, lng float64) models.Spot {
	return models.Spot{ID: fmt.Sprintf("s%d", id), Name: fmt.Sprintf("spot %d", id), Lat: lat, Lng: lng}
}

func ids(spots []models.Spot) []string {
	out := make([]string, len(spots))
	for i, s := range spots {
		out[i] = s.ID
	}
	return out
}

// uniform places n spots round-robin over the 16 cells of unitBounds.
func uniform(n int) []models.Spot {
	spots := make([]models.Spot, n)
	for i := 0; i < n; i++ {
		cell := i % 16
		row, col := cell/4, cell%4
		spots[i] = spotAt(i, float64(row)+0.5, float64(col)+0.5)
	}
	return spots
}

func TestSampleUnderCapIsIdentity(t *testing.T) {
	spots := uniform(10)
	out := Sample(spots, unitBounds, 10)
	assert.Equal(t, ids(spots), ids(out))

	out = Sample(spots, unitBounds, 50)
	assert.Equal(t, ids(spots), ids(out))
}

func TestSampleLength(t *testing.T) {
	testCases := []struct {
		n, max int
	}{
		{40, 16},
		{40, 20},
		{100, 50},
		{17, 16},
		{40, 5},
		{40, 1},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d_to_%d", tc.n, tc.max), func(t *testing.T) {
			out := Sample(uniform(tc.n), unitBounds, tc.max)
			assert.Len(t, out, tc.max)
		})
	}
}

func TestSampleUniformOnePerCell(t *testing.T) {
	out := Sample(uniform(40), unitBounds, 16)
	require.Len(t, out, 16)

	seen := make(map[[2]int]bool)
	for _, s := range out {
		seen[[2]int{int(s.Lat), int(s.Lng)}] = true
	}
	assert.Len(t, seen, 16, "every cell contributes exactly one spot")
}

func TestSampleSingleCluster(t *testing.T) {
	spots := make([]models.Spot, 40)
	for i := range spots {
		spots[i] = spotAt(i, 0.1+float64(i)*0.001, 0.1)
	}

	out := Sample(spots, unitBounds, 16)
	require.Len(t, out, 16)
	assert.Equal(t, ids(spots[:16]), ids(out), "first spot from the cell, then the next 15 in input order")
}

func TestSampleTopUpFollowsInputOrder(t *testing.T) {
	// Cell (0,0) holds spots 0 and 2, cell (3,3) holds spot 1 and 3.
	spots := []models.Spot{
		spotAt(0, 0.1, 0.1),
		spotAt(1, 3.9, 3.9),
		spotAt(2, 0.2, 0.2),
		spotAt(3, 3.8, 3.8),
		spotAt(4, 0.3, 0.3),
	}

	out := Sample(spots, unitBounds, 3)
	assert.Equal(t, []string{"s0", "s1", "s2"}, ids(out))
}

func TestSampleDeterministic(t *testing.T) {
	spots := uniform(100)
	first := Sample(spots, unitBounds, 30)
	for i := 0; i < 5; i++ {
		assert.Equal(t, ids(first), ids(Sample(spots, unitBounds, 30)))
	}
}

func TestSampleNoDuplicates(t *testing.T) {
	out := Sample(uniform(100), unitBounds, 50)
	seen := make(map[string]bool)
	for _, s := range out {
		assert.False(t, seen[s.ID], "duplicate %s", s.ID)
		seen[s.ID] = true
	}
}

func TestSampleOutOfBoundsClamped(t *testing.T) {
	spots := []models.Spot{
		spotAt(0, -10, -10),
		spotAt(1, 10, 10),
		spotAt(2, 2, 2),
	}
	out := Sample(spots, unitBounds, 2)
	assert.Len(t, out, 2)
}

func TestSampleDegenerateBounds(t *testing.T) {
	testCases := []struct {
		name   string
		bounds models.Bounds
	}{
		{"zero height", models.Bounds{South: 1, West: 0, North: 1, East: 4}},
		{"zero width", models.Bounds{South: 0, West: 2, North: 4, East: 2}},
		{"point", models.Bounds{South: 1, West: 1, North: 1, East: 1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			spots := uniform(40)
			out := Sample(spots, tc.bounds, 10)
			assert.Len(t, out, 10)
		})
	}
}

func TestSampleNonPositiveMax(t *testing.T) {
	out := Sample(uniform(5), unitBounds, 0)
	assert.Empty(t, out)

	out = Sample(uniform(5), unitBounds, -1)
	assert.Empty(t, out)
}

func TestCellIndex(t *testing.T) {
	testCases := []struct {
		name     string
		v        float64
		expected int
	}{
		{"origin", 0, 0},
		{"inside first", 0.99, 0},
		{"second", 1, 1},
		{"upper edge clamps", 4, 3},
		{"above clamps", 9, 3},
		{"below clamps", -1, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, cellIndex(tc.v, 0, 1))
		})
	}
	assert.Equal(t, 0, cellIndex(5, 0, 0))
}
