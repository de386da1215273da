package main

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/1F47E/trip-spots/pkg/logger"
	"github.com/1F47E/trip-spots/pkg/models"
	"github.com/1F47E/trip-spots/pkg/sampler"
	"github.com/1F47E/trip-spots/pkg/spatial"
)

var (
	numSpots           int
	numQueries         int
	numWorkers         int
	viewKm             float64
	benchRadius        float64
	benchMax           int
	benchLat, benchLng float64
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark viewport filtering and sampling on synthetic spots",
	Long: `Generate random spots around --lat/--lng, index them and run concurrent
viewport queries through the spatial filter and the grid sampler. No network calls.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVarP(&numSpots, "spots", "p", 100000, "Number of spots to generate")
	benchCmd.Flags().IntVarP(&numQueries, "queries", "q", 1000, "Number of viewport queries to run")
	benchCmd.Flags().IntVarP(&numWorkers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	benchCmd.Flags().Float64Var(&viewKm, "view", 2, "Viewport size in km")
	benchCmd.Flags().Float64VarP(&benchRadius, "radius", "r", 0, "Run radius queries of this many km instead of viewport queries")
	benchCmd.Flags().IntVarP(&benchMax, "max", "m", 50, "Sampling cap per viewport")
	benchCmd.Flags().Float64Var(&benchLat, "lat", 35.6812, "Centre latitude")
	benchCmd.Flags().Float64Var(&benchLng, "lng", 139.7671, "Centre longitude")
}

type benchResult struct {
	queries  int64
	results  int64
	sampled  int64
	indexed  int64
	elapsed  time.Duration
	buildDur time.Duration
}

func runBench(cmd *cobra.Command, args []string) error {
	if numSpots <= 0 || numQueries <= 0 {
		return fmt.Errorf("spots and queries must be positive")
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	center := models.Location{Lat: benchLat, Lng: benchLng}
	area := spatial.RadiusBounds(center, 10)

	printTitle("Viewport Benchmark")
	printInfo(fmt.Sprintf("Indexing %s spots, %s queries on %d workers", humanize.Comma(int64(numSpots)), humanize.Comma(int64(numQueries)), numWorkers))

	found := randomSpots(numSpots, area)
	start := time.Now()
	index := spatial.Build(found)
	res := benchResult{buildDur: time.Since(start), indexed: index.Count()}

	centers := make([]models.Location, numQueries)
	viewports := make([]models.Bounds, numQueries)
	for i := range viewports {
		centers[i] = models.Location{
			Lat: area.South + rand.Float64()*(area.North-area.South),
			Lng: area.West + rand.Float64()*(area.East-area.West),
		}
		viewports[i] = spatial.RadiusBounds(centers[i], viewKm/2)
		if benchRadius > 0 {
			viewports[i] = spatial.RadiusBounds(centers[i], benchRadius)
		}
	}

	var totalResults, totalSampled, queryCount atomic.Int64
	start = time.Now()

	var wg sync.WaitGroup
	perWorker := numQueries / numWorkers
	for w := 0; w < numWorkers; w++ {
		from := w * perWorker
		to := from + perWorker
		if w == numWorkers-1 {
			to = numQueries
		}

		wg.Add(1)
		go func(workerID, from, to int) {
			defer wg.Done()
			for i := from; i < to; i++ {
				var visible []models.Spot
				var err error
				if benchRadius > 0 {
					visible, err = index.QueryRadius(centers[i], benchRadius)
				} else {
					visible, err = index.QueryBox(viewports[i])
				}
				if err != nil {
					logger.Error("worker %d: query failed: %v", workerID, err)
					continue
				}
				sampled := sampler.Sample(visible, viewports[i], benchMax)
				totalResults.Add(int64(len(visible)))
				totalSampled.Add(int64(len(sampled)))
				queryCount.Add(1)
				logger.Debug("worker %d: query %d found %d, kept %d", workerID, i, len(visible), len(sampled))
			}
		}(w, from, to)
	}
	wg.Wait()

	res.elapsed = time.Since(start)
	res.queries = queryCount.Load()
	res.results = totalResults.Load()
	res.sampled = totalSampled.Load()
	printBench(res)
	return nil
}

func printBench(res benchResult) {
	printSubtitle("Results")
	printStat("Indexed spots", humanize.Comma(res.indexed))
	printStat("Index build time", res.buildDur)
	printStat("Total queries", humanize.Comma(res.queries))
	printStat("Total time", res.elapsed)
	if res.queries == 0 {
		return
	}
	printStat("Queries per second", queriesPerSecond(res))
	printStat("Average query time", res.elapsed/time.Duration(res.queries))
	printStat("Average spots in view", fmt.Sprintf("%.1f", float64(res.results)/float64(res.queries)))
	printStat("Average spots after sampling", fmt.Sprintf("%.1f", float64(res.sampled)/float64(res.queries)))
}

// queriesPerSecond guards against a zero elapsed time on tiny runs.
func queriesPerSecond(res benchResult) string {
	if res.elapsed <= 0 {
		return "n/a"
	}
	return humanize.Comma(int64(float64(res.queries) / res.elapsed.Seconds()))
}

// randomSpots scatters n synthetic spots over b.
func randomSpots(n int, b models.Bounds) []models.Spot {
	out := make([]models.Spot, n)
	for i := range out {
		out[i] = models.Spot{
			ID:      fmt.Sprintf("bench-%d", i),
			Name:    fmt.Sprintf("Spot %d", i),
			Lat:     b.South + rand.Float64()*(b.North-b.South),
			Lng:     b.West + rand.Float64()*(b.East-b.West),
			Type:    "restaurant",
			Subtype: "general",
		}
	}
	return out
}
