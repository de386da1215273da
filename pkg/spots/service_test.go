package spots

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/trip-spots/pkg/cache"
	"github.com/1F47E/trip-spots/pkg/models"
	"github.com/1F47E/trip-spots/pkg/overpass"
)

type fakeFetcher struct {
	mu       sync.Mutex
	calls    atomic.Int32
	queries  []string
	elements []overpass.Element
	err      error

	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *fakeFetcher) Fetch(ctx context.Context, query string) ([]overpass.Element, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.queries = append(f.queries, query)
	err := f.err
	f.mu.Unlock()

	if f.started != nil {
		f.once.Do(func() { close(f.started) })
		<-f.release
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return f.elements, nil
}

func (f *fakeFetcher) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

type fakeReverser struct {
	address string
	err     error
	calls   int
}

func (f *fakeReverser) Reverse(_ context.Context, _, _ float64) (string, error) {
	f.calls++
	return f.address, f.err
}

func element(id int64, lat, lng float64) overpass.Element {
	return overpass.Element{
		Type: "node",
		ID:   id,
		Lat:  &lat,
		Lon:  &lng,
		Tags: map[string]string{"name": fmt.Sprintf("spot %d", id), "amenity": "restaurant"},
	}
}

// grid returns n elements spread over the box 35.66-35.70, 139.74-139.78.
func grid(n int) []overpass.Element {
	out := make([]overpass.Element, n)
	for i := 0; i < n; i++ {
		lat := 35.66 + float64(i%10)*0.004
		lng := 139.74 + float64(i/10%10)*0.004
		out[i] = element(int64(i+1), lat, lng)
	}
	return out
}

func newService(f *fakeFetcher, opts ...Option) *Service {
	return NewService(cache.New(10*time.Minute), f, opts...)
}

func TestSpotsNearServedFromCache(t *testing.T) {
	f := &fakeFetcher{elements: grid(5)}
	s := newService(f)
	ctx := context.Background()

	first := s.SpotsNear(ctx, 35.68, 139.76, 2, []string{"restaurant"})
	second := s.SpotsNear(ctx, 35.68, 139.76, 2, []string{"restaurant"})

	assert.Len(t, first, 5)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Contains(t, f.lastQuery(), "(around:2000,35.68,139.76)")
	assert.Contains(t, f.lastQuery(), `"^(restaurant)$"`)
}

func TestSpotsNearNearbyCentreSharesEntry(t *testing.T) {
	f := &fakeFetcher{elements: grid(3)}
	s := newService(f)

	s.SpotsNear(context.Background(), 35.6801, 139.7601, 2, []string{"cafe", "bar"})
	s.SpotsNear(context.Background(), 35.6803, 139.7599, 2, []string{"bar", "cafe"})

	assert.Equal(t, int32(1), f.calls.Load())
}

func TestSpotsNearDefaultCategories(t *testing.T) {
	f := &fakeFetcher{}
	s := newService(f)

	s.SpotsNear(context.Background(), 35.68, 139.76, 1, nil)
	assert.Contains(t, f.lastQuery(), `"^(restaurant|cafe|fast_food|bar|pub)$"`)
}

func TestSpotsNearSamples(t *testing.T) {
	f := &fakeFetcher{elements: grid(120)}

	spots := newService(f).SpotsNear(context.Background(), 35.68, 139.76, 2, nil)
	assert.Len(t, spots, DefaultMaxSpots)

	f2 := &fakeFetcher{elements: grid(120)}
	spots = newService(f2, WithMaxSpots(10)).SpotsNear(context.Background(), 35.68, 139.76, 2, nil)
	assert.Len(t, spots, 10)
}

func TestFailureIsNotCached(t *testing.T) {
	f := &fakeFetcher{err: errors.New("upstream down")}
	s := newService(f)
	ctx := context.Background()

	spots := s.SpotsNear(ctx, 35.68, 139.76, 2, []string{"restaurant"})
	assert.NotNil(t, spots)
	assert.Empty(t, spots)
	assert.Equal(t, 0, s.Cache().Stats().Entries)

	f.mu.Lock()
	f.err = nil
	f.elements = grid(2)
	f.mu.Unlock()

	spots = s.SpotsNear(ctx, 35.68, 139.76, 2, []string{"restaurant"})
	assert.Len(t, spots, 2)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestEmptyResultIsCached(t *testing.T) {
	f := &fakeFetcher{}
	s := newService(f)

	assert.Empty(t, s.SpotsNear(context.Background(), 1, 1, 1, nil))
	assert.Empty(t, s.SpotsNear(context.Background(), 1, 1, 1, nil))
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestExpiredEntryRefetched(t *testing.T) {
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	c := cache.New(10*time.Minute, cache.WithClock(func() time.Time { return now }))
	f := &fakeFetcher{elements: grid(2)}
	s := NewService(c, f)

	s.SpotsNear(context.Background(), 35.68, 139.76, 2, nil)
	now = now.Add(10 * time.Minute)
	s.SpotsNear(context.Background(), 35.68, 139.76, 2, nil)

	assert.Equal(t, int32(2), f.calls.Load())
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	f := &fakeFetcher{
		elements: grid(4),
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	s := newService(f)

	var wg sync.WaitGroup
	results := make([][]models.Spot, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.SpotsNear(context.Background(), 35.68, 139.76, 2, []string{"restaurant"})
		}(i)
	}

	<-f.started
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	for _, r := range results {
		assert.Len(t, r, 4)
	}
}

func TestCancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	f := &fakeFetcher{
		elements: grid(4),
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	s := newService(f)
	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	resA := make(chan []models.Spot, 1)
	go func() {
		resA <- s.SpotsNear(ctxA, 35.68, 139.76, 2, []string{"restaurant"})
	}()
	<-f.started

	resB := make(chan []models.Spot, 1)
	go func() {
		resB <- s.SpotsNear(context.Background(), 35.68, 139.76, 2, []string{"restaurant"})
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case spots := <-resA:
		assert.Empty(t, spots, "a cancelled caller stops waiting")
	case <-time.After(time.Second):
		t.Fatal("cancelled caller still waiting on the shared fetch")
	}

	close(f.release)
	assert.Len(t, <-resB, 4)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, 1, s.Cache().Stats().Entries, "the detached fetch still fills the cache")
}

func TestLookupViewReportsHit(t *testing.T) {
	f := &fakeFetcher{elements: grid(100)}
	s := newService(f)
	viewport := models.Bounds{South: 35.66, West: 139.74, North: 35.6719, East: 139.7519}

	first := s.LookupView(context.Background(), viewport, nil, 5)
	assert.False(t, first.Hit)
	assert.Len(t, first.Spots, 5)

	second := s.LookupView(context.Background(), viewport, nil, 5)
	assert.True(t, second.Hit)
	assert.Equal(t, first.Spots, second.Spots)
}

func TestKeysMatchStoredEntries(t *testing.T) {
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	c := cache.New(10*time.Minute, cache.WithClock(func() time.Time { return now }))
	s := NewService(c, &fakeFetcher{elements: grid(3)})
	ctx := context.Background()
	b := models.Bounds{South: 35.661, West: 139.741, North: 35.679, East: 139.759}

	s.SpotsNear(ctx, 35.68, 139.76, 2, []string{"bar", "cafe"})
	s.SpotsInBounds(ctx, b, nil)
	now = now.Add(90 * time.Second)

	age, ok := c.Age(s.NearKey(35.68, 139.76, 2, []string{"cafe", " ", "bar"}))
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, age)

	age, ok = c.Age(s.BoundsKey(b, []string{}))
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, age)
}

func TestSpotsInBoundsNotSampled(t *testing.T) {
	f := &fakeFetcher{elements: grid(100)}
	s := newService(f, WithMaxSpots(10))

	spots := s.SpotsInBounds(context.Background(), models.Bounds{South: 35.661, West: 139.741, North: 35.679, East: 139.759}, nil)
	assert.Len(t, spots, 100)
	assert.Contains(t, f.lastQuery(), "(35.64,139.72,35.7,139.78)")
}

func TestSpotsInBoundsSmallPanHitsCache(t *testing.T) {
	f := &fakeFetcher{elements: grid(3)}
	s := newService(f)
	ctx := context.Background()

	s.SpotsInBounds(ctx, models.Bounds{South: 35.661, West: 139.741, North: 35.679, East: 139.759}, []string{"cafe"})
	s.SpotsInBounds(ctx, models.Bounds{South: 35.665, West: 139.745, North: 35.675, East: 139.755}, []string{"cafe"})

	assert.Equal(t, int32(1), f.calls.Load())
}

func TestSpotsInView(t *testing.T) {
	f := &fakeFetcher{elements: grid(100)}
	s := newService(f)
	viewport := models.Bounds{South: 35.66, West: 139.74, North: 35.6719, East: 139.7519}

	spots := s.SpotsInView(context.Background(), viewport, nil, 5)
	require.Len(t, spots, 5)
	for _, spot := range spots {
		assert.True(t, viewport.Contains(spot.Location()), "%s outside viewport", spot.ID)
	}

	all := s.SpotsInView(context.Background(), viewport, nil, 100)
	assert.Len(t, all, 9, "3x3 grid points fall inside the viewport")
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestEnrichAddress(t *testing.T) {
	r := &fakeReverser{address: "1-1 Marunouchi"}
	s := newService(&fakeFetcher{}, WithReverser(r))

	spot := models.Spot{ID: "node-1", Name: "A", Lat: 35.68, Lng: 139.76}
	enriched := s.EnrichAddress(context.Background(), spot)

	assert.Equal(t, "1-1 Marunouchi", enriched.Address)
	assert.Empty(t, spot.Address, "the input is not modified")
	assert.Equal(t, spot.ID, enriched.ID)
}

func TestEnrichAddressSkips(t *testing.T) {
	testCases := []struct {
		name     string
		reverser *fakeReverser
		spot     models.Spot
		calls    int
	}{
		{"already has address", &fakeReverser{address: "other"}, models.Spot{ID: "a", Address: "kept"}, 0},
		{"lookup fails", &fakeReverser{err: errors.New("boom")}, models.Spot{ID: "b"}, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newService(&fakeFetcher{}, WithReverser(tc.reverser))
			got := s.EnrichAddress(context.Background(), tc.spot)
			assert.Equal(t, tc.spot, got)
			assert.Equal(t, tc.calls, tc.reverser.calls)
		})
	}

	s := newService(&fakeFetcher{})
	spot := models.Spot{ID: "c"}
	assert.Equal(t, spot, s.EnrichAddress(context.Background(), spot))
}

func TestResolveCategories(t *testing.T) {
	assert.Equal(t, []string{"cafe"}, resolveCategories([]string{" cafe ", ""}))
	assert.Equal(t, overpass.DefaultCategories, resolveCategories(nil))
}
