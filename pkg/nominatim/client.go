// Package nominatim queries a Nominatim geocoding service for place polygons,
// place centroids and reverse-geocoded addresses.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/muesli/gominatim"

	"github.com/1F47E/trip-spots/pkg/logger"
)

// DefaultURL is the public Nominatim endpoint.
const DefaultURL = "https://nominatim.openstreetmap.org"

var (
	// ErrUnexpectedStatus is returned for any non-2xx response.
	ErrUnexpectedStatus = errors.New("nominatim: unexpected status")
	// ErrNoResults is returned when a lookup matched nothing usable.
	ErrNoResults = errors.New("nominatim: no results")
)

// Place is the part of a search result this package uses.
type Place struct {
	DisplayName string          `json:"display_name"`
	Lat         string          `json:"lat"`
	Lon         string          `json:"lon"`
	GeoJSON     json.RawMessage `json:"geojson,omitempty"`
}

// Point parses the string coordinates Nominatim returns.
func (p Place) Point() (lat, lng float64, err error) {
	lat, err = strconv.ParseFloat(strings.TrimSpace(p.Lat), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse lat %q: %w", p.Lat, err)
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(p.Lon), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse lon %q: %w", p.Lon, err)
	}
	return lat, lng, nil
}

// Client talks to one Nominatim server, spacing requests by minInterval.
type Client struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	minInterval time.Duration

	throttleMu sync.Mutex
	last       time.Time
}

// NewClient creates a client bound to baseURL. Every request goes through
// httpClient and carries userAgent.
func NewClient(baseURL, userAgent string, httpClient *http.Client, minInterval time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:     baseURL,
		userAgent:   userAgent,
		httpClient:  httpClient,
		minInterval: minInterval,
	}
}

// SearchPolygon runs a forward search asking for polygon GeoJSON and returns
// the first candidate.
func (c *Client) SearchPolygon(ctx context.Context, q string) (*Place, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("polygon_geojson", "1")
	params.Set("limit", "1")

	var places []Place
	if err := c.getJSON(ctx, "/search", params, &places); err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, ErrNoResults
	}
	return &places[0], nil
}

// SearchPoint runs a plain forward search and returns the first candidate's
// coordinates.
func (c *Client) SearchPoint(ctx context.Context, q string) (lat, lng float64, err error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("limit", "1")

	var res []gominatim.SearchResult
	if err := c.getJSON(ctx, "/search", params, &res); err != nil {
		return 0, 0, fmt.Errorf("failed to search %q: %w", q, err)
	}
	if len(res) == 0 {
		return 0, 0, ErrNoResults
	}
	return Place{Lat: res[0].Lat, Lon: res[0].Lon}.Point()
}

// Reverse returns the display name for a coordinate.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("format", "json")

	var place gominatim.ReverseResult
	if err := c.getJSON(ctx, "/reverse", params, &place); err != nil {
		return "", err
	}
	if strings.TrimSpace(place.DisplayName) == "" {
		return "", ErrNoResults
	}
	return place.DisplayName, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	logger.Debug("nominatim: GET %s", endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to query nominatim: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	return nil
}

// wait enforces the minimum spacing between requests.
func (c *Client) wait(ctx context.Context) error {
	if c.minInterval <= 0 {
		return nil
	}

	c.throttleMu.Lock()
	defer c.throttleMu.Unlock()

	if delta := time.Since(c.last); delta < c.minInterval {
		timer := time.NewTimer(c.minInterval - delta)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.last = time.Now()
	return nil
}
