package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/1F47E/trip-spots/pkg/logger"
)

// DefaultURL is the public Overpass interpreter endpoint.
const DefaultURL = "https://overpass-api.de/api/interpreter"

// ErrUnexpectedStatus is returned for any non-2xx interpreter response.
var ErrUnexpectedStatus = errors.New("overpass: unexpected status")

// Center is the centroid Overpass reports for ways with `out center`.
type Center struct {
	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`
}

// Element is one raw result element. Coordinates are pointers so that a
// missing field can be told apart from a zero coordinate.
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat,omitempty"`
	Lon    *float64          `json:"lon,omitempty"`
	Center *Center           `json:"center,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Coordinates prefers direct lat/lon and falls back to the centroid.
// Both fields of a pair must be present.
func (e Element) Coordinates() (lat, lon float64, ok bool) {
	if e.Lat != nil && e.Lon != nil {
		return *e.Lat, *e.Lon, true
	}
	if e.Center != nil && e.Center.Lat != nil && e.Center.Lon != nil {
		return *e.Center.Lat, *e.Center.Lon, true
	}
	return 0, 0, false
}

type response struct {
	Elements json.RawMessage `json:"elements"`
}

// Client posts Overpass QL documents to an interpreter.
type Client struct {
	url        string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a client. A nil httpClient gets one with the given timeout.
func NewClient(url, userAgent string, httpClient *http.Client, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{url: url, userAgent: userAgent, httpClient: httpClient}
}

// Fetch sends the query as a plain-text body and returns the raw elements.
// A response without an elements array yields no elements and no error.
func (c *Client) Fetch(ctx context.Context, query string) ([]Element, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("failed to build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query overpass: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode overpass response: %w", err)
	}

	elements := decodeElements(payload.Elements)
	logger.Debug("overpass: %d elements in %v", len(elements), time.Since(start))
	return elements, nil
}

// decodeElements tolerates a missing or non-array field and drops elements
// that do not decode on their own.
func decodeElements(raw json.RawMessage) []Element {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		logger.Debug("overpass: elements is not an array, treating as empty")
		return nil
	}

	elements := make([]Element, 0, len(items))
	for _, item := range items {
		var el Element
		if err := json.Unmarshal(item, &el); err != nil {
			logger.Debug("overpass: skipping malformed element: %v", err)
			continue
		}
		elements = append(elements, el)
	}
	return elements
}
