// Package config loads YAML configuration with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultFile is read first; ExampleFile is the fallback.
	DefaultFile = "config.yaml"
	ExampleFile = "config.yaml.example"

	defaultUserAgent = "trip-spots/1.0"
)

// Environment variable keys
const (
	EnvOverpassURL  = "SPOTS_OVERPASS_URL"
	EnvNominatimURL = "SPOTS_NOMINATIM_URL"
	EnvCountry      = "SPOTS_COUNTRY"
	EnvCacheTTL     = "SPOTS_CACHE_TTL"
	EnvMaxSpots     = "SPOTS_MAX_SPOTS"
	EnvUserAgent    = "SPOTS_USER_AGENT"
)

// Config structure for YAML configuration
type Config struct {
	Overpass struct {
		URL            string `yaml:"url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		UserAgent      string `yaml:"user_agent"`
	} `yaml:"overpass"`
	Nominatim struct {
		URL           string `yaml:"url"`
		Country       string `yaml:"country"`
		UserAgent     string `yaml:"user_agent"`
		MinIntervalMs int    `yaml:"min_interval_ms"`
	} `yaml:"nominatim"`
	Cache struct {
		TTL         string  `yaml:"ttl"`
		GridDegrees float64 `yaml:"grid_degrees"`
	} `yaml:"cache"`
	Sampler struct {
		MaxSpots int `yaml:"max_spots"`
	} `yaml:"sampler"`
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{}
	cfg.Overpass.URL = "https://overpass-api.de/api/interpreter"
	cfg.Overpass.TimeoutSeconds = 25
	cfg.Overpass.UserAgent = defaultUserAgent
	cfg.Nominatim.URL = "https://nominatim.openstreetmap.org"
	cfg.Nominatim.Country = "Japan"
	cfg.Nominatim.UserAgent = defaultUserAgent
	cfg.Nominatim.MinIntervalMs = 1000
	cfg.Cache.TTL = "10m"
	cfg.Cache.GridDegrees = 0.02
	cfg.Sampler.MaxSpots = 50
	return cfg
}

// Load reads path (or config.yaml, then config.yaml.example when path is
// empty), applies environment overrides and fills unset fields with defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	candidates := []string{DefaultFile, ExampleFile}
	if path != "" {
		candidates = []string{path}
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == "" {
				continue
			}
			return nil, fmt.Errorf("failed to read config %s: %w", candidate, err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", candidate, err)
		}
		break
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

// Parse decodes YAML on top of cfg
func Parse(data []byte, cfg *Config) error {
	return yaml.Unmarshal(data, cfg)
}

// CacheTTL returns the parsed cache TTL, falling back to ten minutes
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// OverpassTimeout is the HTTP timeout for interpreter calls, a little longer
// than the timeout hint embedded in each query.
func (c *Config) OverpassTimeout() time.Duration {
	return time.Duration(c.Overpass.TimeoutSeconds+10) * time.Second
}

// NominatimInterval is the minimum spacing between geocoding requests
func (c *Config) NominatimInterval() time.Duration {
	return time.Duration(c.Nominatim.MinIntervalMs) * time.Millisecond
}

// applyEnv overrides fields from the environment; invalid values are ignored.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvOverpassURL)); v != "" {
		c.Overpass.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvNominatimURL)); v != "" {
		c.Nominatim.URL = v
	}
	if v, ok := os.LookupEnv(EnvCountry); ok {
		c.Nominatim.Country = strings.TrimSpace(v)
	}
	if v := os.Getenv(EnvCacheTTL); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Cache.TTL = v
		}
	}
	if v := os.Getenv(EnvMaxSpots); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sampler.MaxSpots = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvUserAgent)); v != "" {
		c.Overpass.UserAgent = v
		c.Nominatim.UserAgent = v
	}
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Overpass.URL == "" {
		c.Overpass.URL = def.Overpass.URL
	}
	if c.Overpass.TimeoutSeconds <= 0 {
		c.Overpass.TimeoutSeconds = def.Overpass.TimeoutSeconds
	}
	if c.Overpass.UserAgent == "" {
		c.Overpass.UserAgent = def.Overpass.UserAgent
	}
	if c.Nominatim.URL == "" {
		c.Nominatim.URL = def.Nominatim.URL
	}
	if c.Nominatim.UserAgent == "" {
		c.Nominatim.UserAgent = def.Nominatim.UserAgent
	}
	if c.Nominatim.MinIntervalMs < 0 {
		c.Nominatim.MinIntervalMs = 0
	}
	if c.Cache.GridDegrees <= 0 {
		c.Cache.GridDegrees = def.Cache.GridDegrees
	}
	if c.Sampler.MaxSpots <= 0 {
		c.Sampler.MaxSpots = def.Sampler.MaxSpots
	}
}
