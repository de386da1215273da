package main

import (
	"github.com/1F47E/trip-spots/pkg/boundary"
	"github.com/1F47E/trip-spots/pkg/cache"
	"github.com/1F47E/trip-spots/pkg/config"
	"github.com/1F47E/trip-spots/pkg/nominatim"
	"github.com/1F47E/trip-spots/pkg/overpass"
	"github.com/1F47E/trip-spots/pkg/spots"
)

// app holds the wired services shared by all subcommands.
type app struct {
	cfg      *config.Config
	service  *spots.Service
	resolver *boundary.Resolver
}

func newApp(cfg *config.Config) *app {
	poi := overpass.NewClient(cfg.Overpass.URL, cfg.Overpass.UserAgent, nil, cfg.OverpassTimeout())
	geocoder := nominatim.NewClient(cfg.Nominatim.URL, cfg.Nominatim.UserAgent, nil, cfg.NominatimInterval())

	service := spots.NewService(
		cache.New(cfg.CacheTTL()),
		poi,
		spots.WithReverser(geocoder),
		spots.WithQueryBuilder(overpass.NewQueryBuilder(cfg.Overpass.TimeoutSeconds)),
		spots.WithGrid(cache.NewGrid(cfg.Cache.GridDegrees)),
		spots.WithMaxSpots(cfg.Sampler.MaxSpots),
	)

	return &app{
		cfg:      cfg,
		service:  service,
		resolver: boundary.NewResolver(geocoder, cfg.Nominatim.Country),
	}
}
