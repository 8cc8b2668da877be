// Package bootstrap builds the planner and its collaborators from
// configuration. Optional backends that cannot be reached are logged and left
// nil so each binary decides what it requires.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/saferoute/internal/adapters/googlemaps"
	natsadapter "github.com/samirrijal/saferoute/internal/adapters/nats"
	"github.com/samirrijal/saferoute/internal/adapters/nominatim"
	"github.com/samirrijal/saferoute/internal/adapters/osrm"
	"github.com/samirrijal/saferoute/internal/adapters/postgres"
	"github.com/samirrijal/saferoute/internal/adapters/riskapi"
	"github.com/samirrijal/saferoute/internal/adapters/upstream"
	"github.com/samirrijal/saferoute/internal/adapters/valkey"
	"github.com/samirrijal/saferoute/internal/core/ports"
	"github.com/samirrijal/saferoute/internal/core/usecases"
	"github.com/samirrijal/saferoute/internal/pkg/config"
)

// Providers are the external collaborators of the planner.
type Providers struct {
	Geocoder  ports.Geocoder
	Router    ports.RouteProvider
	Districts ports.DistrictResolver
}

// Components is everything a binary may need. Fields other than Planner,
// Risk and Providers are nil when the backend is not configured or down.
type Components struct {
	Providers
	Planner *usecases.Planner
	Risk    *usecases.RiskService
	Catalog *usecases.RiskCatalogService
	RiskAPI *riskapi.Client
	DB      *postgres.DB
	Cache   *valkey.Cache
	Events  *natsadapter.Publisher
}

// Options toggles optional backends.
type Options struct {
	Events bool // connect the NATS publisher
}

// NewProviders selects geocoder, router and district resolver.
func NewProviders(cfg *config.Config) (Providers, error) {
	p := cfg.Providers
	common := []upstream.Option{
		upstream.WithTimeout(time.Duration(p.RequestTimeout) * time.Second),
		upstream.WithUserAgent(p.UserAgent),
	}

	var google *googlemaps.Client
	if p.Geocoder == "google" || p.Router == "google" {
		var err error
		google, err = googlemaps.New(p.GoogleMapsAPIKey, "", nil)
		if err != nil {
			return Providers{}, err
		}
	}

	var out Providers
	switch p.Geocoder {
	case "nominatim":
		nom := nominatim.New(p.NominatimURL, append(common, upstream.WithRateLimit(p.NominatimRPS))...)
		out.Geocoder, out.Districts = nom, nom
	case "google":
		out.Geocoder, out.Districts = google, google
	default:
		return Providers{}, fmt.Errorf("unknown geocoder %q", p.Geocoder)
	}

	switch p.Router {
	case "osrm":
		out.Router = osrm.New(p.OSRMURL, common...)
	case "google":
		out.Router = google
	default:
		return Providers{}, fmt.Errorf("unknown router %q", p.Router)
	}
	return out, nil
}

// PlannerConfig converts the planner section of cfg.
func PlannerConfig(cfg *config.Config) usecases.PlannerConfig {
	return usecases.PlannerConfig{
		Stride:          cfg.Planner.Stride,
		Workers:         cfg.Planner.Workers,
		Timeout:         cfg.Planner.TimeoutDuration(),
		CallTimeout:     cfg.Planner.CallTimeoutDuration(),
		KeepDestination: cfg.Planner.KeepDestination,
	}
}

// Build wires the planner. The database is required only for the postgres
// risk backend.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Components, error) {
	providers, err := NewProviders(cfg)
	if err != nil {
		return nil, err
	}
	c := &Components{Providers: providers}

	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	db, err := postgres.New(dbCtx, cfg.Database.DSN())
	cancel()
	switch {
	case err == nil:
		c.DB = db
		c.Catalog = usecases.NewRiskCatalogService(postgres.NewRiskRepo(db))
	case cfg.Providers.Risk == "postgres":
		return nil, fmt.Errorf("database: %w", err)
	default:
		slog.Warn("database unavailable, risk catalog disabled", "error", err)
	}

	var classifier ports.RiskClassifier
	if cfg.Providers.Risk == "postgres" {
		classifier = postgres.NewRiskRepo(c.DB)
	} else {
		c.RiskAPI = riskapi.New(cfg.Providers.RiskServiceURL,
			upstream.WithTimeout(time.Duration(cfg.Providers.RequestTimeout)*time.Second),
			upstream.WithUserAgent(cfg.Providers.UserAgent),
		)
		classifier = c.RiskAPI
	}

	var cache ports.CacheService
	if cfg.Risk.CacheTTL > 0 {
		vc, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable, risk cache disabled", "error", err)
		} else {
			c.Cache = vc
			cache = vc
		}
	}
	c.Risk = usecases.NewRiskService(classifier, cache, cfg.Risk.CacheTTL)

	var events ports.EventPublisher
	if opts.Events {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, plan events disabled", "error", err)
		} else {
			c.Events = pub
			events = pub
		}
	}

	c.Planner = usecases.NewPlanner(c.Geocoder, c.Router, c.Districts, c.Risk, events, PlannerConfig(cfg))

	slog.Info("planner ready",
		"geocoder", cfg.Providers.Geocoder,
		"router", cfg.Providers.Router,
		"risk", cfg.Providers.Risk,
		"catalog", c.Catalog != nil,
		"cache", c.Cache != nil,
		"events", c.Events != nil,
	)
	return c, nil
}

// Close releases every open backend.
func (c *Components) Close() {
	if c.Events != nil {
		c.Events.Close()
	}
	if c.Cache != nil {
		c.Cache.Close()
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
