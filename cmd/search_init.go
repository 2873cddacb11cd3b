package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/commonplace/internal/cache"
	"github.com/sells-group/commonplace/internal/catalog"
	"github.com/sells-group/commonplace/internal/config"
	"github.com/sells-group/commonplace/internal/meetpoint"
	"github.com/sells-group/commonplace/internal/resilience"
	"github.com/sells-group/commonplace/internal/scorer"
	"github.com/sells-group/commonplace/pkg/geocode"
	"github.com/sells-group/commonplace/pkg/isochrone"
	"github.com/sells-group/commonplace/pkg/tfl"
)

// Service names used for the circuit breakers.
const (
	serviceIsochrone = "mapbox-isochrone"
	serviceGeocode   = "mapbox-geocoding"
	serviceTfL       = "tfl-journey"
)

// searchEnv holds the initialized cache, clients and engine needed by the
// serve and search commands.
type searchEnv struct {
	Cache    cache.Cache
	Guards   *resilience.Guards
	Catalog  *catalog.Catalog
	Geocoder geocode.Client
	Engine   *meetpoint.Engine
}

// Close releases resources held by the environment.
func (se *searchEnv) Close() {
	if se.Cache != nil {
		if err := se.Cache.Close(); err != nil {
			zap.L().Warn("close cache", zap.Error(err))
		}
	}
}

// initSearch validates c for mode and builds the engine over real clients.
// Callers should defer env.Close().
func initSearch(ctx context.Context, c *config.Config, mode string) (*searchEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	cat, err := loadCatalog(c.Catalog.Path)
	if err != nil {
		return nil, err
	}

	sc, err := scorer.New(c.Scoring)
	if err != nil {
		return nil, eris.Wrap(err, "init scorer")
	}

	store, err := cache.Open(ctx, c.Cache.Driver, c.Cache.DSN)
	if err != nil {
		return nil, eris.Wrap(err, "open cache")
	}

	env := &searchEnv{
		Cache:   store,
		Guards:  resilience.NewGuards(guardConfig(c.Resilience)),
		Catalog: cat,
	}

	hc := &http.Client{Timeout: time.Duration(c.HTTP.TimeoutSecs) * time.Second}

	reach := isochrone.NewClient(c.Mapbox.Token,
		isochrone.WithBaseURL(c.Mapbox.BaseURL),
		isochrone.WithHTTPClient(hc),
		isochrone.WithRateLimit(c.Mapbox.RatePerSec),
		isochrone.WithProfile(c.Mapbox.Profile),
		isochrone.WithCache(store, time.Duration(c.Cache.IsochroneTTLMins)*time.Minute),
		isochrone.WithGuard(env.Guards.For(serviceIsochrone)),
	)

	journeys := tfl.NewClient(c.TfL.AppKey,
		tfl.WithBaseURL(c.TfL.BaseURL),
		tfl.WithHTTPClient(hc),
		tfl.WithRateLimit(c.TfL.RatePerSec),
		tfl.WithStrategies(tfl.DefaultStrategies(c.TfL.Modes)),
		tfl.WithTimezone(c.TfL.Timezone),
		tfl.WithCache(store, time.Duration(c.Cache.JourneyTTLMins)*time.Minute),
		tfl.WithGuard(env.Guards.For(serviceTfL)),
	)

	env.Geocoder = geocode.NewClient(c.Mapbox.Token,
		geocode.WithBaseURL(c.Mapbox.BaseURL),
		geocode.WithHTTPClient(hc),
		geocode.WithRateLimit(c.Mapbox.RatePerSec),
		geocode.WithCountry(c.Mapbox.Country),
		geocode.WithCache(store,
			time.Duration(c.Cache.GeocodeTTLHours)*time.Hour,
			time.Duration(c.Cache.SuggestTTLMins)*time.Minute,
		),
		geocode.WithGuard(env.Guards.For(serviceGeocode)),
	)

	env.Engine, err = meetpoint.New(cat, meetpoint.Providers{
		Reachability: reach,
		Journeys:     journeys,
		Locator:      env.Geocoder,
	}, sc, meetpoint.SettingsFromConfig(c))
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init engine")
	}

	zap.L().Info("search environment ready",
		zap.Int("areas", cat.Len()),
		zap.String("cache", c.Cache.Driver),
		zap.String("scoring_version", sc.Config().Version),
		zap.Bool("tfl_key", c.TfL.AppKey != ""),
	)
	return env, nil
}

func guardConfig(rc config.ResilienceConfig) resilience.GuardConfig {
	gc := resilience.DefaultGuardConfig()
	if rc.TimeoutSecs > 0 {
		gc.Timeout = time.Duration(rc.TimeoutSecs) * time.Second
	}
	if rc.MaxAttempts > 0 {
		gc.Retry.MaxAttempts = rc.MaxAttempts
	}
	if rc.BackoffMs > 0 {
		gc.Retry.Backoff = time.Duration(rc.BackoffMs) * time.Millisecond
	}
	if rc.BreakerFailures > 0 {
		gc.Breaker.Failures = rc.BreakerFailures
	}
	if rc.BreakerCooldownSecs > 0 {
		gc.Breaker.Cooldown = time.Duration(rc.BreakerCooldownSecs) * time.Second
	}
	return gc
}

// loadCatalog reads the catalog at path, or the embedded London catalog when
// path is empty.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		cat, err := catalog.Default()
		if err != nil {
			return nil, eris.Wrap(err, "load embedded catalog")
		}
		return cat, nil
	}
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "load catalog %s", path)
	}
	return cat, nil
}
