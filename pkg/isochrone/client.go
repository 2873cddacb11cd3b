// Package isochrone fetches reachability polygons from the Mapbox Isochrone API.
package isochrone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/commonplace/internal/cache"
	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/model"
	"github.com/sells-group/commonplace/internal/resilience"
)

const defaultBaseURL = "https://api.mapbox.com"

var (
	// ErrUnavailable means the service could not be reached or refused the request.
	ErrUnavailable = eris.New("isochrone: service unavailable")
	// ErrNoData means the service answered without a usable polygon.
	ErrNoData = eris.New("isochrone: no polygon data")
)

// Client returns the area reachable from an origin within a time budget.
type Client interface {
	Reachable(ctx context.Context, origin geo.Coordinate, minutes int) (model.ReachabilityPolygon, error)
}

// Option configures the client.
type Option func(*client)

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) Option {
	return func(c *client) { c.baseURL = u }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithRateLimit caps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithProfile selects the Mapbox routing profile (driving, walking, cycling).
func WithProfile(profile string) Option {
	return func(c *client) { c.profile = profile }
}

// WithCache enables read-through caching of polygons for ttl.
func WithCache(store cache.Cache, ttl time.Duration) Option {
	return func(c *client) {
		c.cache = store
		c.ttl = ttl
	}
}

// WithGuard routes every request through g.
func WithGuard(g *resilience.Guard) Option {
	return func(c *client) { c.guard = g }
}

type client struct {
	token      string
	baseURL    string
	profile    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      cache.Cache
	ttl        time.Duration
	guard      *resilience.Guard
}

// NewClient creates a Mapbox isochrone client.
func NewClient(token string, opts ...Option) Client {
	c := &client{
		token:      token,
		baseURL:    defaultBaseURL,
		profile:    "driving",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(5, 5),
		cache:      cache.Noop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) Reachable(ctx context.Context, origin geo.Coordinate, minutes int) (model.ReachabilityPolygon, error) {
	poly := model.ReachabilityPolygon{Origin: origin, Minutes: minutes, Profile: c.profile}
	if minutes <= 0 {
		return poly, eris.Errorf("isochrone: minutes must be positive, got %d", minutes)
	}

	key := cache.Key("isochrone", c.profile, origin.Key(), strconv.Itoa(minutes))
	if ring, ok := cache.GetJSON[[]geo.Coordinate](ctx, c.cache, key); ok && len(ring) >= 3 {
		poly.Ring = ring
		return poly, nil
	}

	ring, err := resilience.Call(ctx, c.guard, func(ctx context.Context) ([]geo.Coordinate, error) {
		return c.fetch(ctx, origin, minutes)
	})
	if err != nil {
		if errors.Is(err, resilience.ErrOpen) {
			return poly, eris.Wrap(ErrUnavailable, "isochrone: circuit open")
		}
		return poly, err
	}

	cache.SetJSON(ctx, c.cache, key, ring, c.ttl)
	poly.Ring = ring
	return poly, nil
}

func (c *client) fetch(ctx context.Context, origin geo.Coordinate, minutes int) ([]geo.Coordinate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "isochrone: rate limit")
	}

	params := url.Values{
		"contours_minutes": {strconv.Itoa(minutes)},
		"polygons":         {"true"},
		"access_token":     {c.token},
	}
	reqURL := fmt.Sprintf("%s/isochrone/v1/mapbox/%s/%.6f,%.6f?%s",
		c.baseURL, url.PathEscape(c.profile), origin.Lng, origin.Lat, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "isochrone: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "isochrone: request")
		}
		return nil, resilience.Transient(eris.Wrapf(ErrUnavailable, "isochrone: request: %v", err), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Wrapf(ErrUnavailable, "isochrone: mapbox returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.Transient(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "isochrone: read body")
		}
		return nil, resilience.Transient(eris.Wrapf(ErrUnavailable, "isochrone: read body: %v", err), 0)
	}

	ring, err := parseRing(body)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("isochrone fetched",
		zap.String("origin", origin.String()),
		zap.Int("minutes", minutes),
		zap.Int("vertices", len(ring)),
	)
	return ring, nil
}

// parseRing extracts the outer ring of the first polygon feature. For a
// multipolygon the largest member is used.
func parseRing(body []byte) ([]geo.Coordinate, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, eris.Wrapf(ErrNoData, "isochrone: parse response: %v", err)
	}

	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		var p *geom.Polygon
		switch g := f.Geometry.(type) {
		case *geom.Polygon:
			p = g
		case *geom.MultiPolygon:
			p = largestPolygon(g)
		}
		if p == nil || p.NumLinearRings() == 0 {
			continue
		}
		coords := p.LinearRing(0).Coords()
		if len(coords) < 3 {
			continue
		}
		ring := make([]geo.Coordinate, 0, len(coords))
		for _, pt := range coords {
			ring = append(ring, geo.NewCoordinate(pt.X(), pt.Y()))
		}
		return ring, nil
	}
	return nil, eris.Wrap(ErrNoData, "isochrone: no polygon feature")
}

func largestPolygon(mp *geom.MultiPolygon) *geom.Polygon {
	var best *geom.Polygon
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		if best == nil || p.Area() > best.Area() {
			best = p
		}
	}
	return best
}
