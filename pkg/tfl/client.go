// Package tfl plans public-transport journeys with the TfL Journey Planner API.
package tfl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/commonplace/internal/cache"
	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/model"
	"github.com/sells-group/commonplace/internal/resilience"
)

const (
	defaultBaseURL  = "https://api.tfl.gov.uk"
	defaultTimezone = "Europe/London"
)

var (
	// ErrUnavailable means the planner could not be reached or refused the request.
	ErrUnavailable = eris.New("tfl: service unavailable")
	// ErrNoJourney means the planner found no journey between the points.
	ErrNoJourney = eris.New("tfl: no journey found")
	// ErrMalformed means the planner answered with a payload that could not be used.
	ErrMalformed = eris.New("tfl: malformed response")
)

// Client plans a journey between two points. A nil at means "leave now".
type Client interface {
	Plan(ctx context.Context, from, to geo.Coordinate, at *time.Time) (*model.Journey, error)
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

// WithStrategies replaces the ordered strategy list.
func WithStrategies(s []Strategy) Option {
	return func(c *client) { c.strategies = s }
}

// WithTimezone sets the zone request times are expressed in. An unknown zone
// falls back to UTC.
func WithTimezone(name string) Option {
	return func(c *client) { c.loc = loadLocation(name) }
}

// WithCache enables read-through caching of journeys for ttl.
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
	appKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	strategies []Strategy
	loc        *time.Location
	cache      cache.Cache
	ttl        time.Duration
	guard      *resilience.Guard
}

// NewClient creates a TfL journey planner client. appKey may be empty; the
// API then applies anonymous rate limits.
func NewClient(appKey string, opts ...Option) Client {
	c := &client{
		appKey:     appKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(8, 8),
		strategies: DefaultStrategies(nil),
		loc:        loadLocation(defaultTimezone),
		cache:      cache.Noop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		zap.L().Warn("tfl: unknown timezone, using UTC", zap.String("timezone", name), zap.Error(err))
		return time.UTC
	}
	return loc
}

// Plan tries each strategy in order and returns the first usable journey.
// When every strategy fails the last error is returned; an open circuit
// stops the walk at once.
func (c *client) Plan(ctx context.Context, from, to geo.Coordinate, at *time.Time) (*model.Journey, error) {
	if len(c.strategies) == 0 {
		return nil, eris.New("tfl: no strategies configured")
	}

	var lastErr error
	for _, s := range c.strategies {
		j, err := c.planWith(ctx, s, from, to, at)
		if err == nil {
			return j, nil
		}
		lastErr = err
		if errors.Is(err, resilience.ErrOpen) {
			return nil, eris.Wrap(ErrUnavailable, "tfl: circuit open")
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(ErrUnavailable, ctx.Err().Error())
		}
		zap.L().Debug("tfl: strategy failed",
			zap.String("strategy", s.Name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Error(err),
		)
	}
	return nil, lastErr
}

func (c *client) planWith(ctx context.Context, s Strategy, from, to geo.Coordinate, at *time.Time) (*model.Journey, error) {
	params := c.params(s, at)

	key := cache.Key("journey", s.Name, from.Key(), to.Key(), params.Get("date"), params.Get("time"), params.Get("mode"))
	if j, ok := cache.GetJSON[model.Journey](ctx, c.cache, key); ok && len(j.Legs) > 0 {
		return &j, nil
	}

	j, err := resilience.Call(ctx, c.guard, func(ctx context.Context) (*model.Journey, error) {
		return c.fetch(ctx, from, to, params)
	})
	if err != nil {
		return nil, err
	}
	j.Strategy = s.Name

	cache.SetJSON(ctx, c.cache, key, j, c.ttl)
	return j, nil
}

func (c *client) params(s Strategy, at *time.Time) url.Values {
	params := url.Values{}
	if len(s.Modes) > 0 {
		params.Set("mode", strings.Join(s.Modes, ","))
	}
	if s.Timed && at != nil {
		local := at.In(c.loc)
		params.Set("date", local.Format("20060102"))
		params.Set("time", local.Format("1504"))
		params.Set("timeIs", "Departing")
	}
	if c.appKey != "" {
		params.Set("app_key", c.appKey)
	}
	return params
}

func (c *client) fetch(ctx context.Context, from, to geo.Coordinate, params url.Values) (*model.Journey, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "tfl: rate limit")
	}

	reqURL := fmt.Sprintf("%s/Journey/JourneyResults/%.6f,%.6f/to/%.6f,%.6f",
		c.baseURL, from.Lat, from.Lng, to.Lat, to.Lng)
	if enc := params.Encode(); enc != "" {
		reqURL += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "tfl: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "tfl: request")
		}
		return nil, resilience.Transient(eris.Wrapf(ErrUnavailable, "tfl: request: %v", err), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusMultipleChoices || resp.StatusCode == http.StatusNotFound:
		// 300 is the planner asking to disambiguate the endpoints.
		return nil, eris.Wrapf(ErrNoJourney, "tfl: planner returned status %d", resp.StatusCode)
	default:
		err := eris.Wrapf(ErrUnavailable, "tfl: planner returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.Transient(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "tfl: read body")
		}
		return nil, resilience.Transient(eris.Wrapf(ErrUnavailable, "tfl: read body: %v", err), 0)
	}
	return parseJourney(body)
}

// parseJourney converts the first journey of a JourneyResults payload.
func parseJourney(body []byte) (*model.Journey, error) {
	var resp journeyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrapf(ErrMalformed, "tfl: parse response: %v", err)
	}
	if len(resp.Journeys) == 0 {
		return nil, eris.Wrap(ErrNoJourney, "tfl: empty journey list")
	}

	raw := resp.Journeys[0]
	if raw.Duration <= 0 || len(raw.Legs) == 0 {
		return nil, eris.Wrapf(ErrMalformed, "tfl: journey has duration %d and %d legs", raw.Duration, len(raw.Legs))
	}

	j := &model.Journey{DurationMinutes: raw.Duration, Legs: make([]model.Leg, 0, len(raw.Legs))}
	for i, l := range raw.Legs {
		mode := l.Mode.ID
		if mode == "" {
			mode = l.Mode.Name
		}
		if mode == "" {
			return nil, eris.Wrapf(ErrMalformed, "tfl: leg %d has no mode", i)
		}
		j.Legs = append(j.Legs, convertLeg(l, mode))
	}
	return j, nil
}

func convertLeg(l legJSON, mode string) model.Leg {
	leg := model.Leg{
		Mode:            strings.ToLower(mode),
		DurationMinutes: l.Duration,
		DepartureName:   l.DeparturePoint.CommonName,
		ArrivalName:     l.ArrivalPoint.CommonName,
		Departure:       geo.NewCoordinate(l.DeparturePoint.Lon, l.DeparturePoint.Lat),
		Arrival:         geo.NewCoordinate(l.ArrivalPoint.Lon, l.ArrivalPoint.Lat),
	}
	if len(l.RouteOptions) > 0 {
		leg.LineName = l.RouteOptions[0].Name
	}
	if l.Path != nil {
		for _, sp := range l.Path.StopPoints {
			name := strings.TrimSpace(sp.Name)
			if name == "" || name == leg.DepartureName || name == leg.ArrivalName {
				continue
			}
			leg.Stops = append(leg.Stops, name)
		}
	}
	return leg
}
