// Package geocode resolves place names to coordinates and back via the Mapbox
// Geocoding API, biased towards London.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/commonplace/internal/cache"
	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/resilience"
)

const (
	defaultBaseURL = "https://api.mapbox.com"
	defaultCountry = "gb"

	// MinSuggestLength is the shortest query Suggest will send upstream.
	MinSuggestLength = 2
	suggestLimit     = 5
)

// DefaultProximity biases results towards central London.
var DefaultProximity = geo.NewCoordinate(-0.1278, 51.5074)

var (
	// ErrNotFound means the query matched no place.
	ErrNotFound = eris.New("geocode: location not found")
	// ErrUnavailable means the geocoder could not be reached or refused the request.
	ErrUnavailable = eris.New("geocode: service unavailable")
)

// Client turns free text into coordinates and coordinates into display names.
type Client interface {
	// Resolve returns the best match for text.
	Resolve(ctx context.Context, text string) (geo.Coordinate, error)

	// Describe returns a short display name for c. When the geocoder has
	// nothing useful it returns FallbackName(c).
	Describe(ctx context.Context, c geo.Coordinate) (string, error)

	// Suggest returns up to five autocomplete matches for text. Queries
	// shorter than MinSuggestLength return no suggestions.
	Suggest(ctx context.Context, text string) ([]Suggestion, error)
}

// Suggestion is one autocomplete match.
type Suggestion struct {
	Name        string         `json:"name"`
	Coordinates geo.Coordinate `json:"coordinates"`
	Type        string         `json:"type"`
}

// FallbackName is the display name used when reverse geocoding fails.
func FallbackName(c geo.Coordinate) string {
	return fmt.Sprintf("Location %.4f, %.4f", c.Lat, c.Lng)
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithBaseURL points the geocoder at a different API host.
func WithBaseURL(u string) Option {
	return func(g *geocoder) { g.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) { g.httpClient = hc }
}

// WithRateLimit sets the requests-per-second limit for Mapbox calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithCountry restricts results to an ISO 3166 alpha-2 country.
func WithCountry(country string) Option {
	return func(g *geocoder) { g.country = strings.ToLower(country) }
}

// WithCache caches resolved places and names for ttl and suggestions for
// suggestTTL.
func WithCache(store cache.Cache, ttl, suggestTTL time.Duration) Option {
	return func(g *geocoder) {
		g.cache = store
		g.ttl = ttl
		g.suggestTTL = suggestTTL
	}
}

// WithGuard routes every request through gd.
func WithGuard(gd *resilience.Guard) Option {
	return func(g *geocoder) { g.guard = gd }
}

type geocoder struct {
	token      string
	baseURL    string
	country    string
	proximity  geo.Coordinate
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      cache.Cache
	ttl        time.Duration
	suggestTTL time.Duration
	guard      *resilience.Guard
}

// NewClient creates a Mapbox geocoding Client.
func NewClient(token string, opts ...Option) Client {
	g := &geocoder{
		token:      token,
		baseURL:    defaultBaseURL,
		country:    defaultCountry,
		proximity:  DefaultProximity,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
		cache:      cache.Noop{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *geocoder) Resolve(ctx context.Context, text string) (geo.Coordinate, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return geo.Coordinate{}, eris.Wrap(ErrNotFound, "geocode: empty query")
	}

	key := cache.Key("geocode", g.country, strings.ToLower(query))
	if c, ok := cache.GetJSON[geo.Coordinate](ctx, g.cache, key); ok && c.Valid() {
		return c, nil
	}

	features, err := g.forward(ctx, query, 1, nil)
	if err != nil {
		return geo.Coordinate{}, err
	}
	if len(features) == 0 {
		return geo.Coordinate{}, eris.Wrapf(ErrNotFound, "geocode: no match for %q", query)
	}
	c, ok := features[0].coordinate()
	if !ok {
		return geo.Coordinate{}, eris.Wrapf(ErrNotFound, "geocode: match for %q has no center", query)
	}

	cache.SetJSON(ctx, g.cache, key, c, g.ttl)
	return c, nil
}

func (g *geocoder) Describe(ctx context.Context, c geo.Coordinate) (string, error) {
	if !c.Valid() {
		return "", eris.Errorf("geocode: invalid coordinate %s", c)
	}

	key := cache.Key("reverse", fmt.Sprintf("%.4f,%.4f", c.Lng, c.Lat))
	if name, ok := cache.GetJSON[string](ctx, g.cache, key); ok && name != "" {
		return name, nil
	}

	features, err := g.reverse(ctx, c)
	if err != nil || len(features) == 0 {
		return FallbackName(c), nil
	}

	name := displayName(features)
	if name == "" {
		return FallbackName(c), nil
	}
	cache.SetJSON(ctx, g.cache, key, name, g.ttl)
	return name, nil
}

func (g *geocoder) Suggest(ctx context.Context, text string) ([]Suggestion, error) {
	query := strings.TrimSpace(text)
	if len([]rune(query)) < MinSuggestLength {
		return []Suggestion{}, nil
	}

	key := cache.Key("suggest", g.country, strings.ToLower(query))
	if s, ok := cache.GetJSON[[]Suggestion](ctx, g.cache, key); ok {
		return s, nil
	}

	features, err := g.forward(ctx, query, suggestLimit, []string{"place", "postcode", "address", "poi"})
	if err != nil {
		return nil, err
	}

	out := make([]Suggestion, 0, len(features))
	for _, f := range features {
		c, ok := f.coordinate()
		if !ok {
			continue
		}
		s := Suggestion{Name: f.PlaceName, Coordinates: c}
		if len(f.PlaceType) > 0 {
			s.Type = f.PlaceType[0]
		}
		out = append(out, s)
	}

	cache.SetJSON(ctx, g.cache, key, out, g.suggestTTL)
	return out, nil
}

// IsNotFound reports whether err means the query matched nothing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
