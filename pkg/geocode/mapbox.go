package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/resilience"
)

// mapboxResponse is the JSON response from the Mapbox Geocoding v5 API.
type mapboxResponse struct {
	Features []mapboxFeature `json:"features"`
}

type mapboxFeature struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	PlaceName string          `json:"place_name"`
	PlaceType []string        `json:"place_type"`
	Center    []float64       `json:"center"`
	Context   []mapboxContext `json:"context"`
}

type mapboxContext struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (f mapboxFeature) coordinate() (geo.Coordinate, bool) {
	if len(f.Center) != 2 {
		return geo.Coordinate{}, false
	}
	c := geo.NewCoordinate(f.Center[0], f.Center[1])
	return c, c.Valid()
}

// displayName prefers a point of interest or neighbourhood, then qualifies it
// with the enclosing neighbourhood or place when that adds something.
func displayName(features []mapboxFeature) string {
	best := features[0]
	for _, f := range features {
		if slices.Contains(f.PlaceType, "poi") || slices.Contains(f.PlaceType, "neighborhood") {
			best = f
			break
		}
	}

	name := best.Text
	if name == "" {
		name = best.PlaceName
	}
	for _, ctx := range best.Context {
		if strings.HasPrefix(ctx.ID, "neighborhood") || strings.HasPrefix(ctx.ID, "place") {
			if ctx.Text != "" && ctx.Text != name {
				return name + ", " + ctx.Text
			}
			break
		}
	}
	return name
}

func (g *geocoder) forward(ctx context.Context, query string, limit int, types []string) ([]mapboxFeature, error) {
	params := url.Values{
		"access_token": {g.token},
		"limit":        {strconv.Itoa(limit)},
		"proximity":    {fmt.Sprintf("%.4f,%.4f", g.proximity.Lng, g.proximity.Lat)},
	}
	if g.country != "" {
		params.Set("country", g.country)
	}
	if len(types) > 0 {
		params.Set("types", strings.Join(types, ","))
	}
	return g.places(ctx, url.PathEscape(query), params)
}

func (g *geocoder) reverse(ctx context.Context, c geo.Coordinate) ([]mapboxFeature, error) {
	params := url.Values{
		"access_token": {g.token},
		"types":        {"poi,address,neighborhood,place"},
	}
	return g.places(ctx, fmt.Sprintf("%f,%f", c.Lng, c.Lat), params)
}

func (g *geocoder) places(ctx context.Context, path string, params url.Values) ([]mapboxFeature, error) {
	features, err := resilience.Call(ctx, g.guard, func(ctx context.Context) ([]mapboxFeature, error) {
		return g.fetch(ctx, path, params)
	})
	if errors.Is(err, resilience.ErrOpen) {
		return nil, eris.Wrap(ErrUnavailable, "geocode: circuit open")
	}
	return features, err
}

func (g *geocoder) fetch(ctx context.Context, path string, params url.Values) ([]mapboxFeature, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	reqURL := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s", g.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "geocode: request")
		}
		return nil, resilience.Transient(eris.Wrapf(ErrUnavailable, "geocode: request: %v", err), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Wrapf(ErrUnavailable, "geocode: mapbox returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.Transient(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "geocode: read body")
		}
		return nil, resilience.Transient(eris.Wrapf(ErrUnavailable, "geocode: read body: %v", err), 0)
	}

	var mr mapboxResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "geocode: parse response: %v", err)
	}
	return mr.Features, nil
}
