package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/commonplace/internal/config"
	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/meetpoint"
	"github.com/sells-group/commonplace/internal/resilience"
	"github.com/sells-group/commonplace/pkg/geocode"
)

type mockSearcher struct {
	resp *meetpoint.Response
	err  error
	got  []meetpoint.Request
}

func (m *mockSearcher) Search(_ context.Context, req meetpoint.Request) (*meetpoint.Response, error) {
	m.got = append(m.got, req)
	return m.resp, m.err
}

type mockSuggester struct {
	out   []geocode.Suggestion
	err   error
	calls int
}

func (m *mockSuggester) Suggest(_ context.Context, _ string) ([]geocode.Suggestion, error) {
	m.calls++
	return m.out, m.err
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{AllowedOrigins: []string{"*"}, RequestTimeoutSecs: 5},
		Mapbox: config.MapboxConfig{Token: "pk.test"},
		Cache:  config.CacheConfig{Driver: "memory"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, deps Deps) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(cfg, deps))
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func postSearch(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/search/meeting-spots", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	guards := resilience.NewGuards(resilience.DefaultGuardConfig())
	guards.For("tfl")
	srv := newTestServer(t, testConfig(), Deps{Guards: guards})

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body := decode(t, resp)
	assert.Equal(t, "healthy", body["status"])
	services := body["services"].(map[string]any)
	assert.Equal(t, "memory", services["cache"])
	assert.Equal(t, "configured", services["mapbox"])
	assert.Equal(t, "missing key", services["tfl"])
	assert.Equal(t, map[string]any{"tfl": "closed"}, body["breakers"])
}

func TestSuggestions(t *testing.T) {
	sugg := &mockSuggester{out: []geocode.Suggestion{
		{Name: "Angel, London", Coordinates: geo.NewCoordinate(-0.1058, 51.5322), Type: "place"},
	}}
	srv := newTestServer(t, testConfig(), Deps{Suggester: sugg})

	resp, err := http.Get(srv.URL + "/api/locations/suggestions?q=ang")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	list := body["suggestions"].([]any)
	require.Len(t, list, 1)
	first := list[0].(map[string]any)
	assert.Equal(t, "Angel, London", first["name"])
	assert.Equal(t, []any{-0.1058, 51.5322}, first["coordinates"])
	assert.Equal(t, "place", first["type"])
}

func TestSuggestions_ShortQuery(t *testing.T) {
	sugg := &mockSuggester{}
	srv := newTestServer(t, testConfig(), Deps{Suggester: sugg})

	resp, err := http.Get(srv.URL + "/api/locations/suggestions?q=a")
	require.NoError(t, err)

	body := decode(t, resp)
	assert.Equal(t, []any{}, body["suggestions"])
	assert.Zero(t, sugg.calls)
}

func TestSuggestions_ProviderError(t *testing.T) {
	sugg := &mockSuggester{err: eris.New("geocode: dial tcp: connection refused")}
	srv := newTestServer(t, testConfig(), Deps{Suggester: sugg})

	resp, err := http.Get(srv.URL + "/api/locations/suggestions?q=angel")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "suggestions_unavailable", body["code"])
	assert.NotContains(t, body["message"], "connection refused")
}

func TestSearch_OK(t *testing.T) {
	searcher := &mockSearcher{resp: &meetpoint.Response{
		Success: true,
		Results: []meetpoint.Result{{Name: "Knightsbridge", Rank: 1, Coordinates: geo.NewCoordinate(-0.160, 51.500)}},
		Metadata: meetpoint.Metadata{
			SearchID:   "search-1",
			SearchTime: time.Date(2024, time.March, 1, 18, 0, 0, 0, time.UTC),
			States:     []meetpoint.State{meetpoint.StatePrimary, meetpoint.StateMerge},
		},
	}}
	srv := newTestServer(t, testConfig(), Deps{Searcher: searcher})

	resp := postSearch(t, srv, `{"location1": "Charing Cross", "location2": [-0.187, 51.492], "venueTypes": ["pub"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "Knightsbridge", results[0].(map[string]any)["name"])
	md := body["metadata"].(map[string]any)
	assert.Equal(t, "search-1", md["searchId"])
	assert.Equal(t, []any{"PRIMARY", "DIRECT_AND_INTERSECTION_MERGE"}, md["states"])

	require.Len(t, searcher.got, 1)
	got := searcher.got[0]
	assert.Equal(t, "Charing Cross", got.Location1.Text)
	require.NotNil(t, got.Location2.Coordinate)
	assert.Equal(t, geo.NewCoordinate(-0.187, 51.492), *got.Location2.Coordinate)
	assert.Equal(t, []string{"pub"}, got.VenueTypes)
}

func TestSearch_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"not json", `{`, "invalid_request"},
		{"missing location2", `{"location1": "Soho"}`, "missing_location"},
		{"blank location1", `{"location1": " ", "location2": "Soho"}`, "missing_location"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &mockSearcher{}
			srv := newTestServer(t, testConfig(), Deps{Searcher: searcher})

			resp := postSearch(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.code, decode(t, resp)["code"])
			assert.Empty(t, searcher.got)
		})
	}
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unresolved", eris.Wrap(meetpoint.ErrLocationUnresolved, "meetpoint: location1 \"Atlantis\""), http.StatusUnprocessableEntity, "location_not_found"},
		{"outside", eris.Wrap(meetpoint.ErrOutOfServiceArea, "meetpoint: (2.3522, 48.8566)"), http.StatusUnprocessableEntity, "outside_service_area"},
		{"no candidates", eris.Wrap(meetpoint.ErrNoViableCandidates, "meetpoint: catalog is empty"), http.StatusNotFound, "no_viable_meeting_point"},
		{"unexpected", eris.New("tfl: dial tcp 10.0.0.1:443: i/o timeout"), http.StatusInternalServerError, "search_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, testConfig(), Deps{Searcher: &mockSearcher{err: tt.err}})

			resp := postSearch(t, srv, `{"location1": "Soho", "location2": "Angel"}`)
			assert.Equal(t, tt.status, resp.StatusCode)

			body := decode(t, resp)
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["message"])
			assert.NotContains(t, body["message"], "meetpoint:")
			assert.NotContains(t, body["message"], "dial tcp")
		})
	}
}

func TestSearch_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Server.SearchPerMinute = 1
	searcher := &mockSearcher{resp: &meetpoint.Response{Success: true}}
	srv := newTestServer(t, cfg, Deps{Searcher: searcher})

	first := postSearch(t, srv, `{"location1": "Soho", "location2": "Angel"}`)
	first.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := postSearch(t, srv, `{"location1": "Soho", "location2": "Angel"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, "rate_limited", decode(t, second)["code"])
	assert.Len(t, searcher.got, 1)
}

func TestNotFound(t *testing.T) {
	srv := newTestServer(t, testConfig(), Deps{})

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decode(t, resp)["code"])
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, testConfig(), Deps{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/search/meeting-spots", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
