package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/commonplace/internal/cache"
	"github.com/sells-group/commonplace/internal/meetpoint"
	"github.com/sells-group/commonplace/pkg/geocode"
)

const (
	maxBodyBytes = 1 << 20
	version      = "1.0.0"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	driver := strings.ToLower(strings.TrimSpace(s.cfg.Cache.Driver))
	if driver == "" {
		driver = cache.DriverNone
	}

	breakers := map[string]string{}
	if s.deps.Guards != nil {
		breakers = s.deps.Guards.States()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"services": map[string]string{
			"cache":  driver,
			"mapbox": credential(s.cfg.Mapbox.Token),
			"tfl":    credential(s.cfg.TfL.AppKey),
		},
		"breakers": breakers,
		"version":  version,
	})
}

func credential(v string) string {
	if v == "" {
		return "missing key"
	}
	return "configured"
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len([]rune(q)) < geocode.MinSuggestLength || s.deps.Suggester == nil {
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": []geocode.Suggestion{}})
		return
	}

	suggestions, err := s.deps.Suggester.Suggest(r.Context(), q)
	if err != nil {
		zap.L().Warn("api: suggestions failed", zap.String("query", q), zap.Error(err))
		writeError(w, http.StatusBadGateway, "suggestions_unavailable", "Location suggestions are temporarily unavailable")
		return
	}
	if suggestions == nil {
		suggestions = []geocode.Suggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many search requests, please try again in a minute")
		return
	}

	var req meetpoint.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Request body must be a JSON search request")
		return
	}
	if req.Location1.Empty() || req.Location2.Empty() {
		writeError(w, http.StatusBadRequest, "missing_location", "Both locations are required")
		return
	}
	if s.deps.Searcher == nil {
		writeError(w, http.StatusServiceUnavailable, "not_configured", "Search is not configured")
		return
	}

	resp, err := s.deps.Searcher.Search(r.Context(), req)
	if err != nil {
		writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeSearchError maps engine errors to client messages. Anything else is
// logged and reported generically.
func writeSearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, meetpoint.ErrLocationUnresolved):
		writeError(w, http.StatusUnprocessableEntity, "location_not_found",
			"We couldn't find one of those locations. Try a station, postcode or landmark in London.")
	case errors.Is(err, meetpoint.ErrOutOfServiceArea):
		writeError(w, http.StatusUnprocessableEntity, "outside_service_area",
			"Both locations need to be in Greater London.")
	case errors.Is(err, meetpoint.ErrNoViableCandidates):
		writeError(w, http.StatusNotFound, "no_viable_meeting_point",
			"We couldn't find a fair meeting point for those locations. Try somewhere closer to central London.")
	default:
		zap.L().Error("api: search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search_failed", "Failed to find meeting spots")
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: http.StatusText(status), Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}
