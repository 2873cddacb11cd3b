// Package api serves the meeting-point search over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/commonplace/internal/config"
	"github.com/sells-group/commonplace/internal/meetpoint"
	"github.com/sells-group/commonplace/internal/resilience"
	"github.com/sells-group/commonplace/pkg/geocode"
)

// Searcher runs a meeting-point search.
type Searcher interface {
	Search(ctx context.Context, req meetpoint.Request) (*meetpoint.Response, error)
}

// Suggester returns autocomplete suggestions for partial location text.
type Suggester interface {
	Suggest(ctx context.Context, text string) ([]geocode.Suggestion, error)
}

// Deps are the services behind the routes. Guards may be nil.
type Deps struct {
	Searcher  Searcher
	Suggester Suggester
	Guards    *resilience.Guards
}

// Server holds the handlers' shared state.
type Server struct {
	deps    Deps
	cfg     *config.Config
	limiter *rate.Limiter
	now     func() time.Time
}

// NewServer creates a Server. A positive cfg.Server.SearchPerMinute limits
// searches across all clients.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{deps: deps, cfg: cfg, now: time.Now}
	if n := cfg.Server.SearchPerMinute; n > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
	return s
}

// Routes builds the router with its middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if secs := s.cfg.Server.RequestTimeoutSecs; secs > 0 {
		r.Use(middleware.Timeout(time.Duration(secs) * time.Second))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/locations/suggestions", s.handleSuggestions)
		r.Post("/search/meeting-spots", s.handleSearch)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})
	return r
}

// NewRouter is shorthand for NewServer(cfg, deps).Routes().
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	return NewServer(cfg, deps).Routes()
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		zap.L().Info("api: request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}
