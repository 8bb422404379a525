// Package api exposes the catalog, quiz, comparison and offline cache over
// HTTP/JSON.
package api

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/rs/cors"

	"github.com/p-n-ai/worldnet/internal/compare"
	"github.com/p-n-ai/worldnet/internal/country"
	"github.com/p-n-ai/worldnet/internal/offline"
	"github.com/p-n-ai/worldnet/internal/quiz"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds the server dependencies.
type Config struct {
	// Catalog is the authoritative country source used to preload the cache.
	Catalog    country.Source
	Cache      *offline.Cache
	Quiz       *quiz.Service
	Comparator *compare.Comparator
	// AllowedOrigins for CORS and WebSocket upgrades. "*" allows any.
	AllowedOrigins []string
	HealthChecks   map[string]HealthCheck
}

// Server routes HTTP requests to the engines.
type Server struct {
	catalog    country.Source
	countries  *offline.ReadThrough
	cache      *offline.Cache
	quiz       *quiz.Service
	comparator *compare.Comparator
	origins    []string
	checks     map[string]HealthCheck
}

// New creates a server. Catalog and Cache are required.
func New(cfg Config) (*Server, error) {
	if cfg.Catalog == nil || cfg.Cache == nil {
		return nil, errors.New("catalog and cache are required")
	}
	s := &Server{
		catalog:    cfg.Catalog,
		countries:  offline.NewReadThrough(cfg.Cache, cfg.Catalog),
		cache:      cfg.Cache,
		quiz:       cfg.Quiz,
		comparator: cfg.Comparator,
		origins:    cfg.AllowedOrigins,
		checks:     cfg.HealthChecks,
	}
	if s.quiz == nil {
		s.quiz = quiz.NewService(quiz.ServiceConfig{Countries: s.countries})
	}
	if s.comparator == nil {
		s.comparator = compare.NewComparator()
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	return s, nil
}

// Countries returns the cached catalog source shared with the quiz service.
func (s *Server) Countries() country.Source {
	return s.countries
}

// Routes returns the router without middleware.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /api/countries", s.handleListCountries)
	mux.HandleFunc("GET /api/countries/{code}", s.handleGetCountry)

	mux.HandleFunc("POST /api/quizzes", s.handleStartQuiz)
	mux.HandleFunc("GET /api/quizzes/{id}", s.handleGetQuiz)
	mux.HandleFunc("POST /api/quizzes/{id}/answers", s.handleAnswer)
	mux.HandleFunc("GET /api/quizzes/{id}/results", s.handleResults)
	mux.HandleFunc("GET /api/quizzes/{id}/ws", s.handleQuizWS)
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)

	mux.HandleFunc("GET /api/compare", s.handleCompare)
	mux.HandleFunc("GET /api/compare/winner", s.handleWinner)
	mux.HandleFunc("GET /api/compare/difference", s.handleDifference)
	mux.HandleFunc("GET /api/compare/chart", s.handleChart)
	mux.HandleFunc("GET /api/compare/similar/{code}", s.handleSimilar)
	mux.HandleFunc("GET /api/compare/metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/compare/export.xlsx", s.handleExport)

	mux.HandleFunc("GET /api/cache", s.handleCacheStatus)
	mux.HandleFunc("POST /api/cache/preload", s.handlePreload)
	mux.HandleFunc("PATCH /api/cache", s.handleCacheUpdate)
	mux.HandleFunc("DELETE /api/cache", s.handleCacheClear)
	return mux
}

// Handler returns the router wrapped with CORS and request logging.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         600,
	})
	return logRequests(c.Handler(s.Routes()))
}

func (s *Server) allowAnyOrigin() bool {
	return slices.Contains(s.origins, "*")
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		slog.Warn("readiness check failed", "checks", failed)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack lets WebSocket upgrades pass through the logger.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
