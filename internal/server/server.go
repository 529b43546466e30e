// Package server exposes ranking over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/matching"
	"github.com/spigell/matchmaker/internal/profile"
	"github.com/spigell/matchmaker/internal/store"
)

const (
	defaultMaxBodyBytes = 8 << 20
	defaultMaxEmployees = 10000
)

// Ranker ranks employees for one employer.
type Ranker interface {
	Rank(ctx context.Context, employer *profile.Profile, employees *profile.Profiles, k int) ([]matching.Match, error)
}

// MatchLister reads stored matches.
type MatchLister interface {
	ListByEmployer(ctx context.Context, employerID string) ([]store.StoredMatch, error)
}

type Options struct {
	// DefaultK is used when a request does not set k. Zero or less keeps
	// every candidate.
	DefaultK int
	// MaxEmployees caps the number of employees in a single request.
	MaxEmployees int
	// MaxBodyBytes caps the request body size.
	MaxBodyBytes int64
}

type Server struct {
	ranker  Ranker
	matches MatchLister
	opts    Options
	metrics *metrics
	logger  *zap.Logger
	started time.Time
}

// New builds a server. matches may be nil when no store is configured.
func New(ranker Ranker, matches MatchLister, opts Options, logger *zap.Logger) (*Server, error) {
	if ranker == nil {
		return nil, errors.New("ranker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxEmployees <= 0 {
		opts.MaxEmployees = defaultMaxEmployees
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	return &Server{
		ranker:  ranker,
		matches: matches,
		opts:    opts,
		metrics: newMetrics(),
		logger:  logger,
		started: time.Now(),
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.observe)

	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Post("/matches", s.rank)
		r.Get("/employers/{id}/matches", s.storedMatches)
	})

	return r
}

// observe logs every request and counts it by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		s.metrics.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()

		s.logger.Debug("http request",
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
