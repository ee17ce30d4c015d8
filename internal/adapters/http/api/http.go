// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/recommend"
	"github.com/okian/audiomatch/internal/validation"
	"github.com/okian/audiomatch/pkg/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Recommender produces recommendations. *recommend.Engine satisfies it.
type Recommender interface {
	Recommend(ctx context.Context, req model.RecommendationRequest) (*model.Response, error)
	Strategy() string
}

// ComponentLookup resolves catalog IDs for the power endpoints.
type ComponentLookup interface {
	Get(ctx context.Context, id string) (model.Component, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler          *HealthHandler
	statsHandler           *StatsHandler
	recommendationsHandler *RecommendationsHandler
	powerHandler           *PowerHandler

	rateLimitRequests int
	rateLimitWindow   time.Duration
	mounts            []func(chi.Router)
	logger            logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit limits API calls per client IP. requests <= 0 disables it.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(s *Server) {
		s.rateLimitRequests = requests
		s.rateLimitWindow = window
	}
}

// WithLookup lets the power endpoints accept catalog IDs.
func WithLookup(l ComponentLookup) Option {
	return func(s *Server) {
		s.powerHandler.lookup = l
	}
}

// WithHealthCheck adds a named readiness probe to /healthz.
func WithHealthCheck(name string, check func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.healthHandler.checks = append(s.healthHandler.checks, namedCheck{name: name, check: check})
	}
}

// WithMount registers extra routes, such as API docs, on the root router.
func WithMount(fn func(chi.Router)) Option {
	return func(s *Server) {
		s.mounts = append(s.mounts, fn)
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(rec Recommender, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:          NewHealthHandler(rec.Strategy()),
		statsHandler:           NewStatsHandler(stats),
		recommendationsHandler: NewRecommendationsHandler(rec),
		powerHandler:           NewPowerHandler(),
		logger:                 logger.Get().Named("http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Method(http.MethodGet, "/metrics", MetricsHandler())
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/api/v1", func(r chi.Router) {
		if s.rateLimitRequests > 0 {
			r.Use(httprate.Limit(s.rateLimitRequests, s.rateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeError(w, http.StatusTooManyRequests, "rate_limited", nil)
				})))
		}
		r.Post("/recommendations", s.recommendationsHandler.HandleRecommend)
		r.Post("/power/requirement", s.powerHandler.HandleRequirement)
		r.Post("/power/match", s.powerHandler.HandleMatch)
	})

	for _, mount := range s.mounts {
		mount(r)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	return r
}

type errorResponse struct {
	Code    string                   `json:"code"`
	Message string                   `json:"message"`
	Details []validation.FieldDetail `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	resp := errorResponse{Code: code, Message: msg}
	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		resp.Details = verr.Details()
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads one JSON document into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ErrBodyTooLarge
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// writeDecodeError maps a decodeJSON failure.
func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrBodyTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", err)
		return
	}
	writeError(w, http.StatusBadRequest, "bad_request", err)
}

// statusFor maps engine errors to HTTP status and code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, recommend.ErrInvalidRequest):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, recommend.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
