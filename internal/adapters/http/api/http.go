// Package api serves the results of the last run over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/okian/tourneyrank/internal/domain/model"
	"github.com/okian/tourneyrank/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service.
type Dependencies interface {
	RankingsDependencies
	HistoryDependencies
	PlayerDependencies
	SummaryDependencies
	StatsProvider
}

// Entry mirrors the read shape returned by ranking queries.
type Entry = types.Entry

const defaultMaxLimit = 500

// Server wires HTTP routes for the read API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	summaryHandler  *SummaryHandler
	rankingsHandler *RankingsHandler
	historyHandler  *HistoryHandler
	playerHandler   *PlayerHandler

	maxLimit    int
	notFound    []error
	unavailable []error
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxLimit caps the limit query parameter of /rankings.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithNotFoundErrors lists upstream errors answered with 404.
func WithNotFoundErrors(errs ...error) Option {
	return func(s *Server) {
		s.notFound = append(s.notFound, errs...)
	}
}

// WithUnavailableErrors lists upstream errors answered with 503, such as
// reads before the first run finished.
func WithUnavailableErrors(errs ...error) Option {
	return func(s *Server) {
		s.unavailable = append(s.unavailable, errs...)
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{maxLimit: defaultMaxLimit}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.summaryHandler = NewSummaryHandler(deps, s.status)
	s.rankingsHandler = NewRankingsHandler(deps, s.maxLimit, s.status)
	s.historyHandler = NewHistoryHandler(deps, s.status)
	s.playerHandler = NewPlayerHandler(deps, s.status)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Get("/summary", MetricsMiddleware(s.summaryHandler.HandleGetSummary, "summary"))
	r.Get("/rankings/{pool}", MetricsMiddleware(s.rankingsHandler.HandleGetRankings, "rankings"))
	r.Get("/events/{eventID}/history", MetricsMiddleware(s.historyHandler.HandleGetHistory, "history"))
	r.Get("/players/{playerID}", MetricsMiddleware(s.playerHandler.HandleGetPlayer, "players"))
}

// Router returns a chi router with the standard middleware stack and every
// route registered.
func (s *Server) Router(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	s.Register(ctx, r)
	return r
}

// status maps an upstream error to its HTTP status and error code.
func (s *Server) status(err error) (int, string) {
	for _, target := range s.notFound {
		if errors.Is(err, target) {
			return http.StatusNotFound, "not_found"
		}
	}
	for _, target := range s.unavailable {
		if errors.Is(err, target) {
			return http.StatusServiceUnavailable, "unavailable"
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
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
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFunc is Server.status as seen by handlers.
type statusFunc func(error) (int, string)

func writeUpstreamError(w http.ResponseWriter, status statusFunc, err error) {
	code, name := status(err)
	writeError(w, code, name, err)
}

func parsePool(name string) (model.Pool, error) {
	p, err := model.ParsePool(name)
	if err != nil {
		return 0, errors.Join(ErrUnknownPool, err)
	}
	return p, nil
}
