// Package api exposes cycle invocation, health and metrics over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"smart-money-tracker/internal/orchestrator"
)

// Runner runs cycles and reports store health.
type Runner interface {
	RunCycle(ctx context.Context, chainID string) (*orchestrator.Summary, error)
	Sweep(ctx context.Context) (map[string]int, error)
	StoreAvailable() bool
}

var _ Runner = (*orchestrator.Orchestrator)(nil)

// Options configures the Server.
type Options struct {
	Runner  Runner
	Chains  []string     // chains accepted by POST /cycle/{chain}
	Metrics http.Handler // served at /metrics when set
	Logger  zerolog.Logger

	// CycleTimeout bounds a cycle started over HTTP, 0 = request context only.
	CycleTimeout time.Duration
}

// Server routes tracker requests.
type Server struct {
	runner  Runner
	chains  []string
	timeout time.Duration
	logger  zerolog.Logger
	router  *mux.Router
}

// NewServer creates a server and registers its routes.
func NewServer(opts Options) *Server {
	s := &Server{
		runner:  opts.Runner,
		chains:  opts.Chains,
		timeout: opts.CycleTimeout,
		logger:  opts.Logger.With().Str("component", "api").Logger(),
		router:  mux.NewRouter(),
	}

	s.router.Use(s.requestID)
	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/cycle/{chain}", s.cycle).Methods(http.MethodPost)
	s.router.HandleFunc("/sweep", s.sweep).Methods(http.MethodPost)
	if opts.Metrics != nil {
		s.router.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Store: "loaded"}
	if !s.runner.StoreAvailable() {
		resp.Store = "unavailable"
	}
	writeJSON(w, http.StatusOK, resp)
}

type errorResponse struct {
	Error   string                `json:"error"`
	Summary *orchestrator.Summary `json:"summary,omitempty"`
}

func (s *Server) cycle(w http.ResponseWriter, r *http.Request) {
	chain := mux.Vars(r)["chain"]
	if !slices.Contains(s.chains, chain) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown chain " + chain})
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	summary, err := s.runner.RunCycle(ctx, chain)
	switch {
	case errors.Is(err, orchestrator.ErrMissingDeliveryTarget):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case err != nil:
		s.logger.Error().Err(err).Str("chain", chain).Msg("cycle failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Summary: summary})
	default:
		writeJSON(w, http.StatusOK, summary)
	}
}

func (s *Server) sweep(w http.ResponseWriter, r *http.Request) {
	removed, err := s.runner.Sweep(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
