// Package api serves the sensor HTTP surface: ingestion, reading queries,
// aggregates, graphs and the HTML dashboard.
package api

import (
	"context"
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/sensorboard/internal/adapters/http/swagger"
	service "github.com/okian/sensorboard/internal/app"
	"github.com/okian/sensorboard/internal/auth"
	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/internal/domain/window"
	"github.com/okian/sensorboard/pkg/logger"
	"github.com/okian/sensorboard/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Ingest(ctx context.Context, r model.Reading) (model.Reading, error)
	Page(ctx context.Context, page, perPage int) (service.Page, error)
	Query(ctx context.Context, spec window.Spec) ([]model.Reading, error)
	Latest(ctx context.Context) (model.Reading, bool, error)
	Stats(ctx context.Context, w window.Window) (service.Stats, error)
	Ping(ctx context.Context) error
	Now() time.Time
}

// denyAll refuses every credential.
type denyAll struct{}

func (denyAll) Verify(string, string) bool { return false }

// Server wires HTTP routes for the sensor API.
type Server struct {
	deps       Dependencies
	auth       auth.Authenticator
	allow      *auth.AllowList
	limiter    *auth.RateLimiter
	log        logger.Logger
	accessLog  io.Writer
	trustProxy bool
	pages      *template.Template
}

// NewServer creates a server over deps.
func NewServer(deps Dependencies, opts ...Option) (*Server, error) {
	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	s := &Server{
		deps:  deps,
		auth:  denyAll{},
		log:   logger.Nop(),
		pages: pages,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Router returns the bare route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)

	viewer := func(h http.HandlerFunc, html bool) http.HandlerFunc {
		return s.guard(auth.RoleViewer, html, h)
	}

	r.HandleFunc("/measure", instrument("measure", s.guard(auth.RoleAdmin, false, s.handleMeasure))).Methods(http.MethodGet)
	r.HandleFunc("/readings", instrument("readings", viewer(s.handleReadings, false))).Methods(http.MethodGet)
	r.HandleFunc("/readings/range", instrument("readings_range", viewer(s.handleRange, false))).Methods(http.MethodGet)
	r.HandleFunc("/readings/{period}", instrument("readings_period", viewer(s.handlePeriod, false))).Methods(http.MethodGet)
	r.HandleFunc("/stats", instrument("stats", viewer(s.handleStats, false))).Methods(http.MethodGet)
	r.HandleFunc("/graph", instrument("graph", s.handleGallery)).Methods(http.MethodGet)
	r.HandleFunc("/graph/{file}", instrument("graph_file", viewer(s.handleGraphFile, true))).Methods(http.MethodGet)
	r.HandleFunc("/", instrument("dashboard", viewer(s.handleDashboard, true))).Methods(http.MethodGet)
	r.HandleFunc("/healthz", instrument("healthz", s.handleHealth)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	swagger.Register(r)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.renderError(w, req, NewKind("api.route", model.ErrNotFound, "Page not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", http.StatusText(http.StatusMethodNotAllowed))
	})
	return r
}

// Handler returns the full handler chain: proxy headers, panic recovery and
// the access log around the router.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.Router()
	if s.accessLog != nil {
		h = handlers.CombinedLoggingHandler(s.accessLog, h)
	}
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{log: s.log}),
		handlers.PrintRecoveryStack(false),
	)(h)
	if s.trustProxy {
		h = handlers.ProxyHeaders(h)
	}
	return h
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

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail answers a JSON route with the status err maps to. Internal errors are
// logged with their detail; the client only sees a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	s.logFailure(r, status, err)
	writeError(w, status, code, msg)
}

func (s *Server) logFailure(r *http.Request, status int, err error) {
	fields := []logger.Field{
		logger.String("path", r.URL.Path),
		logger.Int("status", status),
		logger.Error(err),
	}
	if status >= http.StatusInternalServerError {
		metrics.RecordErrorByComponent("http", "server_error")
		s.log.Error(r.Context(), "request failed", fields...)
		return
	}
	s.log.Debug(r.Context(), "request rejected", fields...)
}
