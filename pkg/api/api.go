// Package api exposes the operator-facing REST surface and the
// connector webhook listener.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"inboxd/pkg/config"
	"inboxd/pkg/dispatch"
	"inboxd/pkg/ingest"
	"inboxd/pkg/query"
	"inboxd/pkg/stats"
	"inboxd/pkg/store"
	"inboxd/pkg/suggest"
	"inboxd/pkg/utils"
)

// Server bundles the handlers' dependencies.
type Server struct {
	st       *store.Store
	eng      *query.Engine
	disp     *dispatch.Dispatcher
	sugg     *suggest.Gateway
	agg      *stats.Aggregator
	cfg      *config.Config
	limiters *limiterPool
	queue    *ingest.Queue
}

// AttachQueue exposes the ingest queue depth on the system endpoint.
func (s *Server) AttachQueue(q *ingest.Queue) { s.queue = q }

// NewServer wires a server over the given components.
func NewServer(st *store.Store, eng *query.Engine, disp *dispatch.Dispatcher, sugg *suggest.Gateway, agg *stats.Aggregator, cfg *config.Config) *Server {
	return &Server{
		st:       st,
		eng:      eng,
		disp:     disp,
		sugg:     sugg,
		agg:      agg,
		cfg:      cfg,
		limiters: newLimiterPool(cfg.Security.RateLimit.RPS, cfg.Security.RateLimit.Burst),
	}
}

// Router builds the operator API router. Unknown paths and known paths
// with the wrong method produce distinct envelope codes.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		utils.JSONError(w, http.StatusNotFound, utils.CodeNotFound, "resource not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		utils.JSONError(w, http.StatusMethodNotAllowed, utils.CodeMethodNotAllowed, "method not allowed")
	})

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(s.scopeMiddleware, s.rateLimitMiddleware)
	v1.HandleFunc("/threads", s.handleListThreads).Methods(http.MethodGet)
	v1.HandleFunc("/threads/{id}", s.handleGetThread).Methods(http.MethodGet)
	v1.HandleFunc("/threads/{id}/reply", s.handleReply).Methods(http.MethodPost)
	v1.HandleFunc("/threads/{id}/suggestions", s.handleSuggestions).Methods(http.MethodGet)
	v1.HandleFunc("/threads/{id}/flags", s.handleUpdateFlags).Methods(http.MethodPatch)
	v1.HandleFunc("/threads/{id}/read", s.handleMarkRead).Methods(http.MethodPost)
	v1.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	v1.HandleFunc("/system", s.handleSystem).Methods(http.MethodGet)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/docs/openapi.yaml"),
	))
	r.HandleFunc("/docs/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "docs/openapi.yaml")
	}).Methods(http.MethodGet)

	return r
}
