// Package api assembles the HTTP surface: middleware chain, entity
// routes, authentication, file serving and operational endpoints.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openparish/backend/pkg/auth"
	"github.com/openparish/backend/pkg/config"
	"github.com/openparish/backend/pkg/entities"
	"github.com/openparish/backend/pkg/files"
	"github.com/openparish/backend/pkg/httputil"
	"github.com/openparish/backend/pkg/observability"
	"github.com/openparish/backend/pkg/resource"
	"github.com/openparish/backend/pkg/storage"
	"github.com/openparish/backend/pkg/youtube"
)

// Server wires the full request pipeline and exposes it as an
// http.Handler.
type Server struct {
	cfg     *config.Config
	db      *storage.DB
	logger  *observability.Logger
	metrics *observability.Metrics
	files   *files.Store
	handler http.Handler
}

// NewServer builds the router and middleware chain. The returned
// server is ready to be passed to http.Server.
func NewServer(cfg *config.Config, db *storage.DB, logger *observability.Logger, metrics *observability.Metrics, store *files.Store, yt youtube.Client) *Server {
	s := &Server{
		cfg:     cfg,
		db:      db,
		logger:  logger,
		metrics: metrics,
		files:   store,
	}

	dispatcher := &httputil.Dispatcher{Logger: logger, Dev: cfg.Dev}
	root := mux.NewRouter()
	// Attached on the router so the matched route template is
	// available as the metrics path label.
	if metrics != nil {
		root.Use(s.metricsMiddleware())
	}

	root.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	if cfg.MetricsEnabled && metrics != nil {
		root.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	registry := &entities.Registry{
		DB:         db,
		Files:      store,
		YouTube:    yt,
		Router:     resource.NewRouter(db, dispatcher),
		Dispatcher: dispatcher,
	}

	// The content-to-file redirect must win over the generic
	// /files/{id}/{tail} route, so it is registered first.
	registry.RegisterFileRedirects(root)
	(&files.Handlers{Store: store}).Register(root, dispatcher)

	apiRouter := root.PathPrefix("/api").Subrouter()
	authHandlers := &auth.Handlers{DB: db, Dev: cfg.Dev, Domain: cfg.Hostname}
	authHandlers.Register(apiRouter, "/auth", dispatcher)
	registry.Register(apiRouter)

	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger, cfg.Dev),
		auth.Middleware(db, cfg.Dev),
	)
	s.handler = chain(root)
	return s
}

func (s *Server) metricsMiddleware() mux.MiddlewareFunc {
	return s.metrics.Middleware(func(r *http.Request) string {
		route := mux.CurrentRoute(r)
		if route == nil {
			return ""
		}
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
		return ""
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
