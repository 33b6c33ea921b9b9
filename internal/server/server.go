// Package server exposes the engine over HTTP: the rehydrate call plus
// thin health, metrics, and feature-flag endpoints. No pipeline logic
// lives here.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnemohq/rehydrate/internal/engine"
	"github.com/mnemohq/rehydrate/internal/storage"
)

// Server is the rehydrate HTTP API server.
type Server struct {
	engine  *engine.Engine
	store   storage.Store
	router  chi.Router
	logger  *zap.Logger
	version string
	started time.Time
}

// New creates a Server around an engine and its backing index.
func New(eng *engine.Engine, store storage.Store, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:  eng,
		store:   store,
		logger:  logger,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.requestID)

	r.Route("/api", func(r chi.Router) {
		r.Post("/rehydrate", s.handleRehydrate)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Post("/flags", s.handleFlags)
	})

	s.router = r
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// requestID tags every request with a uuid for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func reqID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}
