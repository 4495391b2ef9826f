// Package api exposes the agent's current readings, collector status and
// reading history over a read-only HTTP interface.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
)

// Server wraps the HTTP listener. All endpoints are read-only.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// NewServer builds the router and configures the listener on addr.
// history may be nil when the history store is disabled; its endpoints
// then return 404.
func NewServer(addr string, coord Coordinator, history History, log *slog.Logger) *Server {
	h := &handler{coord: coord, history: history, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httplog.RequestLogger(log, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS.Concise(true),
	}))

	r.Get("/healthz", h.healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/readings", h.listReadings)
		r.Get("/readings/*", h.getReading)
		r.Get("/status", h.listStatus)
		r.Get("/history/*", h.getHistory)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start blocks serving HTTP until Shutdown is called or the listener
// fails.
func (s *Server) Start() error {
	s.log.Info("api listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("api shutting down")
	return s.httpServer.Shutdown(ctx)
}
