package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the inbound HTTP surface of the agent.
type Server struct {
	httpServer *http.Server
}

func NewServer(addr string, h *Handlers) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter wires the routes. The deal and watchlist routes are only mounted
// when their backends are configured.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/agent", h.PostAgent)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{runID}/logs", h.ListRunLogs)
		r.Get("/runs/{runID}/results", h.ListRunResults)
		r.Get("/speak", h.Speak)
		if h.Deals != nil {
			r.Get("/deals", h.ListDeals)
			r.Get("/deals/{fingerprint}", h.GetDeal)
		}
		if h.Watchlist != nil {
			r.Post("/watchlist/run", h.RunWatchlist)
		}
	})

	return r
}

// Start blocks until the server stops. A clean Stop is not an error.
func (s *Server) Start() error {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
