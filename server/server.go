// Package server exposes operational HTTP endpoints for the catalog watcher.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"catalog-watcher/pkg/watcher"
	"catalog-watcher/poll"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// Poller triggers a monitoring cycle without waiting behind a running one.
type Poller interface {
	TryCheckAll(ctx context.Context) error
}

// Ledger exposes the notified products.
type Ledger interface {
	Snapshot() map[watcher.ProductKey]watcher.NotificationRecord
}

// Server handles HTTP requests.
type Server struct {
	poller   Poller
	ledger   Ledger
	registry *prometheus.Registry
	logger   *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Poller   Poller
	Ledger   Ledger
	Registry *prometheus.Registry // nil disables /metrics
	Logger   *slog.Logger
}

// New creates a new HTTP server handler.
func New(cfg *Config) *Server {
	return &Server{
		poller:   cfg.Poller,
		ledger:   cfg.Ledger,
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}
}

// Router returns the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/pollz", s.handlePoll)
	r.Get("/notified", s.handleNotified)
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Minute, // a manual poll runs a whole cycle
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.Info("Shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"healthy"}`); err != nil {
		s.logger.Warn("Failed to write health response", "error", err)
	}
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Poll endpoint triggered")

	err := s.poller.TryCheckAll(r.Context())
	switch {
	case errors.Is(err, poll.ErrCycleRunning):
		s.logger.Info("Poll rejected, cycle already running")
		http.Error(w, "Check already running", http.StatusConflict)
		return
	case err != nil:
		s.logger.Error("Poll check failed", "error", err)
		http.Error(w, "Check failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"completed"}`); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

type notifiedResponse struct {
	Products map[watcher.ProductKey]watcher.NotificationRecord `json:"products"`
	Count    int                                               `json:"count"`
}

func (s *Server) handleNotified(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.ledger.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(notifiedResponse{Products: snapshot, Count: len(snapshot)}); err != nil {
		s.logger.Warn("Failed to write notified response", "error", err)
	}
}
