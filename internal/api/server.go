package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xtitan6/btcud-mm/internal/config"
)

// snapshotBroadcastInterval controls how often the server pushes a full
// DashboardSnapshot to connected clients, independent of the per-event
// signal/order/fill pushes DashboardSink makes as they happen.
const snapshotBroadcastInterval = 2 * time.Second

// Server runs the HTTP/WebSocket API for the dashboard, plus the
// Prometheus /metrics endpoint.
type Server struct {
	cfg      config.DashboardConfig
	provider MarketSnapshotProvider
	fullCfg  config.Config
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger

	stopCh chan struct{}
}

// NewServer creates a new API server.
func NewServer(
	cfg config.DashboardConfig,
	provider MarketSnapshotProvider,
	fullCfg config.Config,
	logger *slog.Logger,
) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(provider, fullCfg, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/snapshot", handlers.HandleSnapshot)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", http.FileServer(http.Dir("web")))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		provider: provider,
		fullCfg:  fullCfg,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
		stopCh:   make(chan struct{}),
	}
}

// Sink returns a pipeline.Sink the engine can chain in to push live
// signal/order/fill events to connected dashboard clients.
func (s *Server) Sink() *DashboardSink {
	return NewDashboardSink(s.hub)
}

// Start starts the API server, its WebSocket hub, and the periodic
// snapshot broadcaster.
func (s *Server) Start() error {
	go s.hub.Run()
	go s.broadcastSnapshots()

	s.logger.Info("dashboard server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.logger.Info("stopping dashboard server")
	close(s.stopCh)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) broadcastSnapshots() {
	ticker := time.NewTicker(snapshotBroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.hub.BroadcastSnapshot(BuildSnapshot(s.provider, s.fullCfg))
		}
	}
}
