// Package statsapi serves operational HTTP endpoints over the same
// http.Server/ServeMux shape the teacher's internal/api/server.go uses
// for its dashboard, pared down from a WebSocket dashboard to the two
// endpoints this gateway needs: a liveness probe and a Prometheus
// scrape target.
package statsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/latentspeed/tradingengine/internal/stats"
)

// Server exposes /healthz and /metrics.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// New builds a Server bound to addr (e.g. ":9090"), scraping reg through
// the standard promhttp handler and reporting collector's snapshot on
// /healthz.
func New(addr string, collector *stats.Collector, reg prometheus.Gatherer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		snap := collector.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":          "ok",
			"orders_received": snap.OrdersReceived,
			"orders_accepted": snap.OrdersAccepted,
			"orders_rejected": snap.OrdersRejected,
		})
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With("component", "statsapi"),
	}
}

// Run starts the server and blocks until ctx is canceled, at which point
// it shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("stats server starting", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("stats server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
