package statsapi

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/latentspeed/tradingengine/internal/stats"
)

func TestHealthzAndMetricsServeOnConfiguredAddr(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	collector := stats.New(slog.Default(), reg)
	collector.IncOrdersReceived()

	srv := New("127.0.0.1:0", collector, reg, slog.Default())
	// Swap in an OS-assigned port via a listener would require exposing
	// one; instead bind to a fixed high port unlikely to collide in CI.
	srv.server.Addr = "127.0.0.1:18099"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)

	resp, err := http.Get("http://127.0.0.1:18099/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get("http://127.0.0.1:18099/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned error after shutdown: %v", err)
	}
}
