package publish

import (
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/latentspeed/tradingengine/internal/enginepool"
	"github.com/latentspeed/tradingengine/internal/stats"
	"github.com/latentspeed/tradingengine/pkg/domain"
)

func newTestPublisher(t *testing.T, queueCapacity int) *Publisher {
	t.Helper()
	return New(Config{
		Conn:         nil, // unused by Enqueue*; Run requires a live connection
		Queue:        enginepool.NewSPSCQueue[*Envelope](queueCapacity),
		EnvelopePool: enginepool.NewPool(queueCapacity, func() *Envelope { return &Envelope{} }),
		ReportPool:   enginepool.NewPool(queueCapacity, func() *domain.ExecutionReport { return &domain.ExecutionReport{} }),
		FillPool:     enginepool.NewPool(queueCapacity, func() *domain.Fill { return &domain.Fill{} }),
		Stats:        stats.New(slog.Default(), prometheus.NewRegistry()),
		Profile:      ProfileHighPerf,
		Logger:       slog.Default(),
	})
}

func TestEnqueueReportSucceedsWithinCapacity(t *testing.T) {
	t.Parallel()

	p := newTestPublisher(t, 2)
	if !p.EnqueueReport(&domain.ExecutionReport{ClID: "A1"}) {
		t.Fatal("expected EnqueueReport to succeed")
	}
	if p.queue.Len() != 1 {
		t.Errorf("queue.Len() = %d, want 1", p.queue.Len())
	}
}

func TestEnqueueReturnsFalseOnFullQueue(t *testing.T) {
	t.Parallel()

	p := newTestPublisher(t, 1)
	if !p.EnqueueReport(&domain.ExecutionReport{ClID: "A1"}) {
		t.Fatal("expected first EnqueueReport to succeed")
	}
	if p.EnqueueFill(&domain.Fill{ClID: "A2"}) {
		t.Fatal("expected second enqueue to fail: queue at capacity")
	}
	// The envelope acquired for the refused enqueue must be released,
	// not leaked.
	if p.envelopePool.Len() != 0 {
		t.Errorf("envelopePool.Len() = %d, want 0 (one env in queue, none free)", p.envelopePool.Len())
	}
}

func TestEnqueueFillPreservesOrderFIFO(t *testing.T) {
	t.Parallel()

	p := newTestPublisher(t, 4)
	p.EnqueueReport(&domain.ExecutionReport{ClID: "A1"})
	p.EnqueueFill(&domain.Fill{ClID: "A1", ExecID: "X1"})

	first, ok := p.queue.Pop()
	if !ok || first.Topic != SubjectReport {
		t.Fatalf("first popped = %+v, want exec.report first", first)
	}
	second, ok := p.queue.Pop()
	if !ok || second.Topic != SubjectFill {
		t.Fatalf("second popped = %+v, want exec.fill second", second)
	}
}
