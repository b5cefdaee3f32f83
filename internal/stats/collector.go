// Package stats implements the stats collector (C12): atomic counters
// and moving latency bounds, emitted periodically to the logging
// collaborator and exposed as Prometheus gauges/histograms for scraping.
//
// Grounded on the teacher's internal/risk.Manager, which aggregates
// events off a channel on a ticker cadence; here the aggregation is
// atomic counters rather than a channel, since every call site already
// runs on one of the three core threads and a channel hand-off would
// add latency C12 exists to measure.
package stats

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector aggregates the counters and latency bounds named in §4.12.
type Collector struct {
	ordersReceived   atomic.Uint64
	ordersAccepted   atomic.Uint64
	ordersRejected   atomic.Uint64
	reportsPublished atomic.Uint64
	fillsPublished   atomic.Uint64
	poolExhausted    atomic.Uint64
	queueFull        atomic.Uint64

	latencyMinNs   atomic.Int64
	latencyMaxNs   atomic.Int64
	latencySumNs   atomic.Int64
	latencyCount   atomic.Uint64

	logger *slog.Logger

	promOrdersReceived   prometheus.Counter
	promOrdersAccepted   prometheus.Counter
	promOrdersRejected   prometheus.Counter
	promReportsPublished prometheus.Counter
	promFillsPublished   prometheus.Counter
	promPoolExhausted    prometheus.Counter
	promQueueFull        prometheus.Counter
	promLatency          prometheus.Histogram
}

// New builds a Collector. logger receives the periodic emission; it must
// not be nil.
func New(logger *slog.Logger, reg prometheus.Registerer) *Collector {
	c := &Collector{logger: logger}
	c.latencyMinNs.Store(math.MaxInt64)

	factory := promauto.With(reg)
	c.promOrdersReceived = factory.NewCounter(prometheus.CounterOpts{
		Name: "tradingengine_orders_received_total",
		Help: "Total ExecutionOrder records received on the ingress socket.",
	})
	c.promOrdersAccepted = factory.NewCounter(prometheus.CounterOpts{
		Name: "tradingengine_orders_accepted_total",
		Help: "Total orders accepted by a venue.",
	})
	c.promOrdersRejected = factory.NewCounter(prometheus.CounterOpts{
		Name: "tradingengine_orders_rejected_total",
		Help: "Total orders rejected, locally or by a venue.",
	})
	c.promReportsPublished = factory.NewCounter(prometheus.CounterOpts{
		Name: "tradingengine_reports_published_total",
		Help: "Total ExecutionReport records published.",
	})
	c.promFillsPublished = factory.NewCounter(prometheus.CounterOpts{
		Name: "tradingengine_fills_published_total",
		Help: "Total Fill records published.",
	})
	c.promPoolExhausted = factory.NewCounter(prometheus.CounterOpts{
		Name: "tradingengine_pool_exhausted_total",
		Help: "Total allocations refused due to pool exhaustion.",
	})
	c.promQueueFull = factory.NewCounter(prometheus.CounterOpts{
		Name: "tradingengine_queue_full_total",
		Help: "Total publish-queue pushes refused due to a full SPSC ring.",
	})
	c.promLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "tradingengine_ingress_to_publish_latency_seconds",
		Help:    "Per-order ingress-to-publish latency.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
	})

	return c
}

func (c *Collector) IncOrdersReceived()   { c.ordersReceived.Add(1); c.promOrdersReceived.Inc() }
func (c *Collector) IncOrdersAccepted()   { c.ordersAccepted.Add(1); c.promOrdersAccepted.Inc() }
func (c *Collector) IncOrdersRejected()   { c.ordersRejected.Add(1); c.promOrdersRejected.Inc() }
func (c *Collector) IncReportsPublished() { c.reportsPublished.Add(1); c.promReportsPublished.Inc() }
func (c *Collector) IncFillsPublished()   { c.fillsPublished.Add(1); c.promFillsPublished.Inc() }
func (c *Collector) IncPoolExhausted()    { c.poolExhausted.Add(1); c.promPoolExhausted.Inc() }
func (c *Collector) IncQueueFull()        { c.queueFull.Add(1); c.promQueueFull.Inc() }

// ObserveLatency records one ingress-to-publish latency sample in
// nanoseconds, updating the moving min/max/sum without locking.
func (c *Collector) ObserveLatency(ns int64) {
	for {
		cur := c.latencyMinNs.Load()
		if ns >= cur || c.latencyMinNs.CompareAndSwap(cur, ns) {
			break
		}
	}
	for {
		cur := c.latencyMaxNs.Load()
		if ns <= cur || c.latencyMaxNs.CompareAndSwap(cur, ns) {
			break
		}
	}
	c.latencySumNs.Add(ns)
	c.latencyCount.Add(1)
	c.promLatency.Observe(float64(ns) / 1e9)
}

// Snapshot is a point-in-time read of every counter and latency bound.
type Snapshot struct {
	OrdersReceived   uint64
	OrdersAccepted   uint64
	OrdersRejected   uint64
	ReportsPublished uint64
	FillsPublished   uint64
	PoolExhausted    uint64
	QueueFull        uint64
	LatencyMinNs     int64
	LatencyMaxNs     int64
	LatencyAvgNs     float64
}

// Snapshot reads the current values of every counter and latency bound.
func (c *Collector) Snapshot() Snapshot {
	count := c.latencyCount.Load()
	sum := c.latencySumNs.Load()
	min := c.latencyMinNs.Load()
	if min == math.MaxInt64 {
		min = 0
	}
	var avg float64
	if count > 0 {
		avg = float64(sum) / float64(count)
	}
	return Snapshot{
		OrdersReceived:   c.ordersReceived.Load(),
		OrdersAccepted:   c.ordersAccepted.Load(),
		OrdersRejected:   c.ordersRejected.Load(),
		ReportsPublished: c.reportsPublished.Load(),
		FillsPublished:   c.fillsPublished.Load(),
		PoolExhausted:    c.poolExhausted.Load(),
		QueueFull:        c.queueFull.Load(),
		LatencyMinNs:     min,
		LatencyMaxNs:     c.latencyMaxNs.Load(),
		LatencyAvgNs:     avg,
	}
}

// Run emits a Snapshot to the logger every interval until ctx is
// canceled. This is T_stats: periodic, no real-time priority.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := c.Snapshot()
			c.logger.Info("stats",
				"orders_received", s.OrdersReceived,
				"orders_accepted", s.OrdersAccepted,
				"orders_rejected", s.OrdersRejected,
				"reports_published", s.ReportsPublished,
				"fills_published", s.FillsPublished,
				"pool_exhausted", s.PoolExhausted,
				"queue_full", s.QueueFull,
				"latency_min_ns", s.LatencyMinNs,
				"latency_max_ns", s.LatencyMaxNs,
				"latency_avg_ns", s.LatencyAvgNs,
			)
		}
	}
}
