// Package publish implements the publisher (C11): it drains the SPSC
// queue fed by the lifecycle processor and emits each report/fill as a
// NATS subject-plus-JSON-body message.
//
// The reference egress transport is a two-frame PUB-style message
// (topic frame, JSON payload frame); no ZeroMQ client exists anywhere in
// the retrieval pack, so this is built on nats-io/nats.go core pub/sub,
// grounded on the message-broker wiring present in the tradSys example
// (see DESIGN.md). A NATS subject carries the topic out-of-band, so the
// two-frame structure collapses to subject+body with no semantic loss.
package publish

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/latentspeed/tradingengine/internal/enginepool"
	"github.com/latentspeed/tradingengine/internal/stats"
	"github.com/latentspeed/tradingengine/pkg/domain"
)

const (
	// SubjectReport is the NATS subject for ExecutionReport egress.
	SubjectReport = "exec.report"
	// SubjectFill is the NATS subject for Fill egress.
	SubjectFill = "exec.fill"
)

// Envelope is one pool-allocated publish-queue entry: exactly one of
// Report or Fill is populated, selected by Topic.
type Envelope struct {
	Topic  string
	Report *domain.ExecutionReport
	Fill   *domain.Fill
}

// SleepProfile selects the publisher's adaptive idle sleep per §4.11.
type SleepProfile int

const (
	ProfileHighPerf SleepProfile = iota
	ProfileNormal
	ProfileEco
)

func (p SleepProfile) sleepDuration() time.Duration {
	switch p {
	case ProfileHighPerf:
		return 0
	case ProfileEco:
		return 100 * time.Microsecond
	default:
		return 10 * time.Microsecond
	}
}

// Publisher drains Queue and publishes to nc. Only one goroutine may call
// Run; it is the SPSC queue's sole consumer.
type Publisher struct {
	nc           *nats.Conn
	queue        *enginepool.SPSCQueue[*Envelope]
	envelopePool *enginepool.Pool[Envelope]
	reportPool   *enginepool.Pool[domain.ExecutionReport]
	fillPool     *enginepool.Pool[domain.Fill]
	stats        *stats.Collector
	sleep        time.Duration
	logger       *slog.Logger
	// pushMu serializes Push calls from T_ingress and adapter callback
	// goroutines, so the ring sees one producer at a time.
	pushMu sync.Mutex
}

// Config bundles the pools and queue a Publisher shares with its producer
// (the lifecycle processor), plus the NATS connection and sleep profile.
type Config struct {
	Conn         *nats.Conn
	Queue        *enginepool.SPSCQueue[*Envelope]
	EnvelopePool *enginepool.Pool[Envelope]
	ReportPool   *enginepool.Pool[domain.ExecutionReport]
	FillPool     *enginepool.Pool[domain.Fill]
	Stats        *stats.Collector
	Profile      SleepProfile
	Logger       *slog.Logger
}

// New builds a Publisher from cfg.
func New(cfg Config) *Publisher {
	return &Publisher{
		nc:           cfg.Conn,
		queue:        cfg.Queue,
		envelopePool: cfg.EnvelopePool,
		reportPool:   cfg.ReportPool,
		fillPool:     cfg.FillPool,
		stats:        cfg.Stats,
		sleep:        cfg.Profile.sleepDuration(),
		logger:       cfg.Logger,
	}
}

// EnqueueReport pushes report onto the publish queue under SubjectReport.
// It returns false, without blocking, if the queue is full; the caller
// is responsible for releasing report back to its pool in that case and
// incrementing queue_full.
func (p *Publisher) EnqueueReport(report *domain.ExecutionReport) bool {
	env, ok := p.envelopePool.Acquire()
	if !ok {
		return false
	}
	env.Topic = SubjectReport
	env.Report = report
	env.Fill = nil
	p.pushMu.Lock()
	pushed := p.queue.Push(env)
	p.pushMu.Unlock()
	if !pushed {
		p.envelopePool.Release(env, resetEnvelope)
		return false
	}
	return true
}

// EnqueueFill pushes fill onto the publish queue under SubjectFill.
func (p *Publisher) EnqueueFill(fill *domain.Fill) bool {
	env, ok := p.envelopePool.Acquire()
	if !ok {
		return false
	}
	env.Topic = SubjectFill
	env.Fill = fill
	env.Report = nil
	p.pushMu.Lock()
	pushed := p.queue.Push(env)
	p.pushMu.Unlock()
	if !pushed {
		p.envelopePool.Release(env, resetEnvelope)
		return false
	}
	return true
}

// Dequeue removes and returns one envelope without publishing it. Used
// by tests; callers must not mix this with a running Run, since the
// queue is single-consumer.
func (p *Publisher) Dequeue() (*Envelope, bool) {
	return p.queue.Pop()
}

// QueueLen reports the number of envelopes still waiting to be
// published. Safe to call while Run is draining the queue from another
// goroutine; used by shutdown to poll for drain completion without
// contending for the queue's single-consumer slot.
func (p *Publisher) QueueLen() int {
	return p.queue.Len()
}

// Run drains the queue until ctx is canceled. This is T_publish: on an
// empty queue it sleeps for the configured adaptive interval rather than
// spinning or blocking on a channel receive.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		env, ok := p.queue.Pop()
		if !ok {
			if p.sleep > 0 {
				time.Sleep(p.sleep)
			}
			continue
		}

		p.publishOne(env)
	}
}

func (p *Publisher) publishOne(env *Envelope) {
	defer p.envelopePool.Release(env, resetEnvelope)

	switch env.Topic {
	case SubjectReport:
		defer p.reportPool.Release(env.Report, resetReport)
		payload, err := json.Marshal(env.Report)
		if err != nil {
			p.logger.Warn("marshal report failed", "cl_id", env.Report.ClID, "err", err)
			return
		}
		if err := p.nc.Publish(SubjectReport, payload); err != nil {
			p.logger.Warn("publish report failed", "cl_id", env.Report.ClID, "err", err)
			return
		}
		p.stats.IncReportsPublished()

	case SubjectFill:
		defer p.fillPool.Release(env.Fill, resetFill)
		payload, err := json.Marshal(env.Fill)
		if err != nil {
			p.logger.Warn("marshal fill failed", "cl_id", env.Fill.ClID, "err", err)
			return
		}
		if err := p.nc.Publish(SubjectFill, payload); err != nil {
			p.logger.Warn("publish fill failed", "cl_id", env.Fill.ClID, "err", err)
			return
		}
		p.stats.IncFillsPublished()
	}
}

func resetEnvelope(e *Envelope) { *e = Envelope{} }
func resetReport(r *domain.ExecutionReport) { *r = domain.ExecutionReport{} }
func resetFill(f *domain.Fill) { *f = domain.Fill{} }
