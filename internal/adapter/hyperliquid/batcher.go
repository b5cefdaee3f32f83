// Grounded on spec.md §4.8's batcher description (two queues, cadence
// flush, per-item future, exponential backoff on rate-limit). Flush
// callbacks run under sourcegraph/conc's panics.Catcher so a bug in one
// venue-call path cannot take down the batcher's own background
// goroutine — the same panic-safety discipline the pack's tradSys
// example wires conc for (see DESIGN.md).
package hyperliquid

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"
)

// BatchResult is delivered on an item's future once its containing
// envelope has been sent and a venue response observed.
type BatchResult struct {
	ExchangeOrderID string
	Accepted        bool
	Err             error
}

// batchItem is one order queued for the next flush, carrying its own
// single-shot result channel (the "future" named in §4.8).
type batchItem struct {
	ClID   string
	Wire   OrderWire
	Result chan BatchResult
}

// SendFunc submits one flushed batch to the venue and resolves every
// item's Result channel before returning.
type SendFunc func(ctx context.Context, items []*batchItem)

// Queue selects which of the batcher's two queues an order belongs to.
type Queue int

const (
	// QueueFast holds IOC/GTC orders.
	QueueFast Queue = iota
	// QueueSlow holds ALO/post-only orders.
	QueueSlow
)

// Batcher groups queued orders into periodic signed envelopes.
type Batcher struct {
	fastMu    sync.Mutex
	fastQueue []*batchItem
	slowMu    sync.Mutex
	slowQueue []*batchItem

	cadence  time.Duration
	maxBatch int
	backoff  *Backoff
	send     SendFunc
	logger   *slog.Logger
}

// NewBatcher builds a Batcher. cadence is the flush interval, used as
// given (NewClient supplies the 100ms default); maxBatch bounds envelope
// size.
func NewBatcher(cadence time.Duration, maxBatch int, backoff *Backoff, send SendFunc, logger *slog.Logger) *Batcher {
	return &Batcher{cadence: cadence, maxBatch: maxBatch, backoff: backoff, send: send, logger: logger}
}

// Submit enqueues one order onto q and returns its future. The result
// arrives once the containing batch has been flushed and a venue
// response observed.
func (b *Batcher) Submit(q Queue, clID string, wire OrderWire) <-chan BatchResult {
	item := &batchItem{ClID: clID, Wire: wire, Result: make(chan BatchResult, 1)}
	switch q {
	case QueueSlow:
		b.slowMu.Lock()
		b.slowQueue = append(b.slowQueue, item)
		b.slowMu.Unlock()
	default:
		b.fastMu.Lock()
		b.fastQueue = append(b.fastQueue, item)
		b.fastMu.Unlock()
	}
	return item.Result
}

// Run drives the periodic flush until ctx is canceled. This is the
// batcher's background thread.
func (b *Batcher) Run(ctx context.Context) {
	ticker := time.NewTicker(b.cadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if b.backoff.Active() {
				continue
			}
			b.flushOne(ctx, &b.fastMu, &b.fastQueue)
			b.flushOne(ctx, &b.slowMu, &b.slowQueue)
		}
	}
}

func (b *Batcher) flushOne(ctx context.Context, mu *sync.Mutex, queue *[]*batchItem) {
	mu.Lock()
	if len(*queue) == 0 {
		mu.Unlock()
		return
	}
	n := len(*queue)
	if n > b.maxBatch {
		n = b.maxBatch
	}
	batch := (*queue)[:n]
	*queue = (*queue)[n:]
	mu.Unlock()

	var catcher panics.Catcher
	catcher.Try(func() { b.send(ctx, batch) })
	if recovered := catcher.Recovered(); recovered != nil {
		b.logger.Error("hyperliquid: batcher flush panicked", "err", recovered.AsError())
		for _, item := range batch {
			item.Result <- BatchResult{Err: recovered.AsError()}
		}
	}
}

// Depth reports the number of queued-but-unflushed items, for stats/tests.
func (b *Batcher) Depth() (fast, slow int) {
	b.fastMu.Lock()
	fast = len(b.fastQueue)
	b.fastMu.Unlock()
	b.slowMu.Lock()
	slow = len(b.slowQueue)
	b.slowMu.Unlock()
	return fast, slow
}
