// Grounded on the teacher's internal/exchange/ratelimit.go token bucket;
// adapted from Polymarket's per-category limits to Hyperliquid's single
// weighted-request budget, with an added exponential backoff window for
// explicit 429/rate-limit signals from the batcher (§4.8).
package hyperliquid

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a continuously-refilling token bucket rate limiter.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	lastTime time.Time
}

// NewTokenBucket creates a rate limiter with the given capacity and
// refill rate (tokens per second).
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is canceled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Backoff tracks an exponential backoff window entered on HTTP 429 or an
// explicit venue rate-limit signal. While active, the batcher sends no
// new envelopes; queued items wait for the window to close.
type Backoff struct {
	mu       sync.Mutex
	until    time.Time
	attempt  int
	baseWait time.Duration
	maxWait  time.Duration
}

// NewBackoff builds a Backoff with the given base and maximum window.
func NewBackoff(base, max time.Duration) *Backoff {
	return &Backoff{baseWait: base, maxWait: max}
}

// Trigger enters (or extends) the backoff window, doubling the wait each
// consecutive call.
func (b *Backoff) Trigger() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	wait := b.baseWait << b.attempt
	if wait > b.maxWait || wait <= 0 {
		wait = b.maxWait
	}
	b.attempt++
	b.until = time.Now().Add(wait)
	return wait
}

// Reset clears the backoff state after a successful send.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempt = 0
	b.until = time.Time{}
}

// Active reports whether the backoff window is still open.
func (b *Backoff) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Now().Before(b.until)
}

// Remaining reports how long until the backoff window closes.
func (b *Backoff) Remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := time.Until(b.until)
	if d < 0 {
		return 0
	}
	return d
}
