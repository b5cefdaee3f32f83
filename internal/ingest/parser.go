// Package ingest implements the order parser (C3): decoding a raw,
// self-describing JSON message into a pool-allocated domain.ExecutionOrder
// without ever throwing. Grounded on the teacher's WSFeed dispatch loop
// (internal/exchange/ws.go), which decodes inbound frames by a tolerant
// switch and never lets a single malformed message stop the read loop.
package ingest

import (
	"encoding/json"

	"github.com/latentspeed/tradingengine/internal/enginepool"
	"github.com/latentspeed/tradingengine/pkg/domain"
)

// Parser decodes raw ingress bytes into pool-allocated ExecutionOrder
// values. It never panics and never returns an error to its caller;
// failure is communicated by the boolean return plus the optional
// counters, mirroring §4.3's "the ingress loop never throws".
type Parser struct {
	pool            *enginepool.Pool[domain.ExecutionOrder]
	onParseError    func()
	onPoolExhausted func()
}

// NewParser builds a Parser backed by pool. onParseError and
// onPoolExhausted are optional hooks for the stats collector (C12); both
// may be nil.
func NewParser(pool *enginepool.Pool[domain.ExecutionOrder], onParseError, onPoolExhausted func()) *Parser {
	return &Parser{pool: pool, onParseError: onParseError, onPoolExhausted: onPoolExhausted}
}

// Parse decodes raw into a freshly acquired ExecutionOrder. ok is false on
// pool exhaustion or malformed JSON; in either case the caller has nothing
// to release. On success, the caller owns the returned order until it
// hands it to the lifecycle processor and must eventually call Release.
func (p *Parser) Parse(raw []byte) (order *domain.ExecutionOrder, ok bool) {
	order, acquired := p.pool.Acquire()
	if !acquired {
		if p.onPoolExhausted != nil {
			p.onPoolExhausted()
		}
		return nil, false
	}

	if err := json.Unmarshal(raw, order); err != nil {
		p.pool.Release(order, resetExecutionOrder)
		if p.onParseError != nil {
			p.onParseError()
		}
		return nil, false
	}

	return order, true
}

// Release returns order to the pool, zeroing it first so the next
// Acquire never observes stale field values from a prior message.
func (p *Parser) Release(order *domain.ExecutionOrder) {
	p.pool.Release(order, resetExecutionOrder)
}

func resetExecutionOrder(o *domain.ExecutionOrder) {
	*o = domain.ExecutionOrder{}
}
