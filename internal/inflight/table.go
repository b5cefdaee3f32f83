// Package inflight implements the in-flight order table (C6): the
// lifecycle processor's belief about every order currently resting at a
// venue, indexed for O(1) lookup by client_order_id and by the venue's
// own (venue, exchange_order_id) pair.
//
// Grounded on the teacher's internal/engine.Engine, which guards its
// slots and tokenMap behind a single sync.Mutex held only for the
// structural map operation, moving values out before any longer work.
package inflight

import (
	"sync"

	"github.com/latentspeed/tradingengine/pkg/domain"
)

type exchangeKey struct {
	venue           string
	exchangeOrderID string
}

// Table is the dual-indexed in-flight order table. Get/GetByExchangeID
// return a value copy taken under the lock; mutating a tracked order
// goes exclusively through Update, which applies a caller-supplied
// function to the live record while the lock is held and hands back a
// fresh copy. Insert keeps the caller's pointer itself as the live
// record, so writes through that pointer after Insert bypass the lock;
// every other access hands out copies, so a synchronous replace and an
// async adapter update that both go through Update for the same cl_id
// can't tear each other's writes, per the no-shared-mutation policy in §3.
type Table struct {
	mu        sync.Mutex
	byClID    map[string]*domain.InFlightOrder
	byVenueID map[exchangeKey]*domain.InFlightOrder
}

// New builds an empty Table.
func New() *Table {
	return &Table{
		byClID:    make(map[string]*domain.InFlightOrder),
		byVenueID: make(map[exchangeKey]*domain.InFlightOrder),
	}
}

// Insert adds order to the primary index, keyed by its ClientOrderID.
// If order already has an ExchangeOrderID (e.g. a synchronous venue ack
// returned one immediately), it is also indexed secondarily.
func (t *Table) Insert(order *domain.InFlightOrder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byClID[order.ClientOrderID] = order
	if order.ExchangeOrderID != "" {
		t.byVenueID[exchangeKey{order.Venue, order.ExchangeOrderID}] = order
	}
}

// Get returns a copy of the in-flight order for clID, if any.
func (t *Table) Get(clID string) (domain.InFlightOrder, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.byClID[clID]
	if !ok {
		return domain.InFlightOrder{}, false
	}
	return *o, true
}

// GetByExchangeID returns a copy of the in-flight order known by the
// venue's own order id, if any.
func (t *Table) GetByExchangeID(venue, exchangeOrderID string) (domain.InFlightOrder, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.byVenueID[exchangeKey{venue, exchangeOrderID}]
	if !ok {
		return domain.InFlightOrder{}, false
	}
	return *o, true
}

// Update applies fn to the live order for clID while holding the table
// lock, then returns a copy of its state afterward. ok is false and fn
// is not called if clID is not tracked.
func (t *Table) Update(clID string, fn func(*domain.InFlightOrder)) (domain.InFlightOrder, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.byClID[clID]
	if !ok {
		return domain.InFlightOrder{}, false
	}
	fn(o)
	return *o, true
}

// BindExchangeID populates the secondary index for an order already
// present in the primary index, once its exchange_order_id becomes known
// (on first synchronous ack or first async update). ok is false if clID
// is not present.
func (t *Table) BindExchangeID(clID, venue, exchangeOrderID string) (ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, found := t.byClID[clID]
	if !found {
		return false
	}
	o.ExchangeOrderID = exchangeOrderID
	t.byVenueID[exchangeKey{venue, exchangeOrderID}] = o
	return true
}

// Remove deletes the order for clID from both indexes.
func (t *Table) Remove(clID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.byClID[clID]
	if !ok {
		return
	}
	delete(t.byClID, clID)
	if o.ExchangeOrderID != "" {
		delete(t.byVenueID, exchangeKey{o.Venue, o.ExchangeOrderID})
	}
}

// Len reports the number of in-flight orders currently tracked.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byClID)
}
