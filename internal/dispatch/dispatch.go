// Package dispatch implements the action dispatcher (C4): a perfect hash
// over the closed three-token alphabet {place, cancel, replace} that
// selects a handler without a string-keyed map lookup on the hot path.
//
// Grounded on the teacher's enum-method pattern (pkg/types.TickSize):
// a small closed set gets a dedicated total function rather than a
// general-purpose parser.
package dispatch

import "github.com/latentspeed/tradingengine/pkg/domain"

// fnv1a32 computes the 32-bit FNV-1a hash of s.
func fnv1a32(s string) uint32 {
	const (
		offsetBasis = 2166136261
		prime       = 16777619
	)
	h := uint32(offsetBasis)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

// actionHashes holds the precomputed hash for each of the three known
// action tokens. Computed once at init() rather than per-dispatch.
var actionHashes = map[uint32]domain.Action{
	fnv1a32(string(domain.ActionPlace)):   domain.ActionPlace,
	fnv1a32(string(domain.ActionCancel)):  domain.ActionCancel,
	fnv1a32(string(domain.ActionReplace)): domain.ActionReplace,
}

// Classify maps a raw action token to its canonical domain.Action. ok is
// false for any token outside {place, cancel, replace}; collisions among
// the three known tokens are impossible by construction since the hash
// alphabet has only three members and was chosen to avoid them.
func Classify(raw string) (action domain.Action, ok bool) {
	action, ok = actionHashes[fnv1a32(raw)]
	if !ok {
		return "", false
	}
	// Guard against an accidental hash collision with an unrelated raw
	// token: confirm the canonical string actually matches.
	if string(action) != raw {
		return "", false
	}
	return action, true
}

// Handler processes one classified ExecutionOrder.
type Handler func(order *domain.ExecutionOrder)

// Dispatcher routes a classified action to a registered Handler.
type Dispatcher struct {
	handlers map[domain.Action]Handler
}

// NewDispatcher builds an empty dispatcher; handlers are registered once
// at startup via Register.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[domain.Action]Handler, 3)}
}

// Register installs h as the handler for action, overwriting any prior
// registration.
func (d *Dispatcher) Register(action domain.Action, h Handler) {
	d.handlers[action] = h
}

// Dispatch classifies order.Action and invokes its handler. ok is false
// when the raw action token is unrecognized; the caller (the lifecycle
// processor) is responsible for producing the invalid_params rejection.
func (d *Dispatcher) Dispatch(order *domain.ExecutionOrder) (ok bool) {
	action, known := Classify(string(order.Action))
	if !known {
		return false
	}
	h, registered := d.handlers[action]
	if !registered {
		return false
	}
	h(order)
	return true
}
