// Package router implements the venue router (C5): an O(1) expected-time
// mapping from a lowercased venue name to an exchange adapter, populated
// once at startup.
//
// Grounded on the teacher's internal/engine.Engine, which builds its
// tokenMap once during startup and thereafter only reads it.
package router

import (
	"strings"
	"sync"

	"github.com/latentspeed/tradingengine/internal/adapter"
)

// Router maps a lowercased venue name to its adapter instance.
type Router struct {
	mu       sync.RWMutex
	adapters map[string]adapter.Adapter
}

// New builds an empty Router; adapters are registered once at startup
// via Register.
func New() *Router {
	return &Router{adapters: make(map[string]adapter.Adapter)}
}

// Register installs a as the adapter for venue, case-insensitively.
func (r *Router) Register(venue string, a adapter.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[strings.ToLower(venue)] = a
}

// Resolve looks up the adapter for venue. ok is false when no adapter is
// registered for it; the caller produces an invalid_params rejection
// naming the venue.
func (r *Router) Resolve(venue string) (a adapter.Adapter, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok = r.adapters[strings.ToLower(venue)]
	return a, ok
}
