// Grounded on the Hyperliquid SDK's Cloid type (other_examples
// dwdwow-hl-go types.go: "Cloid represents a client order ID (16 bytes
// hex string)"). The venue requires a 128-bit hex client id; this repo's
// own `cl_id` is an arbitrary UTF-8 string, so the adapter maintains the
// bidirectional mapping spec.md §4.8 calls for.
package hyperliquid

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Role attributes a cloid to a bracket-order leg for fill attribution.
type Role string

const (
	RoleTakeProfit Role = "tp"
	RoleStopLoss   Role = "sl"
)

// CloidRegistry maintains the bidirectional cloid <-> cl_id mapping and
// the cloid -> Role map for bracket orders.
type CloidRegistry struct {
	mu        sync.Mutex
	toClID    map[string]string
	toCloid   map[string]string
	roles     map[string]Role
}

// NewCloidRegistry builds an empty registry.
func NewCloidRegistry() *CloidRegistry {
	return &CloidRegistry{
		toClID:  make(map[string]string),
		toCloid: make(map[string]string),
		roles:   make(map[string]Role),
	}
}

// CloidFor derives a deterministic 128-bit hex cloid from clID and
// registers the mapping. Calling it again for the same clID returns the
// same cloid, since the derivation is a pure hash, not a counter.
func (r *CloidRegistry) CloidFor(clID string) string {
	sum := sha256.Sum256([]byte(clID))
	cloid := "0x" + hex.EncodeToString(sum[:16])

	r.mu.Lock()
	defer r.mu.Unlock()
	r.toClID[cloid] = clID
	r.toCloid[clID] = cloid
	return cloid
}

// ClIDForCloid resolves a venue cloid back to the original cl_id, for
// translating cancels addressed by cloid.
func (r *CloidRegistry) ClIDForCloid(cloid string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clID, ok := r.toClID[cloid]
	return clID, ok
}

// CloidForClID resolves the cloid previously derived for clID, if any.
func (r *CloidRegistry) CloidForClID(clID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloid, ok := r.toCloid[clID]
	return cloid, ok
}

// SetRole records a bracket-order role for cloid.
func (r *CloidRegistry) SetRole(cloid string, role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[cloid] = role
}

// RoleFor returns the bracket-order role recorded for cloid, if any.
func (r *CloidRegistry) RoleFor(cloid string) (Role, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[cloid]
	return role, ok
}

// Forget removes every mapping associated with clID, called once its
// in-flight entry is pruned.
func (r *CloidRegistry) Forget(clID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloid, ok := r.toCloid[clID]
	if !ok {
		return
	}
	delete(r.toCloid, clID)
	delete(r.toClID, cloid)
	delete(r.roles, cloid)
}
