package arena

import "sync"

// Registry is the connection index: it maps a connection id to the code of
// the room it is currently bound to, giving O(1) room resolution for
// update, shot, and disconnect handling without scanning rooms.
// Safe for concurrent use.
//
// Invariant: a connection id has at most one binding.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]string // connID → room code
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]string)}
}

// Bind records connID as belonging to roomCode, replacing any prior binding.
func (g *Registry) Bind(connID, roomCode string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bindings[connID] = roomCode
}

// Unbind removes connID's binding. No-op when connID is unbound.
func (g *Registry) Unbind(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.bindings, connID)
}

// Lookup returns the room code connID is bound to.
func (g *Registry) Lookup(connID string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	code, ok := g.bindings[connID]
	return code, ok
}

// Len returns the number of bound connections.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.bindings)
}
