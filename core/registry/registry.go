// Package registry tracks live client connections. It owns the mapping
// from user ids and roles to connections and nothing else: transports
// create and destroy connections, the router reads them.
package registry

import (
	"sync"

	"github.com/aidline/aidline/core/model"
)

// Conn is a live client connection. The transport behind Send is opaque to
// the dispatch core; delivery is best-effort and a failed Send is not an
// error at this layer.
type Conn interface {
	ID() string
	Identity() model.Identity
	Send(event string, payload any) error
}

// Registry is the in-memory connection index. State is rebuilt from zero on
// process restart; clients re-handshake. A user may hold several
// connections at once (multi-device).
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]Conn
	byUser  map[string]map[string]Conn
	byRole  map[model.Role]map[string]Conn
	onCount func(int)
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byID:   make(map[string]Conn),
		byUser: make(map[string]map[string]Conn),
		byRole: make(map[model.Role]map[string]Conn),
	}
}

// OnCountChange installs a callback invoked with the live connection count
// after every register/unregister. Used to feed the connections gauge.
func (r *Registry) OnCountChange(f func(int)) {
	r.mu.Lock()
	r.onCount = f
	r.mu.Unlock()
}

// Register adds the connection to the per-user and per-role indexes.
// Identity validation happens upstream; Register never fails.
func (r *Registry) Register(c Conn) {
	id := c.Identity()
	r.mu.Lock()
	r.byID[c.ID()] = c
	if r.byUser[id.UserID] == nil {
		r.byUser[id.UserID] = make(map[string]Conn)
	}
	r.byUser[id.UserID][c.ID()] = c
	if r.byRole[id.Role] == nil {
		r.byRole[id.Role] = make(map[string]Conn)
	}
	r.byRole[id.Role][c.ID()] = c
	n, f := len(r.byID), r.onCount
	r.mu.Unlock()
	if f != nil {
		f(n)
	}
}

// Unregister removes the connection from all indexes. It is idempotent and
// a no-op for unknown ids.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	c, ok := r.byID[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byID, connID)
	id := c.Identity()
	if m := r.byUser[id.UserID]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(r.byUser, id.UserID)
		}
	}
	if m := r.byRole[id.Role]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(r.byRole, id.Role)
		}
	}
	n, f := len(r.byID), r.onCount
	r.mu.Unlock()
	if f != nil {
		f(n)
	}
}

// Conn returns the connection registered under connID.
func (r *Registry) Conn(connID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[connID]
	return c, ok
}

// ConnsForUser returns the live connections of one user. Never nil-panics;
// unknown users yield an empty slice.
func (r *Registry) ConnsForUser(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return collect(r.byUser[userID])
}

// ConnsForRole returns the live connections registered under a role.
func (r *Registry) ConnsForRole(role model.Role) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return collect(r.byRole[role])
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func collect(m map[string]Conn) []Conn {
	out := make([]Conn, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}
