// Package realtime holds the live connection registry, the event dispatcher
// that fans domain events out to matching connections, and the websocket
// transport feeding both.
package realtime

import (
	"errors"
	"sync"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	"github.com/aussiebroadwan/vouchercheck/pkg/idx"
)

// ErrUnknownConnection is returned by Identify once the entry is gone.
var ErrUnknownConnection = errors.New("realtime: unknown connection")

// ConnID identifies one registry entry.
type ConnID string

// Conn is the outbound half of a live transport connection.
type Conn interface {
	// Send queues a frame without blocking. It returns false when the
	// frame cannot be accepted (queue full or connection closed).
	Send(frame []byte) bool

	// Close tears down the transport. Safe to call more than once.
	Close() error
}

// Connection is a point-in-time view of a registry entry. Identity is nil
// until the connection identifies.
type Connection struct {
	ID       ConnID
	Conn     Conn
	Identity *domain.Identity
}

// Registry tracks every live connection and the identity bound to it. One
// mutex guards every read and write; it is never held across I/O.
type Registry struct {
	mu    sync.Mutex
	conns map[ConnID]*Connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[ConnID]*Connection)}
}

// Register adds an unidentified entry for c.
func (r *Registry) Register(c Conn) ConnID {
	id := ConnID(idx.New().String())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &Connection{ID: id, Conn: c}
	return id
}

// Identify binds identity to the entry. A later call overwrites an earlier
// one.
func (r *Registry) Identify(id ConnID, identity domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	c.Identity = &identity
	return nil
}

// Unregister removes the entry and reports whether it was still present.
// Safe for unidentified and already-removed entries.
func (r *Registry) Unregister(id ConnID) bool {
	_, ok := r.remove(id)
	return ok
}

func (r *Registry) remove(id ConnID) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	delete(r.conns, id)
	return c.Conn, true
}

// drain empties the registry and returns every handle it held.
func (r *Registry) drain() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Conn, 0, len(r.conns))
	for id, c := range r.conns {
		out = append(out, c.Conn)
		delete(r.conns, id)
	}
	return out
}

// Snapshot returns a consistent copy of every entry. Identities are copied
// so callers never observe a later Identify.
func (r *Registry) Snapshot() []Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Connection, 0, len(r.conns))
	for _, c := range r.conns {
		cp := *c
		if c.Identity != nil {
			ident := *c.Identity
			cp.Identity = &ident
		}
		out = append(out, cp)
	}
	return out
}

// Size returns the number of live entries.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
