package session

import (
	"sync"
	"time"

	"github.com/speedfriending/backend/internal/models"
)

// Entry is the identity bound to one live connection.
type Entry struct {
	ConnID       string      `json:"connId"`
	PlayerID     int64       `json:"playerId"`
	Role         models.Role `json:"role"`
	RegisteredAt time.Time   `json:"registeredAt"`
}

// Registry maps live connections to players. A player holds at most one
// connection; a connection holds at most one player.
type Registry struct {
	mu       sync.RWMutex
	byConn   map[string]*Entry
	byPlayer map[int64]string
	closed   bool
}

// NewRegistry creates an empty registry. Nothing survives a restart: clients
// re-register on reconnect.
func NewRegistry() *Registry {
	return &Registry{
		byConn:   make(map[string]*Entry),
		byPlayer: make(map[int64]string),
	}
}

// Register binds connID to the player. Re-registering a connection overwrites
// its previous identity. If the player was bound to another connection, that
// binding is dropped and its connection id is returned.
func (r *Registry) Register(connID string, playerID int64, role models.Role) (replaced string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ""
	}

	if prev, ok := r.byConn[connID]; ok && prev.PlayerID != playerID {
		delete(r.byPlayer, prev.PlayerID)
	}
	if old, ok := r.byPlayer[playerID]; ok && old != connID {
		delete(r.byConn, old)
		replaced = old
	}

	r.byConn[connID] = &Entry{
		ConnID:       connID,
		PlayerID:     playerID,
		Role:         role,
		RegisteredAt: time.Now(),
	}
	r.byPlayer[playerID] = connID
	return replaced
}

// Lookup returns the identity registered on connID.
func (r *Registry) Lookup(connID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byConn[connID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// ConnectionFor returns the connection the player is registered on.
func (r *Registry) ConnectionFor(playerID int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byPlayer[playerID]
	return c, ok
}

// Unregister removes connID and returns the entry that was bound to it.
func (r *Registry) Unregister(connID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byConn[connID]
	if !ok {
		return Entry{}, false
	}
	delete(r.byConn, connID)
	if r.byPlayer[e.PlayerID] == connID {
		delete(r.byPlayer, e.PlayerID)
	}
	return *e, true
}

// Entries returns a snapshot of every registration.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.byConn))
	for _, e := range r.byConn {
		out = append(out, *e)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// Close drops every registration and rejects further ones.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.byConn = make(map[string]*Entry)
	r.byPlayer = make(map[int64]string)
}
