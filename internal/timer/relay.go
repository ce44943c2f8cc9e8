package timer

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrUnknownPairing = errors.New("unknown pairing")
	ErrNotMember      = errors.New("not a member of this pairing")
)

type room struct {
	players  map[int64]bool    // participants allowed to join, true once finished
	members  map[string]int64  // connection id -> player id
	mirror   *Machine
	syncedAt time.Time
	touched  time.Time
}

// Relay is the server half of the protocol. It scopes controls to pairing
// rooms and forwards them to the other members; it never ticks.
type Relay struct {
	mu       sync.Mutex
	rooms    map[string]*room
	duration int
	now      func() time.Time
}

// NewRelay creates a relay whose rooms start at duration seconds.
func NewRelay(duration int) *Relay {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Relay{
		rooms:    make(map[string]*room),
		duration: duration,
		now:      time.Now,
	}
}

// Open creates the room for a pairing. Opening an existing room is a no-op.
func (r *Relay) Open(pairingID string, players ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[pairingID]; ok {
		return
	}
	rm := &room{
		players: make(map[int64]bool, len(players)),
		members: make(map[string]int64, len(players)),
		mirror:  NewMachine("", pairingID, r.duration),
		touched: r.now(),
	}
	for _, p := range players {
		rm.players[p] = false
	}
	r.rooms[pairingID] = rm
}

// Join attaches a connection to the room on behalf of one of its players.
// Rejoining from a new connection replaces the player's old connection.
func (r *Relay) Join(pairingID, connID string, playerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[pairingID]
	if !ok {
		return ErrUnknownPairing
	}
	if _, ok := rm.players[playerID]; !ok {
		return ErrNotMember
	}
	for c, p := range rm.members {
		if p == playerID && c != connID {
			delete(rm.members, c)
		}
	}
	rm.members[connID] = playerID
	rm.touched = r.now()
	return nil
}

// Leave detaches a connection from one room.
func (r *Relay) Leave(pairingID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.rooms[pairingID]; ok {
		delete(rm.members, connID)
	}
}

// LeaveConnection detaches a connection from every room and returns the
// pairings it was in.
func (r *Relay) LeaveConnection(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var left []string
	for id, rm := range r.rooms {
		if _, ok := rm.members[connID]; ok {
			delete(rm.members, connID)
			left = append(left, id)
		}
	}
	return left
}

// Forward stamps a control from connID and returns the connections it must be
// delivered to: every other member of the room, never the sender.
func (r *Relay) Forward(connID string, c Control) ([]string, Control, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[c.PairingID]
	if !ok {
		return nil, c, ErrUnknownPairing
	}
	if _, ok := rm.members[connID]; !ok {
		return nil, c, ErrNotMember
	}

	now := r.now()
	c.SenderID = connID
	c.Timestamp = now.UnixMilli()

	if rm.mirror.Apply(c) == Applied {
		rm.syncedAt = now
	}
	rm.touched = now

	targets := make([]string, 0, len(rm.members))
	for m := range rm.members {
		if m != connID {
			targets = append(targets, m)
		}
	}
	return targets, c, nil
}

// Snapshot returns the last known value of the room's countdown as a control a
// reconnecting client can apply directly. While running, the value is
// extrapolated from the last relayed control.
func (r *Relay) Snapshot(pairingID string) (Control, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[pairingID]
	if !ok {
		return Control{}, ErrUnknownPairing
	}
	state, left := rm.mirror.snapshot()
	now := r.now()

	c := Control{PairingID: pairingID, TimeLeft: left, Timestamp: now.UnixMilli()}
	switch state {
	case StateRunning:
		c.Action = ActionStart
		if !rm.syncedAt.IsZero() {
			c.TimeLeft -= int(now.Sub(rm.syncedAt) / time.Second)
		}
		if c.TimeLeft < 0 {
			c.TimeLeft = 0
		}
	case StatePaused:
		c.Action = ActionPause
	case StateExpired:
		c.Action = ActionTimeout
	default:
		c.Action = ActionSync
	}
	return c, nil
}

// Finish records that a player is done with the pairing and removes the room
// once every player is. It reports whether the room was removed.
func (r *Relay) Finish(pairingID string, playerID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[pairingID]
	if !ok {
		return false
	}
	if _, ok := rm.players[playerID]; !ok {
		return false
	}
	rm.players[playerID] = true
	for c, p := range rm.members {
		if p == playerID {
			delete(rm.members, c)
		}
	}
	for _, done := range rm.players {
		if !done {
			return false
		}
	}
	delete(r.rooms, pairingID)
	return true
}

// Members returns the connections currently in the room.
func (r *Relay) Members(pairingID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[pairingID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(rm.members))
	for c := range rm.members {
		out = append(out, c)
	}
	return out
}

// Prune removes rooms with no members that have been idle longer than maxIdle.
func (r *Relay) Prune(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-maxIdle)
	n := 0
	for id, rm := range r.rooms {
		if len(rm.members) == 0 && rm.touched.Before(cutoff) {
			delete(r.rooms, id)
			n++
		}
	}
	return n
}

func (r *Relay) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
