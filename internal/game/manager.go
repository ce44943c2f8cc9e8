package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/speedfriending/backend/internal/events"
	"github.com/speedfriending/backend/internal/models"
	"github.com/speedfriending/backend/internal/pubsub"
	"github.com/speedfriending/backend/internal/session"
	"github.com/speedfriending/backend/internal/store"
	"github.com/speedfriending/backend/internal/timer"
)

var (
	// ErrValidation marks a request rejected for missing or malformed fields.
	ErrValidation = errors.New("validation failed")
	// ErrNotRegistered is returned for connection-scoped operations before register_player.
	ErrNotRegistered = errors.New("connection not registered")
)

// Notifier delivers messages to live connections. The websocket hub implements it.
type Notifier interface {
	SendToConnection(connID string, message interface{}) bool
	Connected(connID string) bool
}

type nopNotifier struct{}

func (nopNotifier) SendToConnection(string, interface{}) bool { return false }
func (nopNotifier) Connected(string) bool                     { return false }

// Options tunes the engine.
type Options struct {
	TimerDuration  int // seconds per conversation
	SyncInterval   int // running seconds between client sync emissions
	ResyncAttempts int // timer_resync burst size after a reconnect
	Rand           *rand.Rand
}

// Manager is the matching and round coordination engine. One instance is
// created at startup and shared by the websocket hub and the HTTP API.
type Manager struct {
	store    store.Store
	registry *session.Registry
	guard    Guard
	relay    *timer.Relay
	state    *Broadcaster
	opts     Options

	mu       sync.RWMutex
	notifier Notifier

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewManager wires the engine. The notifier is attached later with SetNotifier
// because the hub needs the manager first.
func NewManager(st store.Store, reg *session.Registry, guard Guard, relay *timer.Relay, state *Broadcaster, opts Options) *Manager {
	if opts.TimerDuration <= 0 {
		opts.TimerDuration = timer.DefaultDuration
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = timer.DefaultSyncEvery
	}
	if opts.ResyncAttempts <= 0 {
		opts.ResyncAttempts = timer.DefaultResyncAttempts
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Manager{
		store:    st,
		registry: reg,
		guard:    guard,
		relay:    relay,
		state:    state,
		opts:     opts,
		notifier: nopNotifier{},
		rng:      rng,
	}
}

func (m *Manager) SetNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n == nil {
		n = nopNotifier{}
	}
	m.notifier = n
}

func (m *Manager) notify() Notifier {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.notifier
}

func (m *Manager) Registry() *session.Registry { return m.registry }
func (m *Manager) Relay() *timer.Relay         { return m.relay }
func (m *Manager) Guard() Guard                { return m.guard }
func (m *Manager) State() *Broadcaster         { return m.state }

func (m *Manager) intn(n int) int {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Intn(n)
}

func (m *Manager) shuffle(n int, swap func(i, j int)) {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	m.rng.Shuffle(n, swap)
}

// RegisterPlayer creates a participant in the current round.
func (m *Manager) RegisterPlayer(ctx context.Context, name string, role models.Role) (*models.Player, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: role must be stationary or moving", ErrValidation)
	}
	name = strings.TrimSpace(name)
	p, err := m.store.CreatePlayer(ctx, name, role, m.state.State().Round)
	if err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}
	log.Printf("[MATCH] Player %d registered (role=%s)", p.ID, p.Role)
	return p, nil
}

// Register binds a live connection to an existing player. The stored role is
// authoritative; a different non-empty role is rejected.
func (m *Manager) Register(ctx context.Context, connID string, playerID int64, role models.Role) (*events.Registered, error) {
	if playerID <= 0 {
		return nil, fmt.Errorf("%w: playerId is required", ErrValidation)
	}
	if role != "" && !role.Valid() {
		return nil, fmt.Errorf("%w: role must be stationary or moving", ErrValidation)
	}
	p, err := m.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if role != "" && role != p.Role {
		return nil, fmt.Errorf("%w: player %d is registered as %s", ErrValidation, p.ID, p.Role)
	}

	if replaced := m.registry.Register(connID, p.ID, p.Role); replaced != "" {
		log.Printf("[WS] Player %d moved from connection %s to %s", p.ID, replaced, connID)
		m.relay.LeaveConnection(replaced)
	}
	log.Printf("[WS] Connection %s registered as player %d (%s)", connID, p.ID, p.Role)

	return &events.Registered{
		Type:           events.TypeRegistered,
		ConnID:         connID,
		PlayerID:       p.ID,
		Role:           p.Role,
		Status:         p.Status,
		Game:           m.state.State(),
		SyncInterval:   m.opts.SyncInterval,
		ResyncAttempts: m.opts.ResyncAttempts,
	}, nil
}

// HandleDisconnect releases everything held for the connection's player: the
// match guard, its availability and its pairing room memberships.
func (m *Manager) HandleDisconnect(ctx context.Context, connID string) {
	m.relay.LeaveConnection(connID)

	entry, ok := m.registry.Unregister(connID)
	if !ok {
		return
	}
	if err := m.guard.Release(ctx, entry.PlayerID); err != nil {
		log.Printf("[MATCH] Failed to release guard for player %d: %v", entry.PlayerID, err)
	}
	if err := m.store.SetPlayerStatus(ctx, entry.PlayerID, models.StatusAvailable); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("[MATCH] Failed to reset availability for player %d: %v", entry.PlayerID, err)
	}
	log.Printf("[WS] Connection %s closed; player %d released", connID, entry.PlayerID)
	m.announceAvailable(entry.PlayerID, entry.Role)
}

func (m *Manager) announceAvailable(playerID int64, role models.Role) {
	m.state.Publish(pubsub.Event{
		Type: events.TypePlayerAvailable,
		Payload: map[string]interface{}{
			"playerId": playerID,
			"role":     role,
		},
	})
}

// GameState returns the current run state.
func (m *Manager) GameState() models.GameState {
	return m.state.State()
}

// StartGame sets the game running. A positive round also moves the game to that
// round, which resets every player's availability.
func (m *Manager) StartGame(ctx context.Context, round int) (models.GameState, error) {
	if round < 0 {
		return m.GameState(), fmt.Errorf("%w: round must be positive", ErrValidation)
	}
	status := models.GameRunning
	var roundPtr *int
	if round > 0 && round != m.GameState().Round {
		if err := m.store.ResetAllPlayers(ctx, round); err != nil {
			return m.GameState(), fmt.Errorf("reset players: %w", err)
		}
		roundPtr = &round
	}
	target := round
	if target == 0 {
		target = m.GameState().Round
	}
	return m.state.SetState(ctx, &status, roundPtr, fmt.Sprintf("Game started! Round %d is underway", target))
}

// StopGame pauses matching. Pairings in progress are left to finish.
func (m *Manager) StopGame(ctx context.Context) (models.GameState, error) {
	status := models.GameStopped
	return m.state.SetState(ctx, &status, nil, "Game paused by the host")
}

// NextRound advances the round by one and makes every player available again.
func (m *Manager) NextRound(ctx context.Context) (models.GameState, error) {
	next := m.GameState().Round + 1
	if err := m.store.ResetAllPlayers(ctx, next); err != nil {
		return m.GameState(), fmt.Errorf("reset players: %w", err)
	}
	return m.state.SetState(ctx, nil, &next, fmt.Sprintf("Round %d has begun! Wrap up and find a new partner", next))
}

// ResetRound returns the game to round 1 and makes every player available again.
func (m *Manager) ResetRound(ctx context.Context) (models.GameState, error) {
	first := 1
	if err := m.store.ResetAllPlayers(ctx, first); err != nil {
		return m.GameState(), fmt.Errorf("reset players: %w", err)
	}
	return m.state.SetState(ctx, nil, &first, "Game reset to round 1")
}

func (m *Manager) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	return m.store.GetPlayer(ctx, id)
}

func (m *Manager) ListPlayers(ctx context.Context) ([]models.Player, error) {
	return m.store.ListPlayers(ctx)
}

// DeletePlayer removes a player and drops any live registration.
func (m *Manager) DeletePlayer(ctx context.Context, id int64) error {
	if err := m.store.DeletePlayer(ctx, id); err != nil {
		return err
	}
	if conn, ok := m.registry.ConnectionFor(id); ok {
		m.registry.Unregister(conn)
		m.relay.LeaveConnection(conn)
	}
	if err := m.guard.Release(ctx, id); err != nil {
		log.Printf("[MATCH] Failed to release guard for player %d: %v", id, err)
	}
	log.Printf("[ADMIN] Player %d deleted", id)
	return nil
}

func (m *Manager) ListMatches(ctx context.Context, round int) ([]models.Match, error) {
	if round <= 0 {
		round = m.GameState().Round
	}
	return m.store.ListMatches(ctx, round)
}
