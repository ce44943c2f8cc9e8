package game

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/speedfriending/backend/internal/events"
	"github.com/speedfriending/backend/internal/models"
	"github.com/speedfriending/backend/internal/pubsub"
	"github.com/speedfriending/backend/internal/store"
)

// Broadcaster owns the global run state and fans game-wide events out on the bus.
type Broadcaster struct {
	mu    sync.RWMutex
	store store.StateStore
	bus   pubsub.Bus
	state models.GameState
}

// NewBroadcaster loads the persisted state. A missing row starts stopped at round 1.
func NewBroadcaster(ctx context.Context, st store.StateStore, bus pubsub.Bus) (*Broadcaster, error) {
	b := &Broadcaster{
		store: st,
		bus:   bus,
		state: models.GameState{Status: models.GameStopped, Round: 1},
	}
	gs, err := st.GetGameState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load game state: %w", err)
	}
	if gs != nil {
		b.state = *gs
	}
	log.Printf("[STATE] Loaded game state: status=%s round=%d", b.state.Status, b.state.Round)
	return b, nil
}

// State returns the cached run state.
func (b *Broadcaster) State() models.GameState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Running reports whether matching is allowed.
func (b *Broadcaster) Running() bool {
	return b.State().Status == models.GameRunning
}

// SetState persists the new state and announces it to every client. Nil
// arguments keep the current value.
func (b *Broadcaster) SetState(ctx context.Context, status *models.GameStatus, round *int, message string) (models.GameState, error) {
	b.mu.Lock()
	next := b.state
	if status != nil {
		next.Status = *status
	}
	if round != nil {
		next.Round = *round
	}
	if next.Round < 1 {
		b.mu.Unlock()
		return b.State(), fmt.Errorf("%w: round must be at least 1", ErrValidation)
	}

	saved, err := b.store.SaveGameState(ctx, next.Status, next.Round)
	if err != nil {
		b.mu.Unlock()
		return models.GameState{}, fmt.Errorf("save game state: %w", err)
	}
	b.state = *saved
	current := b.state
	b.mu.Unlock()

	log.Printf("[STATE] Game state set: status=%s round=%d", current.Status, current.Round)
	b.Publish(pubsub.Event{
		Type: events.TypeGameStatusChange,
		Payload: map[string]interface{}{
			"status":  current.Status,
			"round":   current.Round,
			"message": message,
		},
	})
	return current, nil
}

// Publish sends a game-wide event to every subscriber.
func (b *Broadcaster) Publish(ev pubsub.Event) {
	b.bus.Publish(ev)
}

func (b *Broadcaster) Subscribe() chan pubsub.Event {
	return b.bus.Subscribe()
}

func (b *Broadcaster) Unsubscribe(ch chan pubsub.Event) {
	b.bus.Unsubscribe(ch)
}
