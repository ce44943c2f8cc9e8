package game

import (
	"fmt"
	"log"

	"github.com/speedfriending/backend/internal/events"
	"github.com/speedfriending/backend/internal/timer"
)

// TimerControl relays a timer action from connID to the other member of its
// pairing room. The server does not interpret the countdown beyond mirroring it.
func (m *Manager) TimerControl(connID string, data events.TimerControlData) (int, error) {
	entry, ok := m.registry.Lookup(connID)
	if !ok {
		return 0, ErrNotRegistered
	}
	if data.PairingID == "" {
		return 0, fmt.Errorf("%w: pairingId is required", ErrValidation)
	}
	if !data.Action.Valid() {
		return 0, fmt.Errorf("%w: unknown timer action %q", ErrValidation, data.Action)
	}

	// Joining is idempotent and lets a reconnected client back into its room.
	if err := m.relay.Join(data.PairingID, connID, entry.PlayerID); err != nil {
		return 0, err
	}

	targets, ctl, err := m.relay.Forward(connID, timer.Control{
		PairingID: data.PairingID,
		Action:    data.Action,
		TimeLeft:  data.TimeLeft,
	})
	if err != nil {
		return 0, err
	}

	n := m.notify()
	delivered := 0
	msg := events.TimerUpdate{Type: events.TypeTimerUpdate, Control: ctl}
	for _, target := range targets {
		if n.SendToConnection(target, msg) {
			delivered++
		}
	}
	if ctl.Action != timer.ActionSync {
		log.Printf("[TIMER] %s from player %d in %s (timeLeft=%d delivered=%d)", ctl.Action, entry.PlayerID, ctl.PairingID, ctl.TimeLeft, delivered)
	}
	return delivered, nil
}

// TimerResync answers a reconnecting client with the last known countdown value.
func (m *Manager) TimerResync(connID, pairingID string) (*events.TimerUpdate, error) {
	entry, ok := m.registry.Lookup(connID)
	if !ok {
		return nil, ErrNotRegistered
	}
	if err := m.relay.Join(pairingID, connID, entry.PlayerID); err != nil {
		return nil, err
	}
	ctl, err := m.relay.Snapshot(pairingID)
	if err != nil {
		return nil, err
	}
	return &events.TimerUpdate{Type: events.TypeTimerUpdate, Control: ctl}, nil
}

// LeavePairing marks the connection's player done with the pairing; the room
// closes once both players are done.
func (m *Manager) LeavePairing(connID, pairingID string) error {
	entry, ok := m.registry.Lookup(connID)
	if !ok {
		return ErrNotRegistered
	}
	if m.relay.Finish(pairingID, entry.PlayerID) {
		log.Printf("[TIMER] Room %s closed", pairingID)
	}
	return nil
}
