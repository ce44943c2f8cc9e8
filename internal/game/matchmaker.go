package game

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/speedfriending/backend/internal/events"
	"github.com/speedfriending/backend/internal/models"
	"github.com/speedfriending/backend/internal/store"
)

// No-match reasons sent to clients.
const (
	ReasonNotRegistered   = "not registered"
	ReasonNotActive       = "not active"
	ReasonAlreadyMatching = "already matching"
	ReasonPlayerNotFound  = "player not found"
	ReasonNotAvailable    = "not available"
	ReasonInvalidRole     = "invalid role"
	ReasonNoCandidates    = "no available players"
	ReasonLookupFailed    = "matching temporarily unavailable"
)

// MatchResult is the outcome of one match request.
type MatchResult struct {
	Found       bool
	Reason      string
	PairingID   string
	Round       int
	Player      *models.Player
	Counterpart *models.Player
}

func noMatch(reason string) MatchResult {
	return MatchResult{Reason: reason}
}

// RequestMatch pairs the player registered on connID with a random eligible
// counterpart of the requested role. On success match_found is pushed to both
// connections and both join the pairing's timer room.
func (m *Manager) RequestMatch(ctx context.Context, connID string, role models.Role) MatchResult {
	entry, ok := m.registry.Lookup(connID)
	if !ok {
		return noMatch(ReasonNotRegistered)
	}

	// The state read here holds for the whole attempt.
	gs := m.state.State()
	if gs.Status != models.GameRunning {
		log.Printf("[MATCH] Player %d requested a match while game is %s", entry.PlayerID, gs.Status)
		return noMatch(ReasonNotActive)
	}

	acquired, err := m.guard.Acquire(ctx, entry.PlayerID)
	if err != nil {
		log.Printf("[MATCH] Guard error for player %d: %v", entry.PlayerID, err)
		return noMatch(ReasonLookupFailed)
	}
	if !acquired {
		log.Printf("[MATCH] Player %d already has a match attempt in flight", entry.PlayerID)
		return noMatch(ReasonAlreadyMatching)
	}
	defer func() {
		if err := m.guard.Release(context.Background(), entry.PlayerID); err != nil {
			log.Printf("[MATCH] Failed to release guard for player %d: %v", entry.PlayerID, err)
		}
	}()

	requester, err := m.store.GetPlayer(ctx, entry.PlayerID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[MATCH] Failed to load player %d: %v", entry.PlayerID, err)
		}
		return noMatch(ReasonPlayerNotFound)
	}
	if requester.Status != models.StatusAvailable {
		return noMatch(ReasonNotAvailable)
	}

	if role == "" {
		role = requester.Role.Opposite()
	}
	if !role.Valid() || role == requester.Role {
		return noMatch(ReasonInvalidRole)
	}

	var skip map[int64]bool
	for attempt := 0; attempt < 2; attempt++ {
		counterpart, err := m.pickCandidate(ctx, requester.ID, role, gs.Round, skip)
		if err != nil {
			log.Printf("[MATCH] Candidate query failed for player %d: %v", requester.ID, err)
			return noMatch(ReasonLookupFailed)
		}
		if counterpart == nil {
			log.Printf("[MATCH] No candidates for player %d (role=%s round=%d)", requester.ID, role, gs.Round)
			return noMatch(ReasonNoCandidates)
		}

		pairingID := uuid.NewString()
		_, err = m.store.CreatePairing(ctx, store.PairingInput{
			PairingID: pairingID,
			Player1ID: requester.ID,
			Player2ID: counterpart.ID,
			Round:     gs.Round,
		})
		if errors.Is(err, store.ErrConflict) {
			log.Printf("[MATCH] Player %d was claimed concurrently; retrying selection for %d", counterpart.ID, requester.ID)
			if skip == nil {
				skip = make(map[int64]bool)
			}
			skip[counterpart.ID] = true
			continue
		}
		if err != nil {
			// The pairing is still offered so the event keeps moving.
			log.Printf("[MATCH] Failed to persist pairing %s (%d, %d): %v", pairingID, requester.ID, counterpart.ID, err)
		}

		requester.Status = models.StatusMatched
		counterpart.Status = models.StatusMatched
		m.deliverMatch(pairingID, gs.Round, requester, counterpart)
		log.Printf("[MATCH] ✓ Pairing %s created: players=[%d,%d] round=%d", pairingID, requester.ID, counterpart.ID, gs.Round)

		return MatchResult{
			Found:       true,
			PairingID:   pairingID,
			Round:       gs.Round,
			Player:      requester,
			Counterpart: counterpart,
		}
	}

	return noMatch(ReasonNoCandidates)
}

// pickCandidate chooses uniformly among eligible players that hold a live
// connection.
func (m *Manager) pickCandidate(ctx context.Context, requesterID int64, role models.Role, round int, skip map[int64]bool) (*models.Player, error) {
	candidates, err := m.store.FindCandidates(ctx, requesterID, role, round)
	if err != nil {
		return nil, err
	}
	n := m.notify()
	eligible := candidates[:0]
	for _, c := range candidates {
		if skip[c.ID] {
			continue
		}
		conn, ok := m.registry.ConnectionFor(c.ID)
		if !ok || !n.Connected(conn) {
			continue
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	picked := eligible[m.intn(len(eligible))]
	return &picked, nil
}

func (m *Manager) deliverMatch(pairingID string, round int, a, b *models.Player) {
	m.relay.Open(pairingID, a.ID, b.ID)
	n := m.notify()

	for _, pair := range [][2]*models.Player{{a, b}, {b, a}} {
		self, other := pair[0], pair[1]
		conn, ok := m.registry.ConnectionFor(self.ID)
		if !ok {
			log.Printf("[MATCH] Player %d has no connection; match_found for %s not delivered", self.ID, pairingID)
			continue
		}
		if err := m.relay.Join(pairingID, conn, self.ID); err != nil {
			log.Printf("[TIMER] Player %d could not join room %s: %v", self.ID, pairingID, err)
		}
		msg := events.MatchFound{
			Type:      events.TypeMatchFound,
			PairingID: pairingID,
			Round:     round,
			Counterpart: events.Counterpart{
				ID:   other.ID,
				Name: other.Name,
				Role: other.Role,
			},
			Duration:     m.opts.TimerDuration,
			SyncInterval: m.opts.SyncInterval,
		}
		if !n.SendToConnection(conn, msg) {
			log.Printf("[MATCH] match_found for %s dropped for player %d", pairingID, self.ID)
		}
	}
}
