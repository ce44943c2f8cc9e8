package game

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/speedfriending/backend/internal/models"
	"github.com/speedfriending/backend/internal/store"
)

// RatingInput is one participant's feedback about a conversation. Round may be
// left zero; the rating is then filed under the pairing's round, or the current
// round when no pairing joins the two players.
type RatingInput struct {
	PairingID      string
	PlayerID       int64
	RatedPlayerID  int64
	Enjoyment      int
	Depth          int
	WouldChatAgain bool
	Round          int
}

func (in RatingInput) validate() error {
	switch {
	case in.PlayerID <= 0:
		return fmt.Errorf("%w: playerId is required", ErrValidation)
	case in.RatedPlayerID <= 0:
		return fmt.Errorf("%w: ratedPlayerId is required", ErrValidation)
	case in.PlayerID == in.RatedPlayerID:
		return fmt.Errorf("%w: players cannot rate themselves", ErrValidation)
	case in.Enjoyment < 1 || in.Enjoyment > 5:
		return fmt.Errorf("%w: enjoyment must be between 1 and 5", ErrValidation)
	case in.Depth < 1 || in.Depth > 5:
		return fmt.Errorf("%w: depth must be between 1 and 5", ErrValidation)
	case in.Round < 0:
		return fmt.Errorf("%w: round must not be negative", ErrValidation)
	}
	return nil
}

// RatingResult reports what a rating submission achieved. StatusUpdated is
// false when the rating was stored but the submitter could not be released.
type RatingResult struct {
	Rating        *models.Rating
	StatusUpdated bool
	MatchRated    bool
}

// SubmitRating stores the rating and releases the submitter back to available.
func (m *Manager) SubmitRating(ctx context.Context, in RatingInput) (*RatingResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	match, err := m.findRatedMatch(ctx, in)
	if err != nil {
		return nil, err
	}
	switch {
	case match != nil:
		if in.Round != 0 && in.Round != match.Round {
			log.Printf("[MATCH] Rating from player %d names round %d, filing under pairing round %d", in.PlayerID, in.Round, match.Round)
		}
		in.Round = match.Round
	case in.Round == 0:
		in.Round = m.GameState().Round
	}

	r := &models.Rating{
		PlayerID:       in.PlayerID,
		RatedPlayerID:  in.RatedPlayerID,
		Enjoyment:      in.Enjoyment,
		Depth:          in.Depth,
		WouldChatAgain: in.WouldChatAgain,
		Round:          in.Round,
	}
	if match != nil {
		id := match.ID
		r.MatchID = &id
	}

	saved, err := m.store.CreateRating(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("create rating: %w", err)
	}
	res := &RatingResult{Rating: saved, StatusUpdated: true}

	if err := m.store.SetPlayerStatus(ctx, in.PlayerID, models.StatusAvailable); err != nil {
		log.Printf("[MATCH] Rating %d stored but player %d not released: %v", saved.ID, in.PlayerID, err)
		res.StatusUpdated = false
	}

	if match != nil {
		rated, err := m.store.MarkMatchRatedIfComplete(ctx, match.ID)
		if err != nil {
			log.Printf("[MATCH] Failed to mark match %d rated: %v", match.ID, err)
		}
		res.MatchRated = rated
		m.relay.Finish(match.PairingID, in.PlayerID)
	} else if in.PairingID != "" {
		m.relay.Finish(in.PairingID, in.PlayerID)
	}

	if res.StatusUpdated {
		role := models.Role("")
		if p, err := m.store.GetPlayer(ctx, in.PlayerID); err == nil {
			role = p.Role
		}
		m.announceAvailable(in.PlayerID, role)
	}

	log.Printf("[MATCH] Player %d rated player %d (round=%d enjoyment=%d depth=%d)", in.PlayerID, in.RatedPlayerID, in.Round, in.Enjoyment, in.Depth)
	return res, nil
}

func (m *Manager) findRatedMatch(ctx context.Context, in RatingInput) (*models.Match, error) {
	if in.PairingID != "" {
		match, err := m.store.GetMatchByPairingID(ctx, in.PairingID)
		if err == nil {
			if !match.Involves(in.PlayerID) || match.Counterpart(in.PlayerID) != in.RatedPlayerID {
				return nil, fmt.Errorf("%w: pairing %s does not join these players", ErrValidation, in.PairingID)
			}
			return match, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("load pairing: %w", err)
		}
	}

	match, err := m.store.FindMatchBetween(ctx, in.PlayerID, in.RatedPlayerID, in.Round)
	if errors.Is(err, store.ErrNotFound) {
		// Ratings are append-only feedback; an unknown pairing is still recorded.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pairing: %w", err)
	}
	return match, nil
}
