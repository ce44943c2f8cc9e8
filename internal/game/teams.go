package game

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/speedfriending/backend/internal/events"
	"github.com/speedfriending/backend/internal/models"
	"github.com/speedfriending/backend/internal/pubsub"
	"github.com/speedfriending/backend/internal/store"
)

// EnjoymentThreshold is the largest gap between the two enjoyment scores of a
// mutual rating that still forms a team.
const EnjoymentThreshold = 1

// Activities battles are drawn from.
var Activities = []string{"trivia", "charades", "pictionary", "rock_paper_scissors"}

// GreedyTeams pairs players first-fit in the order the mutual ratings are given.
// A player already placed on a team is skipped.
func GreedyTeams(round int, mutual []models.MutualRating) []models.Team {
	used := make(map[int64]bool)
	var teams []models.Team
	for _, mr := range mutual {
		if used[mr.PlayerA] || used[mr.PlayerB] {
			continue
		}
		if abs(mr.EnjoymentAB-mr.EnjoymentBA) > EnjoymentThreshold {
			continue
		}
		used[mr.PlayerA] = true
		used[mr.PlayerB] = true
		teams = append(teams, models.Team{
			Round:         round,
			Player1ID:     mr.PlayerA,
			Player2ID:     mr.PlayerB,
			Compatibility: float64(mr.EnjoymentAB+mr.EnjoymentBA+mr.DepthAB+mr.DepthBA) / 4,
		})
	}
	return teams
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// FormTeams builds the teams for a round from its mutual ratings. Teams that
// already exist for the round are returned unchanged.
func (m *Manager) FormTeams(ctx context.Context, round int) ([]models.Team, error) {
	if round < 1 {
		return nil, fmt.Errorf("%w: round must be at least 1", ErrValidation)
	}
	existing, err := m.store.ListTeams(ctx, round)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	mutual, err := m.store.MutualRatings(ctx, round)
	if err != nil {
		return nil, fmt.Errorf("load mutual ratings: %w", err)
	}
	teams := GreedyTeams(round, mutual)
	if len(teams) == 0 {
		log.Printf("[TEAMS] No compatible pairs in round %d (%d mutual ratings)", round, len(mutual))
		return []models.Team{}, nil
	}

	saved, err := m.store.CreateTeams(ctx, teams)
	if err != nil {
		return nil, fmt.Errorf("create teams: %w", err)
	}
	log.Printf("[TEAMS] Formed %d teams for round %d", len(saved), round)
	return saved, nil
}

// BattleSchedule is the set of battles for a round. Unpaired holds the odd team
// out, if any; it sits out rather than being given a bye or a wildcard.
type BattleSchedule struct {
	Round    int             `json:"round"`
	Battles  []models.Battle `json:"battles"`
	Unpaired *models.Team    `json:"unpaired,omitempty"`
}

// ScheduleBattles shuffles the round's teams, pairs adjacent entries and gives
// each pair a random activity. Existing battles for the round are reused.
// The schedule is announced to every client.
func (m *Manager) ScheduleBattles(ctx context.Context, round int) (*BattleSchedule, error) {
	if round < 1 {
		return nil, fmt.Errorf("%w: round must be at least 1", ErrValidation)
	}
	teams, err := m.store.ListTeams(ctx, round)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	battles, err := m.store.ListBattles(ctx, round)
	if err != nil {
		return nil, fmt.Errorf("list battles: %w", err)
	}

	sched := &BattleSchedule{Round: round}
	if len(battles) > 0 {
		sched.Battles = battles
		sched.Unpaired = unpairedTeam(teams, battles)
	} else {
		m.shuffle(len(teams), func(i, j int) { teams[i], teams[j] = teams[j], teams[i] })

		var planned []models.Battle
		for i := 0; i+1 < len(teams); i += 2 {
			planned = append(planned, models.Battle{
				Round:    round,
				Team1ID:  teams[i].ID,
				Team2ID:  teams[i+1].ID,
				Activity: Activities[m.intn(len(Activities))],
			})
		}
		if len(teams)%2 == 1 {
			odd := teams[len(teams)-1]
			sched.Unpaired = &odd
		}
		if len(planned) > 0 {
			if sched.Battles, err = m.store.CreateBattles(ctx, planned); err != nil {
				return nil, fmt.Errorf("create battles: %w", err)
			}
		}
		log.Printf("[TEAMS] Scheduled %d battles for round %d (teams=%d)", len(sched.Battles), round, len(teams))
	}
	if sched.Battles == nil {
		sched.Battles = []models.Battle{}
	}
	if sched.Unpaired != nil {
		log.Printf("[TEAMS] Team %d has no opponent in round %d", sched.Unpaired.ID, round)
	}

	payload := map[string]interface{}{
		"round":   round,
		"battles": sched.Battles,
	}
	if sched.Unpaired != nil {
		payload["unpairedTeamId"] = sched.Unpaired.ID
	}
	m.state.Publish(pubsub.Event{Type: events.TypeTeamBattlesStarted, Payload: payload})
	return sched, nil
}

func unpairedTeam(teams []models.Team, battles []models.Battle) *models.Team {
	scheduled := make(map[int64]bool, len(battles)*2)
	for _, b := range battles {
		scheduled[b.Team1ID] = true
		scheduled[b.Team2ID] = true
	}
	for _, t := range teams {
		if !scheduled[t.ID] {
			t := t
			return &t
		}
	}
	return nil
}

// ListBattles returns the battles scheduled for a round.
func (m *Manager) ListBattles(ctx context.Context, round int) ([]models.Battle, error) {
	return m.store.ListBattles(ctx, round)
}

// DeclareWinner records the winning team of a battle and announces it. A later
// declaration overwrites an earlier one. round is checked when positive.
func (m *Manager) DeclareWinner(ctx context.Context, round int, battleID, teamID int64) (*models.Battle, error) {
	if battleID <= 0 || teamID <= 0 {
		return nil, fmt.Errorf("%w: battleId and winningTeamId are required", ErrValidation)
	}
	b, err := m.store.GetBattle(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if round > 0 && b.Round != round {
		return nil, fmt.Errorf("%w: battle %d belongs to round %d", ErrValidation, battleID, b.Round)
	}
	if teamID != b.Team1ID && teamID != b.Team2ID {
		return nil, fmt.Errorf("%w: team %d is not in battle %d", ErrValidation, teamID, battleID)
	}

	updated, err := m.store.SetBattleWinner(ctx, battleID, teamID)
	if err != nil {
		return nil, fmt.Errorf("set battle winner: %w", err)
	}
	log.Printf("[TEAMS] Battle %d won by team %d", battleID, teamID)

	m.state.Publish(pubsub.Event{
		Type: events.TypeBattleResult,
		Payload: map[string]interface{}{
			"battleId": battleID,
			"winnerId": teamID,
			"round":    updated.Round,
		},
	})
	return updated, nil
}

// PlayerTeam describes the player's team, teammate and battle for a round.
// Team is nil when the player was not placed on a team.
func (m *Manager) PlayerTeam(ctx context.Context, playerID int64, round int) (*events.PlayerTeamInfo, error) {
	if playerID <= 0 {
		return nil, fmt.Errorf("%w: playerId is required", ErrValidation)
	}
	if round < 1 {
		round = m.GameState().Round
	}
	info := &events.PlayerTeamInfo{Type: events.TypePlayerTeamInfo, Round: round}

	teams, err := m.store.ListTeams(ctx, round)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	byID := make(map[int64]models.Team, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
		if t.HasPlayer(playerID) {
			t := t
			info.Team = &t
		}
	}
	if info.Team == nil {
		return info, nil
	}

	mateID := info.Team.Player1ID
	if mateID == playerID {
		mateID = info.Team.Player2ID
	}
	mate, err := m.store.GetPlayer(ctx, mateID)
	switch {
	case err == nil:
		info.Teammate = &events.Counterpart{ID: mate.ID, Name: mate.Name, Role: mate.Role}
	case errors.Is(err, store.ErrNotFound):
		info.Teammate = &events.Counterpart{ID: mateID}
	default:
		return nil, fmt.Errorf("load teammate: %w", err)
	}

	battles, err := m.store.ListBattles(ctx, round)
	if err != nil {
		return nil, fmt.Errorf("list battles: %w", err)
	}
	for _, b := range battles {
		var opp int64
		switch info.Team.ID {
		case b.Team1ID:
			opp = b.Team2ID
		case b.Team2ID:
			opp = b.Team1ID
		default:
			continue
		}
		b := b
		info.Battle = &b
		if o, ok := byID[opp]; ok {
			info.Opponent = &o
		}
		break
	}
	return info, nil
}
