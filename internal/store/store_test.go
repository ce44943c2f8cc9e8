package store

import (
	"context"
	"errors"
	"testing"

	"github.com/speedfriending/backend/internal/models"
)

// exerciseStore runs the behaviour every Store backend must share.
func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	a, err := st.CreatePlayer(ctx, "Ann", models.RoleStationary, 1)
	if err != nil {
		t.Fatalf("create player: %v", err)
	}
	b, _ := st.CreatePlayer(ctx, "Ben", models.RoleMoving, 1)
	c, _ := st.CreatePlayer(ctx, "Cas", models.RoleMoving, 1)
	if a.ID == 0 || a.Status != models.StatusAvailable {
		t.Fatalf("unexpected player %+v", a)
	}

	got, err := st.GetPlayer(ctx, b.ID)
	if err != nil || got.Name != "Ben" || got.Role != models.RoleMoving {
		t.Fatalf("get player: %+v %v", got, err)
	}
	if _, err := st.GetPlayer(ctx, 999999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	cands, err := st.FindCandidates(ctx, a.ID, models.RoleMoving, 1)
	if err != nil {
		t.Fatalf("find candidates: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}

	m, err := st.CreatePairing(ctx, PairingInput{PairingID: "pair-1", Player1ID: a.ID, Player2ID: b.ID, Round: 1})
	if err != nil {
		t.Fatalf("create pairing: %v", err)
	}
	for _, id := range []int64{a.ID, b.ID} {
		p, _ := st.GetPlayer(ctx, id)
		if p.Status != models.StatusMatched {
			t.Errorf("player %d should be matched", id)
		}
	}

	// b is taken now
	if _, err := st.CreatePairing(ctx, PairingInput{PairingID: "pair-x", Player1ID: c.ID, Player2ID: b.ID, Round: 1}); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for a matched counterpart, got %v", err)
	}
	if p, _ := st.GetPlayer(ctx, c.ID); p.Status != models.StatusAvailable {
		t.Error("failed pairing left c matched")
	}

	// release both; they are still excluded from each other this round
	st.SetPlayerStatus(ctx, a.ID, models.StatusAvailable)
	st.SetPlayerStatus(ctx, b.ID, models.StatusAvailable)
	cands, _ = st.FindCandidates(ctx, a.ID, models.RoleMoving, 1)
	if len(cands) != 1 || cands[0].ID != c.ID {
		t.Errorf("expected only c as candidate, got %+v", cands)
	}
	cands, _ = st.FindCandidates(ctx, a.ID, models.RoleMoving, 2)
	if len(cands) != 2 {
		t.Errorf("exclusion should be scoped to the round, got %d candidates", len(cands))
	}

	byID, err := st.GetMatchByPairingID(ctx, "pair-1")
	if err != nil || byID.ID != m.ID {
		t.Fatalf("get match: %+v %v", byID, err)
	}
	between, err := st.FindMatchBetween(ctx, b.ID, a.ID, 1)
	if err != nil || between.ID != m.ID {
		t.Fatalf("find match between: %+v %v", between, err)
	}
	if anyRound, err := st.FindMatchBetween(ctx, a.ID, b.ID, 0); err != nil || anyRound.ID != m.ID {
		t.Errorf("round 0 should find the latest pairing: %+v %v", anyRound, err)
	}
	if _, err := st.FindMatchBetween(ctx, a.ID, b.ID, 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another round, got %v", err)
	}

	matchID := m.ID
	if _, err := st.CreateRating(ctx, &models.Rating{MatchID: &matchID, PlayerID: a.ID, RatedPlayerID: b.ID, Enjoyment: 4, Depth: 3, Round: 1}); err != nil {
		t.Fatalf("rating: %v", err)
	}
	if rated, _ := st.MarkMatchRatedIfComplete(ctx, m.ID); rated {
		t.Error("match rated after one side")
	}
	st.CreateRating(ctx, &models.Rating{MatchID: &matchID, PlayerID: b.ID, RatedPlayerID: a.ID, Enjoyment: 3, Depth: 5, WouldChatAgain: true, Round: 1})
	if rated, err := st.MarkMatchRatedIfComplete(ctx, m.ID); err != nil || !rated {
		t.Errorf("match should be rated: %v %v", rated, err)
	}

	mutual, err := st.MutualRatings(ctx, 1)
	if err != nil {
		t.Fatalf("mutual ratings: %v", err)
	}
	if len(mutual) != 1 {
		t.Fatalf("expected 1 mutual rating, got %d", len(mutual))
	}
	mr := mutual[0]
	if mr.PlayerA != a.ID || mr.EnjoymentAB != 4 || mr.EnjoymentBA != 3 || mr.DepthBA != 5 {
		t.Errorf("unexpected mutual rating %+v", mr)
	}

	// a resubmits; the first rating in each direction still counts
	st.CreateRating(ctx, &models.Rating{PlayerID: a.ID, RatedPlayerID: b.ID, Enjoyment: 1, Depth: 1, Round: 1})
	mutual, _ = st.MutualRatings(ctx, 1)
	if len(mutual) != 1 || mutual[0].EnjoymentAB != 4 || mutual[0].DepthAB != 3 {
		t.Errorf("duplicate rating changed mutual ratings: %+v", mutual)
	}

	if ms, _ := st.ListMatches(ctx, 42); ms == nil {
		t.Error("ListMatches should return an empty slice, not nil")
	}
	if ts, _ := st.ListTeams(ctx, 42); ts == nil {
		t.Error("ListTeams should return an empty slice, not nil")
	}
	if bs, _ := st.ListBattles(ctx, 42); bs == nil {
		t.Error("ListBattles should return an empty slice, not nil")
	}
	if mrs, _ := st.MutualRatings(ctx, 42); mrs == nil {
		t.Error("MutualRatings should return an empty slice, not nil")
	}

	teams, err := st.CreateTeams(ctx, []models.Team{{Round: 1, Player1ID: a.ID, Player2ID: b.ID, Compatibility: 3.75}})
	if err != nil || len(teams) != 1 || teams[0].ID == 0 {
		t.Fatalf("create teams: %+v %v", teams, err)
	}
	listed, _ := st.ListTeams(ctx, 1)
	if len(listed) != 1 || listed[0].Compatibility != 3.75 {
		t.Errorf("unexpected teams %+v", listed)
	}

	d, _ := st.CreatePlayer(ctx, "Dee", models.RoleStationary, 1)
	more, _ := st.CreateTeams(ctx, []models.Team{{Round: 1, Player1ID: c.ID, Player2ID: d.ID, Compatibility: 4}})
	battles, err := st.CreateBattles(ctx, []models.Battle{{Round: 1, Team1ID: teams[0].ID, Team2ID: more[0].ID, Activity: "trivia"}})
	if err != nil || len(battles) != 1 {
		t.Fatalf("create battles: %+v %v", battles, err)
	}
	if battles[0].WinnerTeamID != nil {
		t.Error("new battle should have no winner")
	}
	won, err := st.SetBattleWinner(ctx, battles[0].ID, more[0].ID)
	if err != nil || won.WinnerTeamID == nil || *won.WinnerTeamID != more[0].ID || won.DecidedAt == nil {
		t.Fatalf("set winner: %+v %v", won, err)
	}
	if _, err := st.SetBattleWinner(ctx, 999999, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if bl, _ := st.ListBattles(ctx, 1); len(bl) != 1 {
		t.Errorf("expected 1 battle, got %d", len(bl))
	}

	gs, err := st.GetGameState(ctx)
	if err != nil || gs.Status != models.GameStopped || gs.Round != 1 {
		t.Fatalf("initial state: %+v %v", gs, err)
	}
	st.SaveGameState(ctx, models.GameRunning, 3)
	gs, _ = st.GetGameState(ctx)
	if gs.Status != models.GameRunning || gs.Round != 3 {
		t.Errorf("state not saved: %+v", gs)
	}

	if err := st.ResetAllPlayers(ctx, 3); err != nil {
		t.Fatalf("reset players: %v", err)
	}
	all, _ := st.ListPlayers(ctx)
	for _, p := range all {
		if p.Status != models.StatusAvailable || p.CurrentRound != 3 {
			t.Errorf("player %d not reset: %+v", p.ID, p)
		}
	}

	if err := st.DeletePlayer(ctx, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.DeletePlayer(ctx, d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	// d's team and its battle go with d
	if ts, _ := st.ListTeams(ctx, 1); len(ts) != 1 || ts[0].ID != teams[0].ID {
		t.Errorf("expected only the first team to remain, got %+v", ts)
	}
	if bs, _ := st.ListBattles(ctx, 1); len(bs) != 0 {
		t.Errorf("battle should be deleted with its team, got %+v", bs)
	}
	if err := st.DeletePlayer(ctx, b.ID); err != nil {
		t.Fatalf("delete b: %v", err)
	}
	if ms, _ := st.ListMatches(ctx, 1); len(ms) != 0 {
		t.Errorf("pairing should be deleted with its player, got %+v", ms)
	}
	if mrs, _ := st.MutualRatings(ctx, 1); len(mrs) != 0 {
		t.Errorf("ratings should be deleted with their player, got %+v", mrs)
	}
	if ts, _ := st.ListTeams(ctx, 1); len(ts) != 0 {
		t.Errorf("team should be deleted with its player, got %+v", ts)
	}

	if err := st.UpsertAdminAccount(ctx, "host", "hash-1"); err != nil {
		t.Fatalf("upsert admin: %v", err)
	}
	st.UpsertAdminAccount(ctx, "host", "hash-2")
	acct, err := st.GetAdminAccount(ctx, "host")
	if err != nil || acct.PasswordHash != "hash-2" {
		t.Errorf("admin account: %+v %v", acct, err)
	}
	if _, err := st.GetAdminAccount(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	st.InsertAdminAudit(ctx, &models.AdminAudit{AdminUsername: "host", Action: "start_game", Details: "{}", Success: true})
	st.InsertAdminAudit(ctx, &models.AdminAudit{AdminUsername: "other", Action: "stop_game", Details: "{}", Success: true})
	logs, err := st.ListAdminAudit(ctx, "host", 10, 0)
	if err != nil || len(logs) != 1 || logs[0].Action != "start_game" {
		t.Errorf("filtered audit: %+v %v", logs, err)
	}
	logs, _ = st.ListAdminAudit(ctx, "", 10, 0)
	if len(logs) != 2 {
		t.Errorf("expected 2 audit entries, got %d", len(logs))
	}
}

func TestMemoryStore(t *testing.T) {
	st := NewMemoryStore()
	defer st.Close()
	exerciseStore(t, st)
}
