package game

import (
	"context"
	"errors"
	"testing"

	"github.com/speedfriending/backend/internal/events"
	"github.com/speedfriending/backend/internal/models"
	"github.com/speedfriending/backend/internal/store"
)

func TestRatingReleasesSubmitter(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	ctx := context.Background()
	a, pa := h.join(t, models.RoleStationary)
	_, pb := h.join(t, models.RoleMoving)

	res := h.mgr.RequestMatch(ctx, a, models.RoleMoving)
	if !res.Found {
		t.Fatalf("expected match, got %q", res.Reason)
	}

	out, err := h.mgr.SubmitRating(ctx, RatingInput{
		PairingID: res.PairingID, PlayerID: pa.ID, RatedPlayerID: pb.ID,
		Enjoyment: 5, Depth: 4, WouldChatAgain: true, Round: 1,
	})
	if err != nil {
		t.Fatalf("submit rating: %v", err)
	}
	if !out.StatusUpdated || out.MatchRated {
		t.Errorf("unexpected result %+v", out)
	}
	if out.Rating.MatchID == nil {
		t.Error("rating should reference the pairing")
	}
	if got := h.status(t, pa.ID); got != models.StatusAvailable {
		t.Errorf("submitter: expected available, got %s", got)
	}
	if got := h.status(t, pb.ID); got != models.StatusMatched {
		t.Errorf("counterpart should stay matched until it rates, got %s", got)
	}
	ev := h.nextEvent(t, events.TypePlayerAvailable)
	if ev.Payload["playerId"] != pa.ID {
		t.Errorf("unexpected player_available payload %v", ev.Payload)
	}

	out, err = h.mgr.SubmitRating(ctx, RatingInput{
		PlayerID: pb.ID, RatedPlayerID: pa.ID, Enjoyment: 4, Depth: 4, Round: 1,
	})
	if err != nil {
		t.Fatalf("second rating: %v", err)
	}
	if !out.MatchRated {
		t.Error("match should be rated once both sides submitted")
	}
	if h.mgr.Relay().Len() != 0 {
		t.Error("timer room should close once both players rated")
	}
}

func TestRatingValidation(t *testing.T) {
	h := newHarness(t, nil)
	cases := []RatingInput{
		{RatedPlayerID: 2, Enjoyment: 3, Depth: 3, Round: 1},
		{PlayerID: 1, Enjoyment: 3, Depth: 3, Round: 1},
		{PlayerID: 1, RatedPlayerID: 1, Enjoyment: 3, Depth: 3, Round: 1},
		{PlayerID: 1, RatedPlayerID: 2, Enjoyment: 0, Depth: 3, Round: 1},
		{PlayerID: 1, RatedPlayerID: 2, Enjoyment: 3, Depth: 6, Round: 1},
		{PlayerID: 1, RatedPlayerID: 2, Enjoyment: 3, Depth: 3, Round: -1},
	}
	for i, in := range cases {
		if _, err := h.mgr.SubmitRating(context.Background(), in); !errors.Is(err, ErrValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestRatingAfterNextRoundFollowsPairing(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	ctx := context.Background()
	a, pa := h.join(t, models.RoleStationary)
	_, pb := h.join(t, models.RoleMoving)

	res := h.mgr.RequestMatch(ctx, a, models.RoleMoving)
	if !res.Found {
		t.Fatalf("expected match, got %q", res.Reason)
	}
	if _, err := h.mgr.NextRound(ctx); err != nil {
		t.Fatalf("next round: %v", err)
	}

	// One side leaves the round unset, the other names the new round.
	out, err := h.mgr.SubmitRating(ctx, RatingInput{PlayerID: pa.ID, RatedPlayerID: pb.ID, Enjoyment: 5, Depth: 4})
	if err != nil {
		t.Fatalf("first rating: %v", err)
	}
	if out.Rating.Round != 1 || out.Rating.MatchID == nil {
		t.Errorf("rating should be filed under the pairing's round: %+v", out.Rating)
	}
	out, err = h.mgr.SubmitRating(ctx, RatingInput{
		PlayerID: pb.ID, RatedPlayerID: pa.ID, Enjoyment: 4, Depth: 4, Round: h.mgr.GameState().Round,
	})
	if err != nil {
		t.Fatalf("second rating: %v", err)
	}
	if out.Rating.Round != 1 || !out.MatchRated {
		t.Errorf("unexpected result %+v rating %+v", out, out.Rating)
	}

	teams, err := h.mgr.FormTeams(ctx, 1)
	if err != nil {
		t.Fatalf("form teams: %v", err)
	}
	if len(teams) != 1 {
		t.Fatalf("expected 1 team for round 1, got %d", len(teams))
	}
	if teams, _ := h.mgr.FormTeams(ctx, 2); len(teams) != 0 {
		t.Errorf("round 2 should have no teams, got %+v", teams)
	}
}

func TestRatingWithoutPairingUsesCurrentRound(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	ctx := context.Background()
	_, pa := h.join(t, models.RoleStationary)
	_, pb := h.join(t, models.RoleMoving)
	if _, err := h.mgr.NextRound(ctx); err != nil {
		t.Fatalf("next round: %v", err)
	}

	out, err := h.mgr.SubmitRating(ctx, RatingInput{PlayerID: pa.ID, RatedPlayerID: pb.ID, Enjoyment: 3, Depth: 3})
	if err != nil {
		t.Fatalf("submit rating: %v", err)
	}
	if out.Rating.Round != 2 || out.Rating.MatchID != nil {
		t.Errorf("expected an unlinked round 2 rating, got %+v", out.Rating)
	}
}

func TestRatingWithMismatchedPairing(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	ctx := context.Background()
	a, pa := h.join(t, models.RoleStationary)
	_, pb := h.join(t, models.RoleMoving)
	_, pc := h.join(t, models.RoleMoving)

	res := h.mgr.RequestMatch(ctx, a, models.RoleMoving)
	other := pb.ID
	if res.Counterpart.ID == pb.ID {
		other = pc.ID
	}
	_, err := h.mgr.SubmitRating(ctx, RatingInput{
		PairingID: res.PairingID, PlayerID: pa.ID, RatedPlayerID: other, Enjoyment: 3, Depth: 3, Round: 1,
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// stuckStatusStore stores ratings but cannot update availability.
type stuckStatusStore struct {
	*store.MemoryStore
}

func (s *stuckStatusStore) SetPlayerStatus(context.Context, int64, models.PlayerStatus) error {
	return errors.New("write timeout")
}

func TestRatingPartialSuccess(t *testing.T) {
	st := &stuckStatusStore{MemoryStore: store.NewMemoryStore()}
	h := newHarness(t, st)
	ctx := context.Background()
	pa, _ := st.CreatePlayer(ctx, "a", models.RoleStationary, 1)
	pb, _ := st.CreatePlayer(ctx, "b", models.RoleMoving, 1)

	out, err := h.mgr.SubmitRating(ctx, RatingInput{PlayerID: pa.ID, RatedPlayerID: pb.ID, Enjoyment: 2, Depth: 2, Round: 1})
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if out.StatusUpdated {
		t.Error("StatusUpdated should be false")
	}
	if out.Rating == nil || out.Rating.ID == 0 {
		t.Error("rating should still be stored")
	}
}

func TestDisconnectReleasesPlayer(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	ctx := context.Background()
	a, pa := h.join(t, models.RoleStationary)
	h.join(t, models.RoleMoving)

	if res := h.mgr.RequestMatch(ctx, a, models.RoleMoving); !res.Found {
		t.Fatal("expected match")
	}
	h.mgr.HandleDisconnect(ctx, a)

	if got := h.status(t, pa.ID); got != models.StatusAvailable {
		t.Errorf("expected available after disconnect, got %s", got)
	}
	if _, ok := h.mgr.Registry().Lookup(a); ok {
		t.Error("registration should be removed")
	}
	if h.mgr.Guard().(*MemoryGuard).Held(pa.ID) {
		t.Error("guard should be released")
	}
}

func TestCleanupReleasesVanishedConnections(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	ctx := context.Background()
	a, pa := h.join(t, models.RoleStationary)
	b, _ := h.join(t, models.RoleMoving)

	if res := h.mgr.RequestMatch(ctx, a, models.RoleMoving); !res.Found {
		t.Fatal("expected match")
	}
	h.mgr.Guard().Acquire(ctx, pa.ID)
	h.notifier.kill(a)

	res := h.mgr.Cleanup(ctx, 0)
	if res.Sessions != 1 {
		t.Errorf("expected 1 stale session, got %d", res.Sessions)
	}
	if got := h.status(t, pa.ID); got != models.StatusAvailable {
		t.Errorf("expected available after cleanup, got %s", got)
	}
	if h.mgr.Guard().(*MemoryGuard).Held(pa.ID) {
		t.Error("guard should be released by cleanup")
	}
	if _, ok := h.mgr.Registry().Lookup(b); !ok {
		t.Error("live registration removed")
	}
}
