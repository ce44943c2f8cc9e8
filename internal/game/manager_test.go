package game

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/speedfriending/backend/internal/events"
	"github.com/speedfriending/backend/internal/models"
	"github.com/speedfriending/backend/internal/pubsub"
	"github.com/speedfriending/backend/internal/session"
	"github.com/speedfriending/backend/internal/store"
	"github.com/speedfriending/backend/internal/timer"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[string][]interface{}
	dead map[string]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(map[string][]interface{}), dead: make(map[string]bool)}
}

func (f *fakeNotifier) SendToConnection(connID string, msg interface{}) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dead[connID] {
		return false
	}
	f.sent[connID] = append(f.sent[connID], msg)
	return true
}

func (f *fakeNotifier) Connected(connID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.dead[connID]
}

func (f *fakeNotifier) kill(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dead[connID] = true
}

func (f *fakeNotifier) matchesFor(connID string) []events.MatchFound {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.MatchFound
	for _, m := range f.sent[connID] {
		if mf, ok := m.(events.MatchFound); ok {
			out = append(out, mf)
		}
	}
	return out
}

func (f *fakeNotifier) timerUpdatesFor(connID string) []events.TimerUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.TimerUpdate
	for _, m := range f.sent[connID] {
		if tu, ok := m.(events.TimerUpdate); ok {
			out = append(out, tu)
		}
	}
	return out
}

type harness struct {
	mgr      *Manager
	store    store.Store
	notifier *fakeNotifier
	bus      *pubsub.PubSub
	events   chan pubsub.Event
}

func newHarness(t *testing.T, st store.Store) *harness {
	t.Helper()
	if st == nil {
		st = store.NewMemoryStore()
	}
	bus := pubsub.New()
	ctx := context.Background()
	b, err := NewBroadcaster(ctx, st, bus)
	if err != nil {
		t.Fatalf("broadcaster: %v", err)
	}
	mgr := NewManager(st, session.NewRegistry(), NewMemoryGuard(30*time.Second), timer.NewRelay(180), b, Options{
		Rand: rand.New(rand.NewSource(1)),
	})
	n := newFakeNotifier()
	mgr.SetNotifier(n)
	h := &harness{mgr: mgr, store: st, notifier: n, bus: bus, events: bus.Subscribe()}
	t.Cleanup(func() { bus.Close() })
	return h
}

// join registers a player over HTTP and binds it to a connection.
func (h *harness) join(t *testing.T, role models.Role) (string, *models.Player) {
	t.Helper()
	ctx := context.Background()
	p, err := h.mgr.RegisterPlayer(ctx, fmt.Sprintf("player-%s", role), role)
	if err != nil {
		t.Fatalf("register player: %v", err)
	}
	conn := fmt.Sprintf("conn-%d", p.ID)
	if _, err := h.mgr.Register(ctx, conn, p.ID, role); err != nil {
		t.Fatalf("register connection: %v", err)
	}
	return conn, p
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if _, err := h.mgr.StartGame(context.Background(), 0); err != nil {
		t.Fatalf("start game: %v", err)
	}
}

func (h *harness) status(t *testing.T, id int64) models.PlayerStatus {
	t.Helper()
	p, err := h.store.GetPlayer(context.Background(), id)
	if err != nil {
		t.Fatalf("get player %d: %v", id, err)
	}
	return p.Status
}

// nextEvent waits for a bus event of the given type.
func (h *harness) nextEvent(t *testing.T, typ string) pubsub.Event {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case ev := <-h.events:
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s event", typ)
			return pubsub.Event{}
		}
	}
}

func TestRegisterRejectsUnknownPlayer(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.mgr.Register(context.Background(), "c1", 99, models.RoleMoving); err == nil {
		t.Fatal("expected error for unknown player")
	}
	if _, err := h.mgr.Register(context.Background(), "c1", 0, models.RoleMoving); err == nil {
		t.Fatal("expected validation error for missing id")
	}
}

func TestRegisterRejectsRoleMismatch(t *testing.T) {
	h := newHarness(t, nil)
	p, _ := h.mgr.RegisterPlayer(context.Background(), "ann", models.RoleMoving)
	if _, err := h.mgr.Register(context.Background(), "c1", p.ID, models.RoleStationary); err == nil {
		t.Fatal("expected role mismatch error")
	}
}

func TestRegisterPlayerValidatesRole(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.mgr.RegisterPlayer(context.Background(), "x", "floating"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestStateTransitionsBroadcast(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.start(t)
	ev := h.nextEvent(t, events.TypeGameStatusChange)
	if ev.Payload["status"] != models.GameRunning {
		t.Errorf("expected running, got %v", ev.Payload["status"])
	}

	gs, err := h.mgr.NextRound(ctx)
	if err != nil {
		t.Fatalf("next round: %v", err)
	}
	if gs.Round != 2 {
		t.Errorf("expected round 2, got %d", gs.Round)
	}
	ev = h.nextEvent(t, events.TypeGameStatusChange)
	if ev.Payload["round"] != 2 {
		t.Errorf("expected round 2 in event, got %v", ev.Payload["round"])
	}
	if ev.Payload["message"] == "" {
		t.Error("expected an announcement message")
	}

	if gs, _ = h.mgr.StopGame(ctx); gs.Status != models.GameStopped || gs.Round != 2 {
		t.Errorf("stop: unexpected state %+v", gs)
	}
	if gs, _ = h.mgr.ResetRound(ctx); gs.Round != 1 {
		t.Errorf("reset: expected round 1, got %d", gs.Round)
	}

	persisted, _ := h.store.GetGameState(ctx)
	if persisted.Round != 1 || persisted.Status != models.GameStopped {
		t.Errorf("state not persisted: %+v", persisted)
	}
}

func TestStartGameWithRound(t *testing.T) {
	h := newHarness(t, nil)
	gs, err := h.mgr.StartGame(context.Background(), 3)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if gs.Round != 3 || gs.Status != models.GameRunning {
		t.Errorf("unexpected state %+v", gs)
	}
	if _, err := h.mgr.StartGame(context.Background(), -1); err == nil {
		t.Error("negative round should be rejected")
	}
}

func TestNextRoundReleasesPlayers(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	a, pa := h.join(t, models.RoleStationary)
	_, pb := h.join(t, models.RoleMoving)

	if res := h.mgr.RequestMatch(context.Background(), a, models.RoleMoving); !res.Found {
		t.Fatalf("expected match, got %q", res.Reason)
	}
	if _, err := h.mgr.NextRound(context.Background()); err != nil {
		t.Fatalf("next round: %v", err)
	}
	for _, id := range []int64{pa.ID, pb.ID} {
		if got := h.status(t, id); got != models.StatusAvailable {
			t.Errorf("player %d: expected available after next round, got %s", id, got)
		}
	}
}

// brokenGuard cannot release markers.
type brokenGuard struct {
	*MemoryGuard
}

func (brokenGuard) Release(context.Context, int64) error {
	return errors.New("redis unavailable")
}

func TestDeletePlayerLogsGuardFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.mgr.guard = brokenGuard{MemoryGuard: NewMemoryGuard(time.Minute)}
	_, p := h.join(t, models.RoleMoving)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	if err := h.mgr.DeletePlayer(context.Background(), p.ID); err != nil {
		t.Fatalf("delete should succeed despite the guard: %v", err)
	}
	want := fmt.Sprintf("[MATCH] Failed to release guard for player %d: redis unavailable", p.ID)
	if !strings.Contains(buf.String(), want) {
		t.Errorf("expected %q in log, got %q", want, buf.String())
	}
}

func TestDeletePlayerDropsRegistration(t *testing.T) {
	h := newHarness(t, nil)
	conn, p := h.join(t, models.RoleMoving)
	if err := h.mgr.DeletePlayer(context.Background(), p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := h.mgr.Registry().Lookup(conn); ok {
		t.Error("registration should be removed")
	}
	if err := h.mgr.DeletePlayer(context.Background(), p.ID); err == nil {
		t.Error("second delete should fail")
	}
}
