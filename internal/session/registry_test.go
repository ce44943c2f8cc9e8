package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/speedfriending/backend/internal/models"
)

func TestRegisterLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", 7, models.RoleMoving)

	e, ok := r.Lookup("c1")
	if !ok {
		t.Fatal("expected entry for c1")
	}
	if e.PlayerID != 7 || e.Role != models.RoleMoving {
		t.Errorf("unexpected entry %+v", e)
	}
	if c, _ := r.ConnectionFor(7); c != "c1" {
		t.Errorf("expected c1 for player 7, got %q", c)
	}
}

func TestReRegisterConnectionOverwrites(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", 1, models.RoleMoving)
	r.Register("c1", 2, models.RoleStationary)

	e, _ := r.Lookup("c1")
	if e.PlayerID != 2 {
		t.Fatalf("expected player 2 on c1, got %d", e.PlayerID)
	}
	if _, ok := r.ConnectionFor(1); ok {
		t.Error("player 1 should no longer be registered")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", r.Len())
	}
}

func TestPlayerMovesToNewConnection(t *testing.T) {
	r := NewRegistry()
	r.Register("old", 5, models.RoleMoving)
	replaced := r.Register("new", 5, models.RoleMoving)

	if replaced != "old" {
		t.Errorf("expected replaced=old, got %q", replaced)
	}
	if _, ok := r.Lookup("old"); ok {
		t.Error("old connection should be dropped")
	}
	if c, _ := r.ConnectionFor(5); c != "new" {
		t.Errorf("expected new, got %q", c)
	}

	// unregistering the stale connection must not remove the live mapping
	r.Unregister("old")
	if c, ok := r.ConnectionFor(5); !ok || c != "new" {
		t.Error("live mapping removed by stale unregister")
	}
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", 9, models.RoleStationary)

	e, ok := r.Unregister("c1")
	if !ok || e.PlayerID != 9 {
		t.Fatalf("unexpected unregister result %+v %v", e, ok)
	}
	if _, ok := r.Lookup("c1"); ok {
		t.Error("c1 should be gone")
	}
	if _, ok := r.Unregister("c1"); ok {
		t.Error("second unregister should report false")
	}
}

func TestCloseRejectsRegistrations(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", 1, models.RoleMoving)
	r.Close()

	if r.Len() != 0 {
		t.Errorf("expected empty registry after close, got %d", r.Len())
	}
	r.Register("c2", 2, models.RoleMoving)
	if _, ok := r.Lookup("c2"); ok {
		t.Error("register after close should be ignored")
	}
}

func TestConcurrentRegistration(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("c%d", i)
			r.Register(conn, int64(i), models.RoleMoving)
			r.Lookup(conn)
			if i%2 == 0 {
				r.Unregister(conn)
			}
		}(i)
	}
	wg.Wait()

	if r.Len() != 50 {
		t.Errorf("expected 50 entries, got %d", r.Len())
	}
	if len(r.Entries()) != 50 {
		t.Errorf("expected 50 snapshot entries, got %d", len(r.Entries()))
	}
}
