package timer

import (
	"errors"
	"testing"
	"time"
)

func newTestRelay() (*Relay, *time.Time) {
	now := time.Unix(1700000000, 0)
	r := NewRelay(180)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestForwardNeverReturnsSender(t *testing.T) {
	r, _ := newTestRelay()
	r.Open("p1", 1, 2)
	r.Join("p1", "c1", 1)
	r.Join("p1", "c2", 2)

	targets, ctl, err := r.Forward("c1", Control{PairingID: "p1", Action: ActionStart, TimeLeft: 180})
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if len(targets) != 1 || targets[0] != "c2" {
		t.Errorf("expected [c2], got %v", targets)
	}
	if ctl.SenderID != "c1" || ctl.Timestamp == 0 {
		t.Errorf("control not stamped: %+v", ctl)
	}
}

func TestForwardRejectsStrangers(t *testing.T) {
	r, _ := newTestRelay()
	r.Open("p1", 1, 2)

	if err := r.Join("p1", "c3", 3); !errors.Is(err, ErrNotMember) {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
	if err := r.Join("missing", "c1", 1); !errors.Is(err, ErrUnknownPairing) {
		t.Errorf("expected ErrUnknownPairing, got %v", err)
	}
	if _, _, err := r.Forward("c3", Control{PairingID: "p1", Action: ActionSync}); !errors.Is(err, ErrNotMember) {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
}

func TestRejoinReplacesConnection(t *testing.T) {
	r, _ := newTestRelay()
	r.Open("p1", 1, 2)
	r.Join("p1", "c1", 1)
	r.Join("p1", "c2", 2)
	r.Join("p1", "c1b", 1)

	members := r.Members("p1")
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %v", members)
	}
	for _, m := range members {
		if m == "c1" {
			t.Error("stale connection still in room")
		}
	}
}

func TestSnapshotExtrapolatesWhileRunning(t *testing.T) {
	r, now := newTestRelay()
	r.Open("p1", 1, 2)
	r.Join("p1", "c1", 1)

	r.Forward("c1", Control{PairingID: "p1", Action: ActionStart, TimeLeft: 100})
	*now = now.Add(7 * time.Second)

	snap, err := r.Snapshot("p1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Action != ActionStart || snap.TimeLeft != 93 {
		t.Errorf("expected start/93, got %s/%d", snap.Action, snap.TimeLeft)
	}

	r.Forward("c1", Control{PairingID: "p1", Action: ActionPause, TimeLeft: 93})
	*now = now.Add(30 * time.Second)
	snap, _ = r.Snapshot("p1")
	if snap.Action != ActionPause || snap.TimeLeft != 93 {
		t.Errorf("expected pause/93, got %s/%d", snap.Action, snap.TimeLeft)
	}
}

func TestSnapshotAfterTimeout(t *testing.T) {
	r, _ := newTestRelay()
	r.Open("p1", 1, 2)
	r.Join("p1", "c1", 1)
	r.Forward("c1", Control{PairingID: "p1", Action: ActionTimeout, TimeLeft: 12})

	snap, _ := r.Snapshot("p1")
	if snap.Action != ActionTimeout || snap.TimeLeft != 0 {
		t.Errorf("expected timeout/0, got %s/%d", snap.Action, snap.TimeLeft)
	}
}

func TestFinishRemovesRoomWhenBothDone(t *testing.T) {
	r, _ := newTestRelay()
	r.Open("p1", 1, 2)
	r.Join("p1", "c1", 1)
	r.Join("p1", "c2", 2)

	if r.Finish("p1", 1) {
		t.Fatal("room removed after first finish")
	}
	if len(r.Members("p1")) != 1 {
		t.Error("finished player's connection should leave the room")
	}
	if !r.Finish("p1", 2) {
		t.Fatal("room should be removed after both finish")
	}
	if r.Len() != 0 {
		t.Errorf("expected no rooms, got %d", r.Len())
	}
}

func TestLeaveConnectionAndPrune(t *testing.T) {
	r, now := newTestRelay()
	r.Open("p1", 1, 2)
	r.Open("p2", 1, 3)
	r.Join("p1", "c1", 1)
	r.Join("p2", "c1", 1)
	r.Join("p2", "c3", 3)

	left := r.LeaveConnection("c1")
	if len(left) != 2 {
		t.Errorf("expected to leave 2 rooms, got %v", left)
	}

	*now = now.Add(2 * time.Hour)
	if n := r.Prune(time.Hour); n != 1 {
		t.Errorf("expected 1 pruned room, got %d", n)
	}
	if r.Len() != 1 {
		t.Errorf("room with a member should survive, got %d rooms", r.Len())
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	r, _ := newTestRelay()
	r.Open("p1", 1, 2)
	r.Join("p1", "c1", 1)
	r.Open("p1", 1, 2)
	if len(r.Members("p1")) != 1 {
		t.Error("reopening reset the room")
	}
}
