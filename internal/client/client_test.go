package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/speedfriending/backend/internal/events"
	"github.com/speedfriending/backend/internal/models"
	"github.com/speedfriending/backend/internal/timer"
)

// echoServer answers every frame with two messages: a "noise" message and
// an "echo" carrying the frame's type.
func echoServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var frame struct {
				Type string `json:"type"`
			}
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			conn.WriteJSON(map[string]string{"type": "noise"})
			conn.WriteJSON(map[string]string{"type": "echo", "of": frame.Type})
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestAwaitSkipsOtherTypes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	c, err := Dial(ctx, echoServer(t))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if err := c.Send("ping", map[string]int{"n": 1}); err != nil {
		t.Fatalf("send: %v", err)
	}
	msg, err := c.Await(ctx, "echo")
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	var body struct {
		Of string `json:"of"`
	}
	if err := msg.Decode(&body); err != nil || body.Of != "ping" {
		t.Errorf("unexpected echo %s (%v)", msg.Raw, err)
	}

	// the noise message is still queued
	if msg, err := c.Await(ctx, "missing", "noise"); err != nil || msg.Type != "noise" {
		t.Errorf("expected queued noise, got %+v %v", msg, err)
	}
	if left := c.Drain(); len(left) != 0 {
		t.Errorf("expected empty queue, got %d", len(left))
	}
}

func TestAwaitHonoursContext(t *testing.T) {
	c, err := Dial(context.Background(), echoServer(t))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Await(ctx, "never"); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

// resyncServer registers any player and answers only the second timer_resync
// it receives, as a server that lost the first request would.
func resyncServer(t *testing.T, requests *int32) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var frame struct {
				Type string `json:"type"`
				Data struct {
					PlayerID  int64  `json:"playerId"`
					PairingID string `json:"pairingId"`
				} `json:"data"`
			}
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			switch frame.Type {
			case events.TypeRegisterPlayer:
				conn.WriteJSON(events.Registered{
					Type: events.TypeRegistered, ConnID: "c-9", PlayerID: frame.Data.PlayerID,
					Role: models.RoleMoving, ResyncAttempts: 5,
				})
			case events.TypeTimerResync:
				if atomic.AddInt32(requests, 1) == 2 {
					conn.WriteJSON(events.TimerUpdate{Type: events.TypeTimerUpdate, Control: timer.Control{
						PairingID: frame.Data.PairingID, Action: timer.ActionStart, TimeLeft: 90,
					}})
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestResumeStopsBurstOnFirstAnswer(t *testing.T) {
	var requests int32
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, reg, upd, err := Resume(ctx, resyncServer(t, &requests), 9, models.RoleMoving, "pair-1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	defer c.Close()
	if reg.ConnID != "c-9" || reg.ResyncAttempts != 5 {
		t.Errorf("unexpected registration %+v", reg)
	}
	if upd.PairingID != "pair-1" || upd.Action != timer.ActionStart || upd.TimeLeft != 90 {
		t.Errorf("unexpected timer update %+v", upd)
	}

	time.Sleep(3 * timer.DefaultResyncInterval)
	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Errorf("expected the burst to stop after 2 requests, got %d", n)
	}
}

func TestResyncGivesUpAfterAttempts(t *testing.T) {
	var requests int32
	c, err := Dial(context.Background(), resyncServer(t, &requests))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	// One request is never answered; the caller's deadline ends the wait.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if _, err := c.Resync(ctx, "pair-1", 1, 10*time.Millisecond); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("expected exactly 1 request, got %d", n)
	}
}
