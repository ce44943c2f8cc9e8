// Command rehearsal simulates participants against a running server so an
// organiser can check the matching, timer and rating flow before an event.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/speedfriending/backend/internal/client"
	"github.com/speedfriending/backend/internal/events"
	"github.com/speedfriending/backend/internal/game"
	"github.com/speedfriending/backend/internal/models"
	"github.com/speedfriending/backend/internal/timer"
)

type options struct {
	baseURL       string
	players       int
	conversations int
	duration      int
	syncEvery     int
	start         bool
	token         string
	drop          bool
}

func main() {
	var opts options
	flag.StringVar(&opts.baseURL, "url", "http://localhost:8080", "server base URL")
	flag.IntVar(&opts.players, "players", 6, "number of simulated participants (split between roles)")
	flag.IntVar(&opts.conversations, "conversations", 2, "conversations per moving participant")
	flag.IntVar(&opts.duration, "duration", 10, "conversation length in seconds")
	flag.IntVar(&opts.syncEvery, "sync", 0, "seconds between timer syncs (0 uses the server's setting)")
	flag.BoolVar(&opts.start, "start", true, "start the game through the admin API first")
	flag.StringVar(&opts.token, "token", "", "admin bearer token, if admin auth is required")
	flag.BoolVar(&opts.drop, "drop", false, "drop and redial each participant's connection once mid-conversation")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.start {
		if err := post(ctx, opts.baseURL+"/api/v1/admin/start-game", opts.token, nil, nil); err != nil {
			log.Fatalf("Failed to start game: %v", err)
		}
		log.Println("[REHEARSAL] Game started")
	}

	var wg sync.WaitGroup
	for i := 0; i < opts.players; i++ {
		role := models.RoleStationary
		if i%2 == 1 {
			role = models.RoleMoving
		}
		wg.Add(1)
		go func(n int, role models.Role) {
			defer wg.Done()
			if err := runParticipant(ctx, opts, fmt.Sprintf("rehearsal-%d", n), role); err != nil {
				log.Printf("[REHEARSAL] participant %d (%s): %v", n, role, err)
			}
		}(i, role)
	}
	wg.Wait()
	log.Println("[REHEARSAL] Done")
}

type participant struct {
	id      int64
	name    string
	role    models.Role
	wsURL   string
	rng     *rand.Rand
	opts    options
	connID  string
	dropped bool // already went through a reconnect

	mu   sync.Mutex
	conn *client.Client
}

func (p *participant) client() *client.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

func (p *participant) send(msgType string, data interface{}) error {
	return p.client().Send(msgType, data)
}

func runParticipant(ctx context.Context, opts options, name string, role models.Role) error {
	var reg struct {
		PlayerID int64 `json:"playerId"`
	}
	if err := post(ctx, opts.baseURL+"/api/v1/register", "", map[string]string{"name": name, "role": string(role)}, &reg); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	wsURL := "ws" + strings.TrimPrefix(opts.baseURL, "http") + "/api/v1/ws"
	conn, err := client.Dial(ctx, wsURL)
	if err != nil {
		return err
	}

	p := &participant{
		id:    reg.PlayerID,
		name:  name,
		role:  role,
		wsURL: wsURL,
		conn:  conn,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano() + reg.PlayerID)),
		opts:  opts,
	}
	defer func() { p.client().Close() }()

	regCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	registered, err := conn.Register(regCtx, p.id, role)
	cancel()
	if err != nil {
		return fmt.Errorf("registered: %w", err)
	}
	p.connID = registered.ConnID
	p.measureLatency(ctx)

	done := 0
	idleUntil := time.Now().Add(time.Duration(opts.duration*opts.conversations+30) * time.Second)
	for done < opts.conversations && time.Now().Before(idleUntil) {
		if ctx.Err() != nil {
			return nil
		}
		found, err := p.nextMatch(ctx)
		if err != nil {
			return err
		}
		if found == nil {
			continue
		}
		if err := p.converse(ctx, found); err != nil {
			return err
		}
		done++
	}
	log.Printf("[REHEARSAL] %s finished %d conversations", p.name, done)
	return nil
}

func (p *participant) await(ctx context.Context, d time.Duration, types ...string) (client.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return p.client().Await(ctx, types...)
}

func (p *participant) measureLatency(ctx context.Context) {
	est := timer.NewOffsetEstimator(4)
	for i := 0; i < 4; i++ {
		sent := time.Now()
		p.send(events.TypeHeartbeat, events.HeartbeatData{ClientTime: sent.UnixMilli()})
		if _, err := p.await(ctx, 2*time.Second, events.TypeHeartbeatAck); err != nil {
			return
		}
		est.Observe(sent, time.Now())
	}
	log.Printf("[REHEARSAL] %s one-way latency ~%v", p.name, est.Offset())
}

// nextMatch asks for a partner (moving players) or waits to be found
// (stationary players). A nil result means try again.
func (p *participant) nextMatch(ctx context.Context) (*events.MatchFound, error) {
	if p.role == models.RoleMoving {
		p.send(events.TypeFindMatch, events.FindMatchData{})
	}
	msg, err := p.await(ctx, 3*time.Second, events.TypeMatchFound, events.TypeNoMatch)
	if err != nil {
		if ctx.Err() != nil || err == client.ErrClosed {
			return nil, err
		}
		return nil, nil
	}
	if msg.Type == events.TypeNoMatch {
		var nm events.NoMatch
		msg.Decode(&nm)
		if nm.Reason == game.ReasonNotActive {
			return nil, fmt.Errorf("game is not running")
		}
		time.Sleep(time.Duration(500+p.rng.Intn(500)) * time.Millisecond)
		return nil, nil
	}
	var mf events.MatchFound
	if err := msg.Decode(&mf); err != nil {
		return nil, err
	}
	return &mf, nil
}

func (p *participant) converse(ctx context.Context, mf *events.MatchFound) error {
	log.Printf("[REHEARSAL] %s talking to %s (%s)", p.name, mf.Counterpart.Name, mf.PairingID)

	convCtx, cancel := context.WithTimeout(ctx, time.Duration(p.opts.duration+30)*time.Second)
	defer cancel()

	syncEvery := p.opts.syncEvery
	if syncEvery <= 0 {
		syncEvery = mf.SyncInterval
	}
	p.mu.Lock()
	self := p.connID
	p.mu.Unlock()
	cd := timer.NewCountdown(timer.NewMachine(self, mf.PairingID, p.opts.duration), syncEvery, func(ctl timer.Control) {
		p.send(events.TypeTimerControl, events.TimerControlData{
			PairingID: ctl.PairingID,
			Action:    ctl.Action,
			TimeLeft:  ctl.TimeLeft,
		})
	})
	cd.OnExpire(cancel)

	go p.relayUpdates(convCtx, p.client(), cd, mf.PairingID)

	if p.opts.drop && !p.dropped {
		p.dropped = true
		go func() {
			select {
			case <-convCtx.Done():
				return
			case <-time.After(time.Duration(p.opts.duration) * time.Second / 2):
			}
			if err := p.reconnect(convCtx, cd, mf.PairingID); err != nil {
				log.Printf("[REHEARSAL] %s could not resume %s: %v", p.name, mf.PairingID, err)
			}
		}()
	}

	if p.role == models.RoleMoving {
		cd.Start()
	}
	cd.Run(convCtx)
	if ctx.Err() != nil {
		return nil
	}

	p.send(events.TypeSubmitRating, events.SubmitRatingData{
		PairingID:      mf.PairingID,
		PlayerID:       p.id,
		RatedPlayerID:  mf.Counterpart.ID,
		Enjoyment:      1 + p.rng.Intn(5),
		Depth:          1 + p.rng.Intn(5),
		WouldChatAgain: p.rng.Intn(2) == 0,
		Round:          mf.Round,
	})
	if _, err := p.await(ctx, 5*time.Second, events.TypeRatingRecorded); err != nil {
		return fmt.Errorf("rating: %w", err)
	}
	p.send(events.TypeLeavePairing, events.PairingData{PairingID: mf.PairingID})
	return nil
}

// relayUpdates feeds the pairing's timer_update messages from conn into cd
// until ctx ends or conn closes.
func (p *participant) relayUpdates(ctx context.Context, conn *client.Client, cd *timer.Countdown, pairingID string) {
	for {
		msg, err := conn.Await(ctx, events.TypeTimerUpdate)
		if err != nil {
			return
		}
		var upd events.TimerUpdate
		if msg.Decode(&upd) == nil && upd.PairingID == pairingID {
			cd.Receive(upd.Control)
		}
	}
}

// reconnect drops the live connection, redials and resynchronises the
// countdown from the server's snapshot of the pairing.
func (p *participant) reconnect(ctx context.Context, cd *timer.Countdown, pairingID string) error {
	log.Printf("[REHEARSAL] %s dropping connection during %s", p.name, pairingID)
	p.client().Close()

	conn, reg, upd, err := client.Resume(ctx, p.wsURL, p.id, p.role, pairingID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.conn = conn
	p.connID = reg.ConnID
	p.mu.Unlock()

	cd.Machine().Rebind(reg.ConnID)
	cd.Receive(upd.Control)
	go p.relayUpdates(ctx, conn, cd, pairingID)
	log.Printf("[REHEARSAL] %s resumed %s with %ds left", p.name, pairingID, cd.Machine().TimeLeft())
	return nil
}

func post(ctx context.Context, url, token string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
