package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/speedfriending/backend/internal/events"
	"github.com/speedfriending/backend/internal/models"
	"github.com/speedfriending/backend/internal/timer"
)

// Register sends register_player and waits for the server's answer.
func (c *Client) Register(ctx context.Context, playerID int64, role models.Role) (*events.Registered, error) {
	if err := c.Send(events.TypeRegisterPlayer, events.RegisterPlayerData{PlayerID: playerID, Role: role}); err != nil {
		return nil, err
	}
	msg, err := c.Await(ctx, events.TypeRegistered, events.TypeError)
	if err != nil {
		return nil, err
	}
	if msg.Type == events.TypeError {
		return nil, decodeError(msg)
	}
	var reg events.Registered
	if err := msg.Decode(&reg); err != nil {
		return nil, fmt.Errorf("decode registered: %w", err)
	}
	return &reg, nil
}

// Resync sends a burst of timer_resync requests for the pairing and returns
// the first timer_update the server answers with. The burst stops as soon as
// an answer arrives.
func (c *Client) Resync(ctx context.Context, pairingID string, attempts int, interval time.Duration) (*events.TimerUpdate, error) {
	if interval <= 0 {
		interval = timer.DefaultResyncInterval
	}
	burstCtx, stop := context.WithCancel(ctx)
	burst := make(chan error, 1)
	go func() {
		n, err := timer.Resync(burstCtx, attempts, interval, func() error {
			return c.Send(events.TypeTimerResync, events.PairingData{PairingID: pairingID})
		})
		log.Printf("[CLIENT] Sent %d timer_resync requests for %s", n, pairingID)
		burst <- err
	}()

	msg, err := c.awaitTimer(ctx, pairingID)
	stop()
	if berr := <-burst; berr != nil && err == nil {
		err = berr
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (c *Client) awaitTimer(ctx context.Context, pairingID string) (*events.TimerUpdate, error) {
	for {
		msg, err := c.Await(ctx, events.TypeTimerUpdate, events.TypeError)
		if err != nil {
			return nil, err
		}
		if msg.Type == events.TypeError {
			return nil, decodeError(msg)
		}
		var upd events.TimerUpdate
		if err := msg.Decode(&upd); err != nil {
			return nil, fmt.Errorf("decode timer_update: %w", err)
		}
		if upd.PairingID == pairingID {
			return &upd, nil
		}
	}
}

// Resume redials url after a dropped connection, registers the player again
// and resynchronises the pairing's timer. The burst size comes from the
// server's registered message.
func Resume(ctx context.Context, url string, playerID int64, role models.Role, pairingID string) (*Client, *events.Registered, *events.TimerUpdate, error) {
	c, err := Dial(ctx, url)
	if err != nil {
		return nil, nil, nil, err
	}
	reg, err := c.Register(ctx, playerID, role)
	if err != nil {
		c.Close()
		return nil, nil, nil, fmt.Errorf("register: %w", err)
	}
	upd, err := c.Resync(ctx, pairingID, reg.ResyncAttempts, timer.DefaultResyncInterval)
	if err != nil {
		c.Close()
		return nil, nil, nil, fmt.Errorf("resync %s: %w", pairingID, err)
	}
	log.Printf("[CLIENT] Player %d resumed %s on %s (%s, %ds left)", playerID, pairingID, reg.ConnID, upd.Action, upd.TimeLeft)
	return c, reg, upd, nil
}

func decodeError(msg Message) error {
	var e events.Error
	if err := msg.Decode(&e); err != nil {
		return fmt.Errorf("decode error: %w", err)
	}
	return errors.New(e.Message)
}
