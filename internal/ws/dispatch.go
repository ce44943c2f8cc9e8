package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/speedfriending/backend/internal/events"
	"github.com/speedfriending/backend/internal/game"
	"github.com/speedfriending/backend/internal/store"
	"github.com/speedfriending/backend/internal/timer"
)

const handleTimeout = 10 * time.Second

func (c *Client) handle(raw []byte) {
	var env events.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.reply(events.NewError("invalid message format"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	mgr := c.hub.mgr

	switch env.Type {
	case events.TypeRegisterPlayer:
		var data events.RegisterPlayerData
		if !c.decode(env, &data) {
			return
		}
		reg, err := mgr.Register(ctx, c.id, data.PlayerID, data.Role)
		if err != nil {
			c.fail(env.Type, err)
			return
		}
		c.reply(reg)

	case events.TypeFindMatch:
		var data events.FindMatchData
		if !c.decode(env, &data) {
			return
		}
		// match_found is pushed to both players by the manager
		res := mgr.RequestMatch(ctx, c.id, data.Role)
		if !res.Found {
			c.reply(events.NoMatch{Type: events.TypeNoMatch, Reason: res.Reason})
		}

	case events.TypeSubmitRating:
		var data events.SubmitRatingData
		if !c.decode(env, &data) {
			return
		}
		if data.PlayerID == 0 {
			if entry, ok := mgr.Registry().Lookup(c.id); ok {
				data.PlayerID = entry.PlayerID
			}
		}
		res, err := mgr.SubmitRating(ctx, game.RatingInput{
			PairingID:      data.PairingID,
			PlayerID:       data.PlayerID,
			RatedPlayerID:  data.RatedPlayerID,
			Enjoyment:      data.Enjoyment,
			Depth:          data.Depth,
			WouldChatAgain: data.WouldChatAgain,
			Round:          data.Round,
		})
		if err != nil {
			c.fail(env.Type, err)
			return
		}
		c.reply(events.RatingRecorded{
			Type:          events.TypeRatingRecorded,
			RatingID:      res.Rating.ID,
			StatusUpdated: res.StatusUpdated,
			MatchRated:    res.MatchRated,
		})

	case events.TypeTimerControl:
		var data events.TimerControlData
		if !c.decode(env, &data) {
			return
		}
		if _, err := mgr.TimerControl(c.id, data); err != nil {
			c.fail(env.Type, err)
		}

	case events.TypeTimerResync:
		var data events.PairingData
		if !c.decode(env, &data) {
			return
		}
		update, err := mgr.TimerResync(c.id, data.PairingID)
		if err != nil {
			c.fail(env.Type, err)
			return
		}
		c.reply(update)

	case events.TypeLeavePairing:
		var data events.PairingData
		if !c.decode(env, &data) {
			return
		}
		if err := mgr.LeavePairing(c.id, data.PairingID); err != nil {
			c.fail(env.Type, err)
		}

	case events.TypeHeartbeat:
		var data events.HeartbeatData
		if !c.decode(env, &data) {
			return
		}
		c.reply(events.HeartbeatAck{
			Type:       events.TypeHeartbeatAck,
			ClientTime: data.ClientTime,
			ServerTime: timer.NowMillis(),
		})

	case events.TypeGetPlayerTeam:
		var data events.PlayerTeamRequest
		if !c.decode(env, &data) {
			return
		}
		if data.PlayerID == 0 {
			if entry, ok := mgr.Registry().Lookup(c.id); ok {
				data.PlayerID = entry.PlayerID
			}
		}
		info, err := mgr.PlayerTeam(ctx, data.PlayerID, data.Round)
		if err != nil {
			c.fail(env.Type, err)
			return
		}
		c.reply(info)

	case events.TypeStartTeamBattles:
		var data events.RoundData
		if !c.decode(env, &data) {
			return
		}
		if data.Round == 0 {
			data.Round = mgr.GameState().Round
		}
		// team_battles_started is broadcast to everyone
		if _, err := mgr.ScheduleBattles(ctx, data.Round); err != nil {
			c.fail(env.Type, err)
		}

	case events.TypeGameStatusCheck:
		gs := mgr.GameState()
		c.reply(events.GameStatusChange{
			Type:   events.TypeGameStatusChange,
			Status: gs.Status,
			Round:  gs.Round,
		})

	default:
		c.reply(events.NewError("unknown message type: " + env.Type))
	}
}

func (c *Client) decode(env events.Envelope, v interface{}) bool {
	if err := env.Decode(v); err != nil {
		c.reply(events.NewError("invalid " + env.Type + " data"))
		return false
	}
	return true
}

// fail reports err to the client. Validation messages are passed through;
// anything unexpected is logged and replaced with a generic message.
func (c *Client) fail(msgType string, err error) {
	switch {
	case errors.Is(err, game.ErrValidation):
		c.reply(events.NewError(err.Error()))
	case errors.Is(err, game.ErrNotRegistered):
		c.reply(events.NewError("register_player first"))
	case errors.Is(err, store.ErrNotFound):
		c.reply(events.NewError("not found"))
	case errors.Is(err, timer.ErrUnknownPairing):
		c.reply(events.NewError("unknown pairing"))
	case errors.Is(err, timer.ErrNotMember):
		c.reply(events.NewError("not a member of this pairing"))
	default:
		log.Printf("[WS] %s failed for connection %s: %v", msgType, c.id, err)
		c.reply(events.NewError(msgType + " failed"))
	}
}
