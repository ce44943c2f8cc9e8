package events

import (
	"encoding/json"

	"github.com/speedfriending/backend/internal/models"
	"github.com/speedfriending/backend/internal/timer"
)

// Inbound message types
const (
	TypeRegisterPlayer   = "register_player"
	TypeFindMatch        = "find_match"
	TypeSubmitRating     = "submit_rating"
	TypeTimerControl     = "timer_control"
	TypeTimerResync      = "timer_resync"
	TypeLeavePairing     = "leave_pairing"
	TypeHeartbeat        = "heartbeat"
	TypeGetPlayerTeam    = "get_player_team"
	TypeStartTeamBattles = "start_team_battles"
	TypeGameStatusCheck  = "game_status_check"
)

// Outbound message types
const (
	TypeRegistered         = "registered"
	TypeMatchFound         = "match_found"
	TypeNoMatch            = "no_match"
	TypeTimerUpdate        = "timer_update"
	TypeHeartbeatAck       = "heartbeat_ack"
	TypeGameStatusChange   = "game_status_change"
	TypePlayerAvailable    = "player_available"
	TypeRatingRecorded     = "rating_recorded"
	TypePlayerTeamInfo     = "player_team_info"
	TypeTeamBattlesStarted = "team_battles_started"
	TypeBattleResult       = "battle_result"
	TypeError              = "error"
)

// Envelope is the inbound frame: {"type": ..., "data": {...}}
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the data payload into v. Missing data decodes as an empty object.
func (e Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

type RegisterPlayerData struct {
	PlayerID int64       `json:"playerId"`
	Role     models.Role `json:"role"`
}

type FindMatchData struct {
	Role models.Role `json:"role"`
}

type SubmitRatingData struct {
	PairingID      string `json:"pairingId,omitempty"`
	PlayerID       int64  `json:"playerId"`
	RatedPlayerID  int64  `json:"ratedPlayerId"`
	Enjoyment      int    `json:"enjoyment"`
	Depth          int    `json:"depth"`
	WouldChatAgain bool   `json:"wouldChatAgain"`
	Round          int    `json:"round"`
}

type TimerControlData struct {
	PairingID string       `json:"pairingId"`
	Action    timer.Action `json:"action"`
	TimeLeft  int          `json:"timeLeft"`
}

// PairingData carries just a pairing id (timer_resync, leave_pairing).
type PairingData struct {
	PairingID string `json:"pairingId"`
}

type HeartbeatData struct {
	ClientTime int64 `json:"clientTime"` // unix millis on the client
}

type PlayerTeamRequest struct {
	PlayerID int64 `json:"playerId"`
	Round    int   `json:"round"`
}

type RoundData struct {
	Round int `json:"round"`
}

// Outbound messages are flat objects with a "type" key.

// Registered confirms register_player. SyncInterval and ResyncAttempts tell
// the client how often to emit sync and how many timer_resync requests to send
// after a reconnect.
type Registered struct {
	Type           string              `json:"type"`
	ConnID         string              `json:"connId"`
	PlayerID       int64               `json:"playerId"`
	Role           models.Role         `json:"role"`
	Status         models.PlayerStatus `json:"status"`
	Game           models.GameState    `json:"game"`
	SyncInterval   int                 `json:"syncInterval"`
	ResyncAttempts int                 `json:"resyncAttempts"`
}

// Counterpart is the public view of the other participant of a pairing.
type Counterpart struct {
	ID   int64       `json:"id"`
	Name string      `json:"name"`
	Role models.Role `json:"role"`
}

type MatchFound struct {
	Type         string      `json:"type"`
	PairingID    string      `json:"pairingId"`
	Round        int         `json:"round"`
	Counterpart  Counterpart `json:"counterpart"`
	Duration     int         `json:"duration"`
	SyncInterval int         `json:"syncInterval"`
}

type NoMatch struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type TimerUpdate struct {
	Type string `json:"type"`
	timer.Control
}

type HeartbeatAck struct {
	Type       string `json:"type"`
	ClientTime int64  `json:"clientTime"`
	ServerTime int64  `json:"serverTime"`
}

type GameStatusChange struct {
	Type    string            `json:"type"`
	Status  models.GameStatus `json:"status"`
	Round   int               `json:"round"`
	Message string            `json:"message,omitempty"`
}

type RatingRecorded struct {
	Type          string `json:"type"`
	RatingID      int64  `json:"ratingId"`
	StatusUpdated bool   `json:"statusUpdated"`
	MatchRated    bool   `json:"matchRated"`
}

type PlayerTeamInfo struct {
	Type     string         `json:"type"`
	Round    int            `json:"round"`
	Team     *models.Team   `json:"team"`
	Teammate *Counterpart   `json:"teammate,omitempty"`
	Battle   *models.Battle `json:"battle,omitempty"`
	Opponent *models.Team   `json:"opponent,omitempty"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}
