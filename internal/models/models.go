package models

import (
	"time"
)

// Role is a player's participation mode. Matching always pairs opposite roles.
type Role string

const (
	RoleStationary Role = "stationary"
	RoleMoving     Role = "moving"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStationary || r == RoleMoving
}

// Opposite returns the role a player of role r is paired with.
func (r Role) Opposite() Role {
	if r == RoleStationary {
		return RoleMoving
	}
	return RoleStationary
}

// PlayerStatus is a player's availability for matching
type PlayerStatus string

const (
	StatusAvailable PlayerStatus = "available"
	StatusMatched   PlayerStatus = "matched"
)

// GameStatus is the global run state set by the administrator
type GameStatus string

const (
	GameStopped GameStatus = "stopped"
	GameRunning GameStatus = "running"
)

// Player represents an event participant
type Player struct {
	ID           int64        `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	Role         Role         `db:"role" json:"role"`
	Status       PlayerStatus `db:"status" json:"status"`
	CurrentRound int          `db:"current_round" json:"currentRound"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
}

// Match is one recorded conversation pairing within a round
type Match struct {
	ID        int64     `db:"id" json:"id"`
	PairingID string    `db:"pairing_id" json:"pairingId"`
	Player1ID int64     `db:"player1_id" json:"player1Id"`
	Player2ID int64     `db:"player2_id" json:"player2Id"`
	Round     int       `db:"round" json:"round"`
	Rated     bool      `db:"rated" json:"rated"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Involves reports whether the player takes part in the match.
func (m *Match) Involves(playerID int64) bool {
	return m.Player1ID == playerID || m.Player2ID == playerID
}

// Counterpart returns the other participant of the match.
func (m *Match) Counterpart(playerID int64) int64 {
	if m.Player1ID == playerID {
		return m.Player2ID
	}
	return m.Player1ID
}

// Rating is one submitter's feedback about one pairing
type Rating struct {
	ID             int64     `db:"id" json:"id"`
	MatchID        *int64    `db:"match_id" json:"matchId,omitempty"`
	PlayerID       int64     `db:"player_id" json:"playerId"`
	RatedPlayerID  int64     `db:"rated_player_id" json:"ratedPlayerId"`
	Enjoyment      int       `db:"enjoyment" json:"enjoyment"`
	Depth          int       `db:"depth" json:"depth"`
	WouldChatAgain bool      `db:"would_chat_again" json:"wouldChatAgain"`
	Round          int       `db:"round" json:"round"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// MutualRating joins the two ratings a pair of players gave each other in a round.
// PlayerA always has the lower id.
type MutualRating struct {
	PlayerA     int64 `db:"player_a" json:"playerA"`
	PlayerB     int64 `db:"player_b" json:"playerB"`
	EnjoymentAB int   `db:"enjoyment_ab" json:"enjoymentAB"`
	EnjoymentBA int   `db:"enjoyment_ba" json:"enjoymentBA"`
	DepthAB     int   `db:"depth_ab" json:"depthAB"`
	DepthBA     int   `db:"depth_ba" json:"depthBA"`
}

// Team groups two compatible players for a round
type Team struct {
	ID            int64     `db:"id" json:"id"`
	Round         int       `db:"round" json:"round"`
	Player1ID     int64     `db:"player1_id" json:"player1Id"`
	Player2ID     int64     `db:"player2_id" json:"player2Id"`
	Compatibility float64   `db:"compatibility" json:"compatibility"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// HasPlayer reports whether the player is a member of the team.
func (t *Team) HasPlayer(playerID int64) bool {
	return t.Player1ID == playerID || t.Player2ID == playerID
}

// Battle is a team-vs-team activity within a round
type Battle struct {
	ID           int64      `db:"id" json:"id"`
	Round        int        `db:"round" json:"round"`
	Team1ID      int64      `db:"team1_id" json:"team1Id"`
	Team2ID      int64      `db:"team2_id" json:"team2Id"`
	Activity     string     `db:"activity" json:"activity"`
	WinnerTeamID *int64     `db:"winner_team_id" json:"winnerTeamId,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	DecidedAt    *time.Time `db:"decided_at" json:"decidedAt,omitempty"`
}

// GameState is the singleton run state
type GameState struct {
	Status    GameStatus `db:"status" json:"status"`
	Round     int        `db:"round" json:"round"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// AdminAccount is an administrator login
type AdminAccount struct {
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// AdminAudit records one administrator action
type AdminAudit struct {
	ID            int64     `db:"id" json:"id"`
	AdminUsername string    `db:"admin_username" json:"adminUsername"`
	IP            string    `db:"ip" json:"ip"`
	Route         string    `db:"route" json:"route"`
	Action        string    `db:"action" json:"action"`
	Details       string    `db:"details" json:"details"`
	Success       bool      `db:"success" json:"success"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}
