package store

import (
	"context"
	"errors"

	"github.com/speedfriending/backend/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write lost a race, e.g. a
	// counterpart was claimed by another pairing first.
	ErrConflict = errors.New("record changed concurrently")
)

// PairingInput describes a pairing to be created atomically.
type PairingInput struct {
	PairingID string
	Player1ID int64
	Player2ID int64
	Round     int
}

// PlayerStore holds participants and their availability.
type PlayerStore interface {
	CreatePlayer(ctx context.Context, name string, role models.Role, round int) (*models.Player, error)
	GetPlayer(ctx context.Context, id int64) (*models.Player, error)
	ListPlayers(ctx context.Context) ([]models.Player, error)
	DeletePlayer(ctx context.Context, id int64) error
	SetPlayerStatus(ctx context.Context, id int64, status models.PlayerStatus) error
	// ResetAllPlayers marks every player available in the given round.
	ResetAllPlayers(ctx context.Context, round int) error
}

// MatchStore holds pairings and ratings.
type MatchStore interface {
	// FindCandidates lists available players of role, excluding the requester
	// and anyone already paired with the requester in round.
	FindCandidates(ctx context.Context, requesterID int64, role models.Role, round int) ([]models.Player, error)
	// CreatePairing flips both players from available to matched and inserts
	// the pairing in one transaction. ErrConflict if either player was no
	// longer available.
	CreatePairing(ctx context.Context, in PairingInput) (*models.Match, error)
	GetMatchByPairingID(ctx context.Context, pairingID string) (*models.Match, error)
	// FindMatchBetween returns the latest pairing of a and b in round, or in
	// any round when round is not positive.
	FindMatchBetween(ctx context.Context, a, b int64, round int) (*models.Match, error)
	ListMatches(ctx context.Context, round int) ([]models.Match, error)
	CreateRating(ctx context.Context, r *models.Rating) (*models.Rating, error)
	// MarkMatchRatedIfComplete sets rated=true once both participants rated it.
	MarkMatchRatedIfComplete(ctx context.Context, matchID int64) (bool, error)
	// MutualRatings joins the earliest rating in each direction for every pair
	// that rated each other in round.
	MutualRatings(ctx context.Context, round int) ([]models.MutualRating, error)
}

// TeamStore holds teams and battles.
type TeamStore interface {
	CreateTeams(ctx context.Context, teams []models.Team) ([]models.Team, error)
	ListTeams(ctx context.Context, round int) ([]models.Team, error)
	CreateBattles(ctx context.Context, battles []models.Battle) ([]models.Battle, error)
	ListBattles(ctx context.Context, round int) ([]models.Battle, error)
	GetBattle(ctx context.Context, id int64) (*models.Battle, error)
	SetBattleWinner(ctx context.Context, id, teamID int64) (*models.Battle, error)
}

// StateStore holds the singleton game state row.
type StateStore interface {
	GetGameState(ctx context.Context) (*models.GameState, error)
	SaveGameState(ctx context.Context, status models.GameStatus, round int) (*models.GameState, error)
}

// AdminStore holds administrator accounts and the audit trail.
type AdminStore interface {
	GetAdminAccount(ctx context.Context, username string) (*models.AdminAccount, error)
	UpsertAdminAccount(ctx context.Context, username, passwordHash string) error
	InsertAdminAudit(ctx context.Context, entry *models.AdminAudit) error
	ListAdminAudit(ctx context.Context, username string, limit, offset int) ([]models.AdminAudit, error)
}

// Store is the record store used by the engine and the HTTP API.
type Store interface {
	PlayerStore
	MatchStore
	TeamStore
	StateStore
	AdminStore
	Close() error
}
