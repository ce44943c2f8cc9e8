package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/speedfriending/backend/internal/models"
)

const playerColumns = `id, name, role, status, current_round, created_at`
const matchColumns = `id, pairing_id, player1_id, player2_id, round, rated, created_at`
const battleColumns = `id, round, team1_id, team2_id, activity, winner_team_id, created_at, decided_at`

// SQLStore implements Store on Postgres or SQLite through sqlx. Queries are
// written with ? placeholders and rebound for the connected driver.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an open connection. The schema must already be migrated.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) q(query string) string {
	return s.db.Rebind(query)
}

func now() time.Time {
	return time.Now().UTC()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *SQLStore) CreatePlayer(ctx context.Context, name string, role models.Role, round int) (*models.Player, error) {
	p := &models.Player{Name: name, Role: role, Status: models.StatusAvailable, CurrentRound: round, CreatedAt: now()}
	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO players (name, role, status, current_round, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`), p.Name, p.Role, p.Status, p.CurrentRound, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("insert player: %w", err)
	}
	return p, nil
}

func (s *SQLStore) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	var p models.Player
	if err := s.db.GetContext(ctx, &p, s.q(`SELECT `+playerColumns+` FROM players WHERE id = ?`), id); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *SQLStore) ListPlayers(ctx context.Context) ([]models.Player, error) {
	players := []models.Player{}
	err := s.db.SelectContext(ctx, &players, `SELECT `+playerColumns+` FROM players ORDER BY id`)
	return players, err
}

func (s *SQLStore) DeletePlayer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM players WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) SetPlayerStatus(ctx context.Context, id int64, status models.PlayerStatus) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE players SET status = ? WHERE id = ?`), status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ResetAllPlayers(ctx context.Context, round int) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE players SET status = ?, current_round = ?`), models.StatusAvailable, round)
	return err
}

func (s *SQLStore) FindCandidates(ctx context.Context, requesterID int64, role models.Role, round int) ([]models.Player, error) {
	players := []models.Player{}
	err := s.db.SelectContext(ctx, &players, s.q(`
		SELECT `+playerColumns+`
		FROM players
		WHERE role = ?
		  AND status = ?
		  AND id <> ?
		  AND id NOT IN (
			SELECT player2_id FROM matches WHERE player1_id = ? AND round = ?
			UNION
			SELECT player1_id FROM matches WHERE player2_id = ? AND round = ?
		  )
		ORDER BY id
	`), role, models.StatusAvailable, requesterID, requesterID, round, requesterID, round)
	return players, err
}

func (s *SQLStore) CreatePairing(ctx context.Context, in PairingInput) (*models.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin pairing tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE players SET status = ?, current_round = ?
		WHERE id IN (?, ?) AND status = ?
	`), models.StatusMatched, in.Round, in.Player1ID, in.Player2ID, models.StatusAvailable)
	if err != nil {
		return nil, fmt.Errorf("claim players: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 2 {
		return nil, ErrConflict
	}

	m := &models.Match{
		PairingID: in.PairingID,
		Player1ID: in.Player1ID,
		Player2ID: in.Player2ID,
		Round:     in.Round,
		CreatedAt: now(),
	}
	err = tx.QueryRowxContext(ctx, s.q(`
		INSERT INTO matches (pairing_id, player1_id, player2_id, round, rated, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`), m.PairingID, m.Player1ID, m.Player2ID, m.Round, false, m.CreatedAt).Scan(&m.ID)
	if err != nil {
		return nil, fmt.Errorf("insert match: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit pairing: %w", err)
	}
	return m, nil
}

func (s *SQLStore) GetMatchByPairingID(ctx context.Context, pairingID string) (*models.Match, error) {
	var m models.Match
	if err := s.db.GetContext(ctx, &m, s.q(`SELECT `+matchColumns+` FROM matches WHERE pairing_id = ?`), pairingID); err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *SQLStore) FindMatchBetween(ctx context.Context, a, b int64, round int) (*models.Match, error) {
	var m models.Match
	err := s.db.GetContext(ctx, &m, s.q(`
		SELECT `+matchColumns+` FROM matches
		WHERE (? <= 0 OR round = ?)
		  AND ((player1_id = ? AND player2_id = ?) OR (player1_id = ? AND player2_id = ?))
		ORDER BY id DESC
		LIMIT 1
	`), round, round, a, b, b, a)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *SQLStore) ListMatches(ctx context.Context, round int) ([]models.Match, error) {
	matches := []models.Match{}
	err := s.db.SelectContext(ctx, &matches, s.q(`SELECT `+matchColumns+` FROM matches WHERE round = ? ORDER BY id`), round)
	return matches, err
}

func (s *SQLStore) CreateRating(ctx context.Context, r *models.Rating) (*models.Rating, error) {
	out := *r
	out.CreatedAt = now()
	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO ratings (match_id, player_id, rated_player_id, enjoyment, depth, would_chat_again, round, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), out.MatchID, out.PlayerID, out.RatedPlayerID, out.Enjoyment, out.Depth, out.WouldChatAgain, out.Round, out.CreatedAt).Scan(&out.ID)
	if err != nil {
		return nil, fmt.Errorf("insert rating: %w", err)
	}
	return &out, nil
}

func (s *SQLStore) MarkMatchRatedIfComplete(ctx context.Context, matchID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE matches SET rated = ?
		WHERE id = ?
		  AND EXISTS (SELECT 1 FROM ratings r WHERE r.match_id = matches.id AND r.player_id = matches.player1_id)
		  AND EXISTS (SELECT 1 FROM ratings r WHERE r.match_id = matches.id AND r.player_id = matches.player2_id)
	`), true, matchID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLStore) MutualRatings(ctx context.Context, round int) ([]models.MutualRating, error) {
	pairs := []models.MutualRating{}
	err := s.db.SelectContext(ctx, &pairs, s.q(`
		SELECT a.player_id AS player_a, a.rated_player_id AS player_b,
		       a.enjoyment AS enjoyment_ab, b.enjoyment AS enjoyment_ba,
		       a.depth AS depth_ab, b.depth AS depth_ba
		FROM ratings a
		JOIN ratings b ON b.player_id = a.rated_player_id
		              AND b.rated_player_id = a.player_id
		              AND b.round = a.round
		WHERE a.round = ? AND a.player_id < a.rated_player_id
		  AND a.id = (SELECT MIN(r.id) FROM ratings r
		              WHERE r.player_id = a.player_id AND r.rated_player_id = a.rated_player_id AND r.round = a.round)
		  AND b.id = (SELECT MIN(r.id) FROM ratings r
		              WHERE r.player_id = b.player_id AND r.rated_player_id = b.rated_player_id AND r.round = b.round)
		ORDER BY a.id
	`), round)
	return pairs, err
}

func (s *SQLStore) CreateTeams(ctx context.Context, teams []models.Team) ([]models.Team, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]models.Team, 0, len(teams))
	for _, t := range teams {
		t.CreatedAt = now()
		err := tx.QueryRowxContext(ctx, s.q(`
			INSERT INTO teams (round, player1_id, player2_id, compatibility, created_at)
			VALUES (?, ?, ?, ?, ?)
			RETURNING id
		`), t.Round, t.Player1ID, t.Player2ID, t.Compatibility, t.CreatedAt).Scan(&t.ID)
		if err != nil {
			return nil, fmt.Errorf("insert team: %w", err)
		}
		out = append(out, t)
	}
	return out, tx.Commit()
}

func (s *SQLStore) ListTeams(ctx context.Context, round int) ([]models.Team, error) {
	teams := []models.Team{}
	err := s.db.SelectContext(ctx, &teams, s.q(`
		SELECT id, round, player1_id, player2_id, compatibility, created_at
		FROM teams WHERE round = ? ORDER BY id
	`), round)
	return teams, err
}

func (s *SQLStore) CreateBattles(ctx context.Context, battles []models.Battle) ([]models.Battle, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]models.Battle, 0, len(battles))
	for _, b := range battles {
		b.CreatedAt = now()
		err := tx.QueryRowxContext(ctx, s.q(`
			INSERT INTO team_battles (round, team1_id, team2_id, activity, created_at)
			VALUES (?, ?, ?, ?, ?)
			RETURNING id
		`), b.Round, b.Team1ID, b.Team2ID, b.Activity, b.CreatedAt).Scan(&b.ID)
		if err != nil {
			return nil, fmt.Errorf("insert battle: %w", err)
		}
		out = append(out, b)
	}
	return out, tx.Commit()
}

func (s *SQLStore) ListBattles(ctx context.Context, round int) ([]models.Battle, error) {
	battles := []models.Battle{}
	err := s.db.SelectContext(ctx, &battles, s.q(`SELECT `+battleColumns+` FROM team_battles WHERE round = ? ORDER BY id`), round)
	return battles, err
}

func (s *SQLStore) GetBattle(ctx context.Context, id int64) (*models.Battle, error) {
	var b models.Battle
	if err := s.db.GetContext(ctx, &b, s.q(`SELECT `+battleColumns+` FROM team_battles WHERE id = ?`), id); err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (s *SQLStore) SetBattleWinner(ctx context.Context, id, teamID int64) (*models.Battle, error) {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE team_battles SET winner_team_id = ?, decided_at = ? WHERE id = ?`), teamID, now(), id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetBattle(ctx, id)
}

func (s *SQLStore) GetGameState(ctx context.Context) (*models.GameState, error) {
	var st models.GameState
	err := s.db.GetContext(ctx, &st, `SELECT status, round, updated_at FROM game_state WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.GameState{Status: models.GameStopped, Round: 1, UpdatedAt: now()}, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SQLStore) SaveGameState(ctx context.Context, status models.GameStatus, round int) (*models.GameState, error) {
	st := &models.GameState{Status: status, Round: round, UpdatedAt: now()}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO game_state (id, status, round, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET status = excluded.status, round = excluded.round, updated_at = excluded.updated_at
	`), st.Status, st.Round, st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *SQLStore) GetAdminAccount(ctx context.Context, username string) (*models.AdminAccount, error) {
	var a models.AdminAccount
	err := s.db.GetContext(ctx, &a, s.q(`
		SELECT username, password_hash, created_at, updated_at FROM admin_accounts WHERE username = ?
	`), username)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *SQLStore) UpsertAdminAccount(ctx context.Context, username, passwordHash string) error {
	ts := now()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO admin_accounts (username, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			password_hash = excluded.password_hash,
			updated_at = excluded.updated_at
	`), username, passwordHash, ts, ts)
	return err
}

func (s *SQLStore) InsertAdminAudit(ctx context.Context, entry *models.AdminAudit) error {
	created := entry.CreatedAt
	if created.IsZero() {
		created = now()
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO admin_audit (admin_username, ip, route, action, details, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), entry.AdminUsername, entry.IP, entry.Route, entry.Action, entry.Details, entry.Success, created)
	return err
}

func (s *SQLStore) ListAdminAudit(ctx context.Context, username string, limit, offset int) ([]models.AdminAudit, error) {
	logs := []models.AdminAudit{}
	err := s.db.SelectContext(ctx, &logs, s.q(`
		SELECT id, admin_username, ip, route, action, details, success, created_at
		FROM admin_audit
		WHERE (? = '' OR admin_username = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`), username, username, limit, offset)
	return logs, err
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
