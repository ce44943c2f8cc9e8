package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/speedfriending/backend/internal/models"
)

// MemoryStore implements Store in process memory. Used for single-process
// rehearsals and by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	players map[int64]*models.Player
	matches []*models.Match
	ratings []*models.Rating
	teams   []*models.Team
	battles []*models.Battle
	state   models.GameState
	admins  map[string]*models.AdminAccount
	audit   []*models.AdminAudit
	nextID  int64
	now     func() time.Time
}

// NewMemoryStore creates an empty store with the game stopped at round 1.
func NewMemoryStore() *MemoryStore {
	now := time.Now().UTC()
	return &MemoryStore{
		players: make(map[int64]*models.Player),
		admins:  make(map[string]*models.AdminAccount),
		state:   models.GameState{Status: models.GameStopped, Round: 1, UpdatedAt: now},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryStore) CreatePlayer(ctx context.Context, name string, role models.Role, round int) (*models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &models.Player{
		ID:           m.id(),
		Name:         name,
		Role:         role,
		Status:       models.StatusAvailable,
		CurrentRound: round,
		CreatedAt:    m.now(),
	}
	m.players[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) ListPlayers(ctx context.Context) ([]models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Player, 0, len(m.players))
	for _, p := range m.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) DeletePlayer(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.players[id]; !ok {
		return ErrNotFound
	}
	delete(m.players, id)

	// Mirror the schema's ON DELETE rules.
	dropped := map[int64]bool{}
	matches := m.matches[:0]
	for _, mt := range m.matches {
		if mt.Involves(id) {
			dropped[mt.ID] = true
			continue
		}
		matches = append(matches, mt)
	}
	m.matches = matches

	ratings := m.ratings[:0]
	for _, r := range m.ratings {
		if r.PlayerID == id || r.RatedPlayerID == id {
			continue
		}
		if r.MatchID != nil && dropped[*r.MatchID] {
			r.MatchID = nil
		}
		ratings = append(ratings, r)
	}
	m.ratings = ratings

	goneTeams := map[int64]bool{}
	teams := m.teams[:0]
	for _, t := range m.teams {
		if t.Player1ID == id || t.Player2ID == id {
			goneTeams[t.ID] = true
			continue
		}
		teams = append(teams, t)
	}
	m.teams = teams

	battles := m.battles[:0]
	for _, b := range m.battles {
		if goneTeams[b.Team1ID] || goneTeams[b.Team2ID] {
			continue
		}
		battles = append(battles, b)
	}
	m.battles = battles
	return nil
}

func (m *MemoryStore) SetPlayerStatus(ctx context.Context, id int64, status models.PlayerStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	return nil
}

func (m *MemoryStore) ResetAllPlayers(ctx context.Context, round int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.players {
		p.Status = models.StatusAvailable
		p.CurrentRound = round
	}
	return nil
}

func (m *MemoryStore) pairedInRound(a, b int64, round int) bool {
	for _, mt := range m.matches {
		if round > 0 && mt.Round != round {
			continue
		}
		if (mt.Player1ID == a && mt.Player2ID == b) || (mt.Player1ID == b && mt.Player2ID == a) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) FindCandidates(ctx context.Context, requesterID int64, role models.Role, round int) ([]models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Player
	for _, p := range m.players {
		if p.ID == requesterID || p.Role != role || p.Status != models.StatusAvailable {
			continue
		}
		if m.pairedInRound(requesterID, p.ID, round) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) CreatePairing(ctx context.Context, in PairingInput) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p1, ok1 := m.players[in.Player1ID]
	p2, ok2 := m.players[in.Player2ID]
	if !ok1 || !ok2 || p1.Status != models.StatusAvailable || p2.Status != models.StatusAvailable {
		return nil, ErrConflict
	}
	if m.pairedInRound(in.Player1ID, in.Player2ID, in.Round) {
		return nil, ErrConflict
	}

	p1.Status, p1.CurrentRound = models.StatusMatched, in.Round
	p2.Status, p2.CurrentRound = models.StatusMatched, in.Round

	mt := &models.Match{
		ID:        m.id(),
		PairingID: in.PairingID,
		Player1ID: in.Player1ID,
		Player2ID: in.Player2ID,
		Round:     in.Round,
		CreatedAt: m.now(),
	}
	m.matches = append(m.matches, mt)
	cp := *mt
	return &cp, nil
}

func (m *MemoryStore) GetMatchByPairingID(ctx context.Context, pairingID string) (*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, mt := range m.matches {
		if mt.PairingID == pairingID {
			cp := *mt
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindMatchBetween(ctx context.Context, a, b int64, round int) (*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.matches) - 1; i >= 0; i-- {
		mt := m.matches[i]
		if round > 0 && mt.Round != round {
			continue
		}
		if (mt.Player1ID == a && mt.Player2ID == b) || (mt.Player1ID == b && mt.Player2ID == a) {
			cp := *mt
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListMatches(ctx context.Context, round int) ([]models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Match{}
	for _, mt := range m.matches {
		if mt.Round == round {
			out = append(out, *mt)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateRating(ctx context.Context, r *models.Rating) (*models.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *r
	cp.ID = m.id()
	cp.CreatedAt = m.now()
	m.ratings = append(m.ratings, &cp)
	out := cp
	return &out, nil
}

func (m *MemoryStore) MarkMatchRatedIfComplete(ctx context.Context, matchID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var mt *models.Match
	for _, candidate := range m.matches {
		if candidate.ID == matchID {
			mt = candidate
			break
		}
	}
	if mt == nil {
		return false, ErrNotFound
	}

	rated := map[int64]bool{}
	for _, r := range m.ratings {
		if r.MatchID != nil && *r.MatchID == matchID {
			rated[r.PlayerID] = true
		}
	}
	if rated[mt.Player1ID] && rated[mt.Player2ID] {
		mt.Rated = true
	}
	return mt.Rated, nil
}

func (m *MemoryStore) MutualRatings(ctx context.Context, round int) ([]models.MutualRating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Only the earliest rating in each direction counts.
	first := map[[2]int64]*models.Rating{}
	for _, r := range m.ratings {
		key := [2]int64{r.PlayerID, r.RatedPlayerID}
		if _, ok := first[key]; !ok && r.Round == round {
			first[key] = r
		}
	}

	out := []models.MutualRating{}
	for _, a := range m.ratings {
		if a.Round != round || a.PlayerID >= a.RatedPlayerID || first[[2]int64{a.PlayerID, a.RatedPlayerID}] != a {
			continue
		}
		b, ok := first[[2]int64{a.RatedPlayerID, a.PlayerID}]
		if !ok {
			continue
		}
		out = append(out, models.MutualRating{
			PlayerA:     a.PlayerID,
			PlayerB:     a.RatedPlayerID,
			EnjoymentAB: a.Enjoyment,
			EnjoymentBA: b.Enjoyment,
			DepthAB:     a.Depth,
			DepthBA:     b.Depth,
		})
	}
	return out, nil
}

func (m *MemoryStore) CreateTeams(ctx context.Context, teams []models.Team) ([]models.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Team, 0, len(teams))
	for _, t := range teams {
		cp := t
		cp.ID = m.id()
		cp.CreatedAt = m.now()
		m.teams = append(m.teams, &cp)
		out = append(out, cp)
	}
	return out, nil
}

func (m *MemoryStore) ListTeams(ctx context.Context, round int) ([]models.Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Team{}
	for _, t := range m.teams {
		if t.Round == round {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateBattles(ctx context.Context, battles []models.Battle) ([]models.Battle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Battle, 0, len(battles))
	for _, b := range battles {
		cp := b
		cp.ID = m.id()
		cp.CreatedAt = m.now()
		m.battles = append(m.battles, &cp)
		out = append(out, cp)
	}
	return out, nil
}

func (m *MemoryStore) ListBattles(ctx context.Context, round int) ([]models.Battle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Battle{}
	for _, b := range m.battles {
		if b.Round == round {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetBattle(ctx context.Context, id int64) (*models.Battle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, b := range m.battles {
		if b.ID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) SetBattleWinner(ctx context.Context, id, teamID int64) (*models.Battle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.battles {
		if b.ID == id {
			winner := teamID
			decided := m.now()
			b.WinnerTeamID = &winner
			b.DecidedAt = &decided
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetGameState(ctx context.Context) (*models.GameState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp := m.state
	return &cp, nil
}

func (m *MemoryStore) SaveGameState(ctx context.Context, status models.GameStatus, round int) (*models.GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = models.GameState{Status: status, Round: round, UpdatedAt: m.now()}
	cp := m.state
	return &cp, nil
}

func (m *MemoryStore) GetAdminAccount(ctx context.Context, username string) (*models.AdminAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.admins[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) UpsertAdminAccount(ctx context.Context, username, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if a, ok := m.admins[username]; ok {
		a.PasswordHash = passwordHash
		a.UpdatedAt = now
		return nil
	}
	m.admins[username] = &models.AdminAccount{Username: username, PasswordHash: passwordHash, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (m *MemoryStore) InsertAdminAudit(ctx context.Context, entry *models.AdminAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	cp.ID = m.id()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	m.audit = append(m.audit, &cp)
	return nil
}

func (m *MemoryStore) ListAdminAudit(ctx context.Context, username string, limit, offset int) ([]models.AdminAudit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.AdminAudit
	for i := len(m.audit) - 1; i >= 0; i-- {
		if username != "" && m.audit[i].AdminUsername != username {
			continue
		}
		out = append(out, *m.audit[i])
	}
	if offset >= len(out) {
		return []models.AdminAudit{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
