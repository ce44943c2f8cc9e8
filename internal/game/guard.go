package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard is the per-player "matching in progress" marker. Acquire fails while
// another attempt for the same player holds it.
type Guard interface {
	Acquire(ctx context.Context, playerID int64) (bool, error)
	Release(ctx context.Context, playerID int64) error
	// Sweep drops markers older than the guard TTL and returns how many it removed.
	Sweep(ctx context.Context) int
}

// MemoryGuard keeps markers in process memory.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[int64]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MemoryGuard{
		held: make(map[int64]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (g *MemoryGuard) Acquire(_ context.Context, playerID int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if at, ok := g.held[playerID]; ok && g.now().Sub(at) < g.ttl {
		return false, nil
	}
	g.held[playerID] = g.now()
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, playerID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, playerID)
	return nil
}

func (g *MemoryGuard) Sweep(_ context.Context) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for id, at := range g.held {
		if g.now().Sub(at) >= g.ttl {
			delete(g.held, id)
			n++
		}
	}
	return n
}

// Held reports whether a live marker exists for the player.
func (g *MemoryGuard) Held(playerID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	at, ok := g.held[playerID]
	return ok && g.now().Sub(at) < g.ttl
}

// RedisGuard keeps markers as Redis keys so several server instances share them.
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func guardKey(playerID int64) string {
	return fmt.Sprintf("match_guard:%d", playerID)
}

func (g *RedisGuard) Acquire(ctx context.Context, playerID int64) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, guardKey(playerID), time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire match guard: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, playerID int64) error {
	if err := g.rdb.Del(ctx, guardKey(playerID)).Err(); err != nil {
		return fmt.Errorf("release match guard: %w", err)
	}
	return nil
}

// Sweep is a no-op: Redis expires the keys itself.
func (g *RedisGuard) Sweep(_ context.Context) int {
	return 0
}
