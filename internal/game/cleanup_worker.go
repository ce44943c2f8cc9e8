package game

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// CleanupResult counts what one sweep removed.
type CleanupResult struct {
	Guards   int
	Sessions int
	Rooms    int
}

// Cleanup runs one sweep: expired match guards, registrations whose connection
// is gone, and idle timer rooms.
func (m *Manager) Cleanup(ctx context.Context, roomIdle time.Duration) CleanupResult {
	var res CleanupResult
	res.Guards = m.guard.Sweep(ctx)

	n := m.notify()
	for _, e := range m.registry.Entries() {
		if n.Connected(e.ConnID) {
			continue
		}
		m.HandleDisconnect(ctx, e.ConnID)
		res.Sessions++
	}

	res.Rooms = m.relay.Prune(roomIdle)
	return res
}

// StartCleanupWorker schedules Cleanup every interval until ctx is done. The
// returned scheduler is already running; ctx cancellation shuts it down.
func StartCleanupWorker(ctx context.Context, m *Manager, interval, roomIdle time.Duration) (gocron.Scheduler, error) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			res := m.Cleanup(ctx, roomIdle)
			if res.Guards+res.Sessions+res.Rooms > 0 {
				log.Printf("[CLEANUP] Removed guards=%d sessions=%d rooms=%d", res.Guards, res.Sessions, res.Rooms)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule cleanup: %w", err)
	}

	sched.Start()
	log.Printf("[CLEANUP] Cleanup worker started (every %v)", interval)

	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			log.Printf("[CLEANUP] Scheduler shutdown error: %v", err)
		}
		log.Println("[CLEANUP] Cleanup worker stopped")
	}()
	return sched, nil
}
