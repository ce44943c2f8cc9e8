package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/speedfriending/backend/internal/api"
	"github.com/speedfriending/backend/internal/config"
	"github.com/speedfriending/backend/internal/game"
	"github.com/speedfriending/backend/internal/pubsub"
	"github.com/speedfriending/backend/internal/redis"
	"github.com/speedfriending/backend/internal/session"
	"github.com/speedfriending/backend/internal/store"
	"github.com/speedfriending/backend/internal/timer"
	"github.com/speedfriending/backend/internal/ws"

	goredis "github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Record store
	st, err := store.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open record store: %v", err)
	}
	defer st.Close()

	// Redis is only dialed when a component needs it
	var rdb *goredis.Client
	if cfg.GuardBackend == "redis" || cfg.EventBus == "redis" {
		rdb, err = redis.Connect(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
		log.Printf("[REDIS] Connected to %s", cfg.RedisURL)
	}

	bus, err := openBus(cfg, rdb)
	if err != nil {
		log.Fatalf("Failed to start event bus: %v", err)
	}
	defer bus.Close()

	guardTTL := time.Duration(cfg.GuardTTLSeconds) * time.Second
	var guard game.Guard = game.NewMemoryGuard(guardTTL)
	if cfg.GuardBackend == "redis" {
		guard = game.NewRedisGuard(rdb, guardTTL)
	}

	state, err := game.NewBroadcaster(ctx, st, bus)
	if err != nil {
		log.Fatalf("Failed to load game state: %v", err)
	}

	registry := session.NewRegistry()
	mgr := game.NewManager(st, registry, guard, timer.NewRelay(cfg.TimerDefaultSeconds), state, game.Options{
		TimerDuration:  cfg.TimerDefaultSeconds,
		SyncInterval:   cfg.TimerSyncIntervalSeconds,
		ResyncAttempts: cfg.TimerResyncAttempts,
	})
	hub := ws.NewHub(mgr)
	go hub.Run(ctx)

	// The worker stops itself when ctx is cancelled
	if _, err := game.StartCleanupWorker(ctx, mgr,
		time.Duration(cfg.CleanupIntervalSec)*time.Second,
		time.Duration(cfg.PairingIdleMinutes)*time.Minute); err != nil {
		log.Fatalf("Failed to start cleanup worker: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, mgr, hub, st, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		log.Printf("Starting speed-friending server on port %s (store=%s bus=%s guard=%s)", cfg.Port, cfg.DBDriver, cfg.EventBus, cfg.GuardBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdown(srv, registry, 10*time.Second)
}

// shutdown drains HTTP connections, then drops every live registration.
func shutdown(srv *http.Server, registry *session.Registry, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	registry.Close()
}

// openBus builds the event bus. With an upstream, events from every server
// instance reach every local subscriber.
func openBus(cfg *config.Config, rdb *goredis.Client) (*pubsub.PubSub, error) {
	switch cfg.EventBus {
	case "", "local":
		return pubsub.New(), nil
	case "redis":
		up, err := pubsub.NewRedisUpstream(rdb, cfg.RedisChannel)
		if err != nil {
			return nil, err
		}
		log.Printf("[BUS] Using Redis channel %s", cfg.RedisChannel)
		return pubsub.NewWithUpstream(up), nil
	case "nats":
		up, err := pubsub.NewNATSUpstream(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, err
		}
		log.Printf("[BUS] Using NATS subject %s at %s", cfg.NATSSubject, cfg.NATSURL)
		return pubsub.NewWithUpstream(up), nil
	}
	return nil, errors.New("unsupported EVENT_BUS " + cfg.EventBus)
}
