package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Record store
	DBDriver       string // memory, postgres or sqlite
	DatabaseURL    string
	SQLiteFile     string
	MigrateOnStart bool

	// Redis
	RedisURL string

	// Event bus upstream: local, redis or nats
	EventBus     string
	NATSURL      string
	NATSSubject  string
	RedisChannel string

	// Server
	Port        string
	FrontendURL string

	// Matching
	GuardBackend       string // memory or redis
	GuardTTLSeconds    int
	CleanupIntervalSec int
	PairingIdleMinutes int

	// Timer protocol
	TimerDefaultSeconds      int
	TimerSyncIntervalSeconds int
	TimerResyncAttempts      int

	// Security
	AdminAuthRequired    bool
	JWTSecret            string
	AdminTokenTTLMinutes int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Record store
		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", "memory")),
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/speedfriending?sslmode=disable"),
		SQLiteFile:     getEnv("SQLITE_FILE", "speedfriending.sqlite"),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", true),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Event bus
		EventBus:     strings.ToLower(getEnv("EVENT_BUS", "local")),
		NATSURL:      getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		NATSSubject:  getEnv("NATS_SUBJECT", "speedfriending.events"),
		RedisChannel: getEnv("REDIS_EVENTS_CHANNEL", "game_events"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Matching
		GuardBackend:       strings.ToLower(getEnv("GUARD_BACKEND", "memory")),
		GuardTTLSeconds:    getEnvInt("GUARD_TTL_SECONDS", 30),
		CleanupIntervalSec: getEnvInt("CLEANUP_INTERVAL_SECONDS", 15),
		PairingIdleMinutes: getEnvInt("PAIRING_IDLE_MINUTES", 60),

		// Timer protocol
		TimerDefaultSeconds:      getEnvInt("TIMER_DEFAULT_SECONDS", 180),
		TimerSyncIntervalSeconds: getEnvInt("TIMER_SYNC_INTERVAL_SECONDS", 5),
		TimerResyncAttempts:      getEnvInt("TIMER_RESYNC_ATTEMPTS", 3),

		// Security
		AdminAuthRequired:    getEnvBool("ADMIN_AUTH_REQUIRED", false),
		JWTSecret:            getEnv("JWT_SECRET", "change-me-in-production"),
		AdminTokenTTLMinutes: getEnvInt("ADMIN_TOKEN_TTL_MINUTES", 240),
	}
}

// Default returns the configuration used when no environment is present.
func Default() *Config {
	return &Config{
		Environment:              "development",
		DBDriver:                 "memory",
		EventBus:                 "local",
		Port:                     "8080",
		FrontendURL:              "http://localhost:5173",
		GuardBackend:             "memory",
		GuardTTLSeconds:          30,
		CleanupIntervalSec:       15,
		PairingIdleMinutes:       60,
		TimerDefaultSeconds:      180,
		TimerSyncIntervalSeconds: 5,
		TimerResyncAttempts:      3,
		JWTSecret:                "change-me-in-production",
		AdminTokenTTLMinutes:     240,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
