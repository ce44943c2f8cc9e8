package main

import (
	"context"
	"log"
	"os"

	"github.com/speedfriending/backend/internal/admin"
	"github.com/speedfriending/backend/internal/config"
	"github.com/speedfriending/backend/internal/store"
)

func main() {
	cfg := config.Load()
	if cfg.DBDriver == "memory" || cfg.DBDriver == "" {
		log.Fatalf("seed-admin needs a persistent store; set DB_DRIVER=postgres or sqlite")
	}

	st, err := store.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open record store: %v", err)
	}
	defer st.Close()

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "host"
		log.Printf("Using default admin username: %s", username)
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "change-me-in-production"
		log.Printf("WARNING: Using default admin password. Set ADMIN_PASSWORD env var in production!")
	}

	if err := admin.CreateAdminAccount(context.Background(), st, username, password); err != nil {
		log.Fatalf("Failed to create admin account: %v", err)
	}

	log.Printf("✓ Admin account created/updated successfully")
	log.Printf("  Username: %s", username)
	log.Println("\nLog in with POST /api/v1/admin/login")
}
