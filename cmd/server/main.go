package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"moonhollow/internal/config"
	"moonhollow/internal/db"
	"moonhollow/internal/game"
	"moonhollow/internal/server"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()

	var store game.Store
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		if err := db.Migrate(conn); err != nil {
			log.Fatalf("database migration failed: %v", err)
		}
		store = db.NewStore(conn)
	} else {
		log.Println("DATABASE_URL not set, using in-memory store")
		store = game.NewMemoryStore()
	}

	srv := server.New(store, cfg)

	go func() {
		ticker := time.NewTicker(time.Duration(cfg.SweepIntervalSeconds) * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			srv.Engine().SweepAll(context.Background())
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("moonhollow server listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatal(err)
	}
}
