package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hostpulse/hostpulse/internal/config"
	"github.com/hostpulse/hostpulse/internal/database"
	"github.com/hostpulse/hostpulse/internal/logger"
	"github.com/hostpulse/hostpulse/internal/retry"
	"github.com/hostpulse/hostpulse/internal/store"
	"github.com/hostpulse/hostpulse/internal/sweeper"
)

func main() {
	log.Println("HostPulse Sweeper")
	log.Println("=================")

	// Load configuration
	cfg := config.Load()
	slogger := logger.New()

	log.Printf("Database: %s:%s/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)
	log.Printf("Sweep interval: %v, offline after: %v", cfg.SweepInterval, cfg.OfflineAfter)
	if cfg.DryRun {
		log.Println("DRY RUN MODE: No host status will be changed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, shutting down...", sig)
		cancel()
	}()

	// Connect to database (retry while Postgres comes up)
	var db *database.DB
	err := retry.WithExponentialBackoff(ctx, retry.DefaultConfig(), "database connection", func() error {
		var err error
		db, err = database.New(cfg)
		return err
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	s := sweeper.New(store.New(db), cfg.OfflineAfter, cfg.DryRun, slogger)

	// Run one sweep immediately, then on every tick.
	if err := s.Run(ctx); err != nil {
		log.Printf("Sweep failed: %v", err)
	}

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				log.Printf("Sweep failed: %v", err)
			}
		}
	}
}
