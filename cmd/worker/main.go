package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Annmariya27/ctg-pro/internal/cache"
	"github.com/Annmariya27/ctg-pro/internal/config"
	"github.com/Annmariya27/ctg-pro/internal/db"
	"github.com/Annmariya27/ctg-pro/internal/worker"
)

func main() {
	// Load .env file (ignore error if file doesn't exist - use system env vars)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Initialize database connection
	database, err := db.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("[ctg-worker] Connected to PostgreSQL")

	schemaCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = database.EnsureSchema(schemaCtx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to prepare database: %v", err)
	}

	// Initialize Redis cache
	redisCache, err := cache.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()
	log.Println("[ctg-worker] Connected to Redis")

	recorder := worker.NewRecorder(redisCache, database, cfg)

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("[ctg-worker] Starting analysis history worker...")
	done := make(chan struct{})
	go func() {
		defer close(done)
		recorder.Start(ctx)
	}()

	<-ctx.Done()
	log.Println("[ctg-worker] Shutting down...")

	// Wait for the final flush
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Println("[ctg-worker] Final flush timed out")
	}
	log.Println("[ctg-worker] Stopped")
}
