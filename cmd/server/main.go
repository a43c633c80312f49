package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Annmariya27/ctg-pro/internal/api"
	"github.com/Annmariya27/ctg-pro/internal/cache"
	"github.com/Annmariya27/ctg-pro/internal/circuitbreaker"
	"github.com/Annmariya27/ctg-pro/internal/config"
	"github.com/Annmariya27/ctg-pro/internal/db"
	"github.com/Annmariya27/ctg-pro/internal/metrics"
	"github.com/Annmariya27/ctg-pro/internal/predict"
	"github.com/Annmariya27/ctg-pro/internal/session"
)

func main() {
	// Load .env file (ignore error if file doesn't exist - use system env vars)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()
	log.Printf("[ctg-server] Prediction service: %s (session backend: %s, history: %t)",
		cfg.PredictionAPIURL, cfg.SessionBackend, cfg.HistoryEnabled)

	m := metrics.New(prometheus.DefaultRegisterer)
	breaker := circuitbreaker.NewFromConfig(predict.ServiceName, cfg, m.CircuitBreakerState)
	client := predict.NewClient(cfg, breaker, m)
	defer client.Close()

	memSessions := session.NewMemoryStoreWithTTL(cfg.SessionTTL)
	deps := api.Deps{
		Config:    cfg,
		Predictor: client,
		Breaker:   breaker,
		Metrics:   m,
		Sessions:  memSessions,
		Checks:    map[string]api.HealthChecker{},
	}

	// Initialize Redis cache
	if cfg.UseRedis() {
		redisCache, err := cache.New(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		log.Println("[ctg-server] Connected to Redis")

		deps.Checks["redis"] = redisCache
		if cfg.SessionBackend == config.SessionBackendRedis {
			deps.Sessions = redisCache
		}
		if cfg.HistoryEnabled {
			deps.Events = redisCache
		}
	}

	// Initialize database connection
	if cfg.HistoryEnabled {
		database, err := db.New(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		log.Println("[ctg-server] Connected to PostgreSQL")

		schemaCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := database.EnsureSchema(schemaCtx); err != nil {
			cancel()
			log.Fatalf("Failed to prepare database: %v", err)
		}
		cancel()

		deps.History = database
		deps.Checks["postgres"] = database
	}

	handlers := api.NewHandlers(deps)
	app := api.NewApp()
	api.RegisterRoutes(app, handlers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("[ctg-server] Starting CTG Screening API on %s", cfg.Addr())
		return app.Listen(cfg.Addr())
	})
	g.Go(func() error {
		handlers.Registry().RunSweeper(gctx, cfg.FormIdleTimeout, cfg.SweepInterval)
		return nil
	})
	if _, ok := deps.Sessions.(*session.MemoryStore); ok {
		g.Go(func() error {
			memSessions.RunJanitor(gctx, cfg.SweepInterval)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Println("[ctg-server] Shutting down server...")

		// In-flight submissions are cancelled and their results dropped.
		handlers.Registry().CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("[ctg-server] Server stopped with error: %v", err)
	}

	fmt.Println("Server exiting")
}
